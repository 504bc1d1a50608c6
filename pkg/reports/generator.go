// Package reports generates the categorized analytics markdown files the
// resolver serves. Each section runs one warehouse or database query, has the
// LLM condense the raw result into prose, and lands in the analytics
// directory under the filename the resolver expects.
package reports

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/parentpass/chatbot-api/pkg/database"
	"github.com/parentpass/chatbot-api/pkg/warehouse"
)

// Summarizer condenses one raw query result into report prose.
type Summarizer interface {
	Summarize(ctx context.Context, name, description, data string) (string, error)
}

// Section describes one report file and how to fetch its raw data.
type Section struct {
	File        string
	Name        string
	Description string
	Fetch       func(ctx context.Context) (any, error)
}

// Generator writes report sections to the analytics directory.
type Generator struct {
	dir        string
	summarizer Summarizer
	sections   []Section
}

// New creates a generator for the given sections.
func New(dir string, summarizer Summarizer, sections []Section) *Generator {
	return &Generator{
		dir:        dir,
		summarizer: summarizer,
		sections:   sections,
	}
}

// Run generates every section. A failing section is logged and skipped; Run
// fails only when the output directory is unusable or every section failed.
func (g *Generator) Run(ctx context.Context) error {
	if err := os.MkdirAll(g.dir, 0o750); err != nil {
		return fmt.Errorf("creating analytics directory: %w", err)
	}

	written := 0
	for _, section := range g.sections {
		if err := g.generate(ctx, section); err != nil {
			slog.Error("reports: section failed", "file", section.File, "error", err)
			continue
		}
		written++
	}

	slog.Info("reports: generation complete", "written", written, "total", len(g.sections))
	if written == 0 && len(g.sections) > 0 {
		return fmt.Errorf("all %d report sections failed", len(g.sections))
	}
	return nil
}

func (g *Generator) generate(ctx context.Context, section Section) error {
	data, err := section.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("fetching data: %w", err)
	}

	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding data: %w", err)
	}

	summary, err := g.summarizer.Summarize(ctx, section.Name, section.Description, string(raw))
	if err != nil {
		return fmt.Errorf("summarizing: %w", err)
	}

	content := fmt.Sprintf("# %s\n\n_Generated: %s_\n\n%s\n",
		section.Name, time.Now().UTC().Format(time.RFC3339), summary)

	path := filepath.Join(g.dir, section.File)
	if err := os.WriteFile(path, []byte(content), 0o640); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}

// DefaultSections wires the production report set: warehouse queries for
// telemetry-backed sections, read-only platform database queries for the
// rest. The filenames must stay aligned with the resolver's category table.
func DefaultSections(db *database.ReadOnly, wh *warehouse.Client) []Section {
	return []Section{
		{
			File:        "active_users.md",
			Name:        "Active Users",
			Description: "Distinct active users over the last week versus all-time registered users.",
			Fetch: func(ctx context.Context) (any, error) {
				return wh.ActiveTotalUsers(ctx, warehouse.TimeRange{})
			},
		},
		{
			File:        "top_users.md",
			Name:        "Top Users by Time Spent",
			Description: "Users with the most in-app engagement time over the last week.",
			Fetch: func(ctx context.Context) (any, error) {
				return wh.TopUsersByTimeSpent(ctx, warehouse.TimeRange{}, 20)
			},
		},
		{
			File:        "onboarding_performance.md",
			Name:        "Onboarding Performance",
			Description: "Average time spent in onboarding screens.",
			Fetch: func(ctx context.Context) (any, error) {
				return wh.AverageOnboardingSeconds(ctx, warehouse.TimeRange{})
			},
		},
		{
			File:        "navigation_patterns.md",
			Name:        "Navigation Patterns",
			Description: "Screen view counts per app section.",
			Fetch: func(ctx context.Context) (any, error) {
				return wh.SectionVisitCounts(ctx, warehouse.TimeRange{})
			},
		},
		{
			File:        "time_by_section.md",
			Name:        "Time by Section",
			Description: "Daily engagement time per app section.",
			Fetch: func(ctx context.Context) (any, error) {
				return wh.TimeSpentBySection(ctx, "day", warehouse.TimeRange{})
			},
		},
		{
			File:        "app_activity_time.md",
			Name:        "App Activity Time",
			Description: "Daily total in-app time and average session length.",
			Fetch: func(ctx context.Context) (any, error) {
				daily, err := wh.TimeSpentInApp(ctx, "day", warehouse.TimeRange{})
				if err != nil {
					return nil, err
				}
				avg, err := wh.AverageSessionSeconds(ctx, warehouse.TimeRange{})
				if err != nil {
					return nil, err
				}
				return map[string]any{"daily_seconds": daily, "avg_session_seconds": avg}, nil
			},
		},
		{
			File:        "push_notifications.md",
			Name:        "Push Notifications",
			Description: "Notification receive and open counts over the last week.",
			Fetch: func(ctx context.Context) (any, error) {
				return wh.PushNotificationStats(ctx, warehouse.TimeRange{})
			},
		},
		{
			File:        "search_behavior.md",
			Name:        "Search Behavior",
			Description: "Most frequent in-app search terms.",
			Fetch: func(ctx context.Context) (any, error) {
				return wh.SearchStatistics(ctx, warehouse.TimeRange{}, 25)
			},
		},
		{
			File:        "post_engagement.md",
			Name:        "Post Engagement",
			Description: "Post creation, likes, and comment event volumes.",
			Fetch: func(ctx context.Context) (any, error) {
				return wh.EventCounts(ctx, warehouse.TimeRange{},
					[]string{"post_created", "post_liked", "comment_added", "post_shared"})
			},
		},
		{
			File:        "time_by_user_type.md",
			Name:        "Time by User Type",
			Description: "Engagement time split by registered user type.",
			Fetch: func(ctx context.Context) (any, error) {
				return db.Query(ctx, `
					SELECT u.user_type, COUNT(*) AS sessions
					FROM sessions_log s
					JOIN users u ON u.id = s.user_id
					WHERE s.started_at >= NOW() - INTERVAL '7 days'
					GROUP BY u.user_type
					ORDER BY sessions DESC`)
			},
		},
		{
			File:        "new_user_stats.md",
			Name:        "New User Stats",
			Description: "Registrations over the last week.",
			Fetch: func(ctx context.Context) (any, error) {
				return db.Query(ctx, `
					SELECT COUNT(*) AS new_users
					FROM users
					WHERE created_at >= NOW() - INTERVAL '7 days'`)
			},
		},
		{
			File:        "user_registration_trends.md",
			Name:        "User Registration Trends",
			Description: "Weekly registration counts over the last quarter.",
			Fetch: func(ctx context.Context) (any, error) {
				return db.Query(ctx, `
					SELECT date_trunc('week', created_at) AS week, COUNT(*) AS registrations
					FROM users
					WHERE created_at >= NOW() - INTERVAL '90 days'
					GROUP BY week
					ORDER BY week`)
			},
		},
		{
			File:        "neighborhood_distribution.md",
			Name:        "Neighborhood Distribution",
			Description: "Registered users per neighborhood.",
			Fetch: func(ctx context.Context) (any, error) {
				return db.Query(ctx, `
					SELECT neighborhood, COUNT(*) AS users
					FROM users
					WHERE neighborhood IS NOT NULL
					GROUP BY neighborhood
					ORDER BY users DESC`)
			},
		},
		{
			File:        "content_creation.md",
			Name:        "Content Creation",
			Description: "Posts created per day over the last week.",
			Fetch: func(ctx context.Context) (any, error) {
				return db.Query(ctx, `
					SELECT date_trunc('day', created_at) AS day, COUNT(*) AS posts
					FROM posts
					WHERE created_at >= NOW() - INTERVAL '7 days'
					GROUP BY day
					ORDER BY day`)
			},
		},
		{
			File:        "upcoming_events.md",
			Name:        "Upcoming Events",
			Description: "Community events scheduled in the next two weeks.",
			Fetch: func(ctx context.Context) (any, error) {
				return db.Query(ctx, `
					SELECT title, starts_at, neighborhood
					FROM events
					WHERE starts_at BETWEEN NOW() AND NOW() + INTERVAL '14 days'
					ORDER BY starts_at`)
			},
		},
	}
}
