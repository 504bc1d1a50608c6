// Package analytics resolves a closed set of topic categories into the
// pre-generated report text used to ground analytics answers.
package analytics

import "strings"

// Category is a topic tag for precomputed analytics reports.
type Category string

// The closed category set. Anything else is unknown.
const (
	CategoryContent       Category = "content"
	CategoryEvents        Category = "events"
	CategoryRegistrations Category = "registrations"
	CategoryNeighborhoods Category = "neighborhoods"
	CategoryEngagement    Category = "engagement"
	CategoryUsers         Category = "users"
)

// categoryFiles maps each category to its report files. Concatenation order
// is fixed by this table.
var categoryFiles = map[Category][]string{
	CategoryContent:       {"content_creation.md"},
	CategoryEvents:        {"upcoming_events.md"},
	CategoryRegistrations: {"new_user_stats.md", "user_registration_trends.md"},
	CategoryNeighborhoods: {"neighborhood_distribution.md"},
	CategoryEngagement: {
		"post_engagement.md",
		"time_by_section.md",
		"time_by_user_type.md",
		"push_notifications.md",
		"search_behavior.md",
		"app_activity_time.md",
	},
	CategoryUsers: {
		"active_users.md",
		"top_users.md",
		"onboarding_performance.md",
		"navigation_patterns.md",
	},
}

// ParseCategory normalizes a tag into a Category. The second return value is
// false for anything outside the closed set.
func ParseCategory(s string) (Category, bool) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	_, ok := categoryFiles[c]
	return c, ok
}

// Files returns the ordered report filenames for a category, or nil for an
// unknown category.
func (c Category) Files() []string {
	return categoryFiles[c]
}
