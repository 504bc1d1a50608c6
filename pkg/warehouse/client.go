// Package warehouse queries the columnar event warehouse that holds the
// consumer app's flattened telemetry (one row per event, with the screen
// section and engagement time already extracted by the ETL). All queries are
// parameterized builders; results feed the analytics report generator only.
package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// psq is the statement builder with dollar placeholders.
var psq = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// DefaultTable is the flattened events table name.
const DefaultTable = "app_events"

// defaultRangeDays is the lookback window when a range is not given.
const defaultRangeDays = 7

// validBuckets are the accepted date_trunc units for grouped queries.
var validBuckets = map[string]bool{
	"hour":  true,
	"day":   true,
	"week":  true,
	"month": true,
}

// TimeRange bounds a query. Zero values default to the last seven days.
type TimeRange struct {
	From time.Time
	To   time.Time
}

// Normalize fills in defaults and returns the effective range.
func (r TimeRange) Normalize() TimeRange {
	if r.To.IsZero() {
		r.To = time.Now()
	}
	if r.From.IsZero() {
		r.From = r.To.AddDate(0, 0, -defaultRangeDays)
	}
	return r
}

// Client executes analytics queries against the warehouse.
type Client struct {
	db    *sql.DB
	table string
}

// New creates a warehouse client. An empty table falls back to DefaultTable.
func New(db *sql.DB, table string) *Client {
	if table == "" {
		table = DefaultTable
	}
	return &Client{db: db, table: table}
}

// SectionTime is engagement time for one section in one time bucket.
type SectionTime struct {
	Bucket  time.Time
	Section string
	Seconds float64
}

// TimeSpentBySection returns engagement time per app section, grouped into
// date_trunc buckets.
func (c *Client) TimeSpentBySection(ctx context.Context, bucket string, tr TimeRange) ([]SectionTime, error) {
	if !validBuckets[bucket] {
		return nil, fmt.Errorf("invalid bucket %q", bucket)
	}
	tr = tr.Normalize()

	query := psq.
		Select(
			fmt.Sprintf("date_trunc('%s', event_time) AS bucket", bucket),
			"section",
			"SUM(engagement_ms) / 1000.0 AS seconds",
		).
		From(c.table).
		Where(sq.Eq{"event_name": "user_engagement"}).
		Where("section IS NOT NULL").
		Where(sq.GtOrEq{"event_time": tr.From}).
		Where(sq.LtOrEq{"event_time": tr.To}).
		GroupBy("bucket", "section").
		OrderBy("bucket", "section")

	rows, err := c.run(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []SectionTime
	for rows.Next() {
		var st SectionTime
		if err := rows.Scan(&st.Bucket, &st.Section, &st.Seconds); err != nil {
			return nil, fmt.Errorf("scanning section time: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// UserTime is total engagement time for one user.
type UserTime struct {
	UserID  string
	Seconds float64
}

// TopUsersByTimeSpent returns the heaviest users by engagement time.
func (c *Client) TopUsersByTimeSpent(ctx context.Context, tr TimeRange, limit uint64) ([]UserTime, error) {
	tr = tr.Normalize()
	if limit == 0 {
		limit = 10
	}

	query := psq.
		Select("user_id", "SUM(engagement_ms) / 1000.0 AS seconds").
		From(c.table).
		Where(sq.Eq{"event_name": "user_engagement"}).
		Where("user_id IS NOT NULL").
		Where(sq.GtOrEq{"event_time": tr.From}).
		Where(sq.LtOrEq{"event_time": tr.To}).
		GroupBy("user_id").
		OrderBy("seconds DESC").
		Limit(limit)

	rows, err := c.run(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []UserTime
	for rows.Next() {
		var ut UserTime
		if err := rows.Scan(&ut.UserID, &ut.Seconds); err != nil {
			return nil, fmt.Errorf("scanning user time: %w", err)
		}
		out = append(out, ut)
	}
	return out, rows.Err()
}

// BucketSeconds is total in-app time for one time bucket.
type BucketSeconds struct {
	Bucket  time.Time
	Seconds float64
}

// TimeSpentInApp returns overall engagement time grouped into date_trunc
// buckets.
func (c *Client) TimeSpentInApp(ctx context.Context, bucket string, tr TimeRange) ([]BucketSeconds, error) {
	if !validBuckets[bucket] {
		return nil, fmt.Errorf("invalid bucket %q", bucket)
	}
	tr = tr.Normalize()

	query := psq.
		Select(
			fmt.Sprintf("date_trunc('%s', event_time) AS bucket", bucket),
			"SUM(engagement_ms) / 1000.0 AS seconds",
		).
		From(c.table).
		Where(sq.Eq{"event_name": "user_engagement"}).
		Where(sq.GtOrEq{"event_time": tr.From}).
		Where(sq.LtOrEq{"event_time": tr.To}).
		GroupBy("bucket").
		OrderBy("bucket")

	rows, err := c.run(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []BucketSeconds
	for rows.Next() {
		var bs BucketSeconds
		if err := rows.Scan(&bs.Bucket, &bs.Seconds); err != nil {
			return nil, fmt.Errorf("scanning bucket seconds: %w", err)
		}
		out = append(out, bs)
	}
	return out, rows.Err()
}

// SectionVisits is the visit count for one section.
type SectionVisits struct {
	Section string
	Visits  int64
}

// SectionVisitCounts returns screen_view counts per section.
func (c *Client) SectionVisitCounts(ctx context.Context, tr TimeRange) ([]SectionVisits, error) {
	tr = tr.Normalize()

	query := psq.
		Select("section", "COUNT(*) AS visits").
		From(c.table).
		Where(sq.Eq{"event_name": "screen_view"}).
		Where("section IS NOT NULL").
		Where(sq.GtOrEq{"event_time": tr.From}).
		Where(sq.LtOrEq{"event_time": tr.To}).
		GroupBy("section").
		OrderBy("visits DESC")

	rows, err := c.run(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []SectionVisits
	for rows.Next() {
		var sv SectionVisits
		if err := rows.Scan(&sv.Section, &sv.Visits); err != nil {
			return nil, fmt.Errorf("scanning section visits: %w", err)
		}
		out = append(out, sv)
	}
	return out, rows.Err()
}

// SearchStat is the usage count for one search term.
type SearchStat struct {
	Term  string
	Count int64
}

// SearchStatistics returns the most frequent search terms.
func (c *Client) SearchStatistics(ctx context.Context, tr TimeRange, limit uint64) ([]SearchStat, error) {
	tr = tr.Normalize()
	if limit == 0 {
		limit = 25
	}

	query := psq.
		Select("search_term", "COUNT(*) AS count").
		From(c.table).
		Where(sq.Eq{"event_name": "search"}).
		Where("search_term IS NOT NULL").
		Where(sq.GtOrEq{"event_time": tr.From}).
		Where(sq.LtOrEq{"event_time": tr.To}).
		GroupBy("search_term").
		OrderBy("count DESC").
		Limit(limit)

	rows, err := c.run(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []SearchStat
	for rows.Next() {
		var ss SearchStat
		if err := rows.Scan(&ss.Term, &ss.Count); err != nil {
			return nil, fmt.Errorf("scanning search stat: %w", err)
		}
		out = append(out, ss)
	}
	return out, rows.Err()
}

// PushStats summarizes push notification delivery for a range.
type PushStats struct {
	Received int64
	Opened   int64
}

// PushNotificationStats returns received and opened notification counts.
func (c *Client) PushNotificationStats(ctx context.Context, tr TimeRange) (PushStats, error) {
	tr = tr.Normalize()

	query := psq.
		Select(
			"COUNT(*) FILTER (WHERE event_name = 'notification_receive') AS received",
			"COUNT(*) FILTER (WHERE event_name = 'notification_open') AS opened",
		).
		From(c.table).
		Where(sq.Eq{"event_name": []string{"notification_receive", "notification_open"}}).
		Where(sq.GtOrEq{"event_time": tr.From}).
		Where(sq.LtOrEq{"event_time": tr.To})

	var ps PushStats
	if err := c.runRow(ctx, query, &ps.Received, &ps.Opened); err != nil {
		return PushStats{}, err
	}
	return ps, nil
}

// EventCount is the occurrence count for one event name.
type EventCount struct {
	Name  string
	Count int64
}

// EventCounts returns occurrence counts per event name, optionally filtered
// to the given names.
func (c *Client) EventCounts(ctx context.Context, tr TimeRange, names []string) ([]EventCount, error) {
	tr = tr.Normalize()

	query := psq.
		Select("event_name", "COUNT(*) AS count").
		From(c.table).
		Where(sq.GtOrEq{"event_time": tr.From}).
		Where(sq.LtOrEq{"event_time": tr.To}).
		GroupBy("event_name").
		OrderBy("count DESC")
	if len(names) > 0 {
		query = query.Where(sq.Eq{"event_name": names})
	}

	rows, err := c.run(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []EventCount
	for rows.Next() {
		var ec EventCount
		if err := rows.Scan(&ec.Name, &ec.Count); err != nil {
			return nil, fmt.Errorf("scanning event count: %w", err)
		}
		out = append(out, ec)
	}
	return out, rows.Err()
}

// AverageOnboardingSeconds returns the mean time users spend in onboarding
// screens before their first completed session.
func (c *Client) AverageOnboardingSeconds(ctx context.Context, tr TimeRange) (float64, error) {
	tr = tr.Normalize()

	query := psq.
		Select("COALESCE(AVG(engagement_ms) / 1000.0, 0) AS seconds").
		From(c.table).
		Where(sq.Eq{"event_name": "user_engagement", "section": "Onboarding"}).
		Where(sq.GtOrEq{"event_time": tr.From}).
		Where(sq.LtOrEq{"event_time": tr.To})

	var seconds float64
	if err := c.runRow(ctx, query, &seconds); err != nil {
		return 0, err
	}
	return seconds, nil
}

// AverageSessionSeconds returns the mean engagement time per user session.
func (c *Client) AverageSessionSeconds(ctx context.Context, tr TimeRange) (float64, error) {
	tr = tr.Normalize()

	inner := psq.
		Select("session_id", "SUM(engagement_ms) / 1000.0 AS seconds").
		From(c.table).
		Where(sq.Eq{"event_name": "user_engagement"}).
		Where("session_id IS NOT NULL").
		Where(sq.GtOrEq{"event_time": tr.From}).
		Where(sq.LtOrEq{"event_time": tr.To}).
		GroupBy("session_id")

	query := psq.
		Select("COALESCE(AVG(seconds), 0)").
		FromSelect(inner, "per_session")

	var seconds float64
	if err := c.runRow(ctx, query, &seconds); err != nil {
		return 0, err
	}
	return seconds, nil
}

// ActiveUsers pairs active users in a range with the all-time user count.
type ActiveUsers struct {
	Active int64
	Total  int64
}

// ActiveTotalUsers returns distinct active users in the range and distinct
// users ever seen.
func (c *Client) ActiveTotalUsers(ctx context.Context, tr TimeRange) (ActiveUsers, error) {
	tr = tr.Normalize()

	active := psq.
		Select("COUNT(DISTINCT user_id)").
		From(c.table).
		Where("user_id IS NOT NULL").
		Where(sq.GtOrEq{"event_time": tr.From}).
		Where(sq.LtOrEq{"event_time": tr.To})

	activeSQL, activeArgs, err := active.ToSql()
	if err != nil {
		return ActiveUsers{}, fmt.Errorf("building active users query: %w", err)
	}

	var au ActiveUsers
	if err := c.db.QueryRowContext(ctx, activeSQL, activeArgs...).Scan(&au.Active); err != nil {
		return ActiveUsers{}, fmt.Errorf("querying active users: %w", err)
	}

	totalSQL := fmt.Sprintf("SELECT COUNT(DISTINCT user_id) FROM %s WHERE user_id IS NOT NULL", c.table)
	if err := c.db.QueryRowContext(ctx, totalSQL).Scan(&au.Total); err != nil {
		return ActiveUsers{}, fmt.Errorf("querying total users: %w", err)
	}
	return au, nil
}

func (c *Client) run(ctx context.Context, query sq.SelectBuilder) (*sql.Rows, error) {
	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}
	rows, err := c.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("executing query: %w", err)
	}
	return rows, nil
}

func (c *Client) runRow(ctx context.Context, query sq.SelectBuilder, dest ...any) error {
	sqlStr, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("building query: %w", err)
	}
	if err := c.db.QueryRowContext(ctx, sqlStr, args...).Scan(dest...); err != nil {
		return fmt.Errorf("executing query: %w", err)
	}
	return nil
}
