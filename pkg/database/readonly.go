// Package database provides the read-only relational query layer used by the
// analytics report tooling. Every statement is validated against a write
// denylist before execution; the platform database is never mutated from this
// service.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// ErrNotReadOnly is returned for any statement that is not provably read-only.
var ErrNotReadOnly = errors.New("only read-only queries are allowed")

var (
	lineCommentPattern  = regexp.MustCompile(`--.*`)
	blockCommentPattern = regexp.MustCompile(`(?s)/\*.*?\*/`)
	whitespacePattern   = regexp.MustCompile(`\s+`)

	writePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\bINSERT\b`),
		regexp.MustCompile(`\bUPDATE\b`),
		regexp.MustCompile(`\bDELETE\b`),
		regexp.MustCompile(`\bDROP\b`),
		regexp.MustCompile(`\bCREATE\b`),
		regexp.MustCompile(`\bALTER\b`),
		regexp.MustCompile(`\bTRUNCATE\b`),
		regexp.MustCompile(`\bMERGE\b`),
		regexp.MustCompile(`\bREPLACE\b`),
		regexp.MustCompile(`\bEXEC\b`),
		regexp.MustCompile(`\bEXECUTE\b`),
		regexp.MustCompile(`\bCALL\b`),
		regexp.MustCompile(`\bGRANT\b`),
		regexp.MustCompile(`\bCOPY\b`),
	}

	allowedPatterns = []*regexp.Regexp{
		regexp.MustCompile(`^\s*SELECT\b`),
		regexp.MustCompile(`(?s)^\s*;?\s*WITH\b.*\bSELECT\b`),
		regexp.MustCompile(`^\s*SHOW\b`),
		regexp.MustCompile(`^\s*DESCRIBE\b`),
		regexp.MustCompile(`^\s*EXPLAIN\b`),
	}
)

// IsReadOnly reports whether a statement is strictly read-only: no write
// keyword anywhere and an allowed statement head. Comments are stripped
// before matching.
func IsReadOnly(query string) bool {
	clean := lineCommentPattern.ReplaceAllString(query, "")
	clean = blockCommentPattern.ReplaceAllString(clean, "")
	clean = strings.ToUpper(strings.TrimSpace(whitespacePattern.ReplaceAllString(clean, " ")))

	for _, p := range writePatterns {
		if p.MatchString(clean) {
			return false
		}
	}
	for _, p := range allowedPatterns {
		if p.MatchString(clean) {
			return true
		}
	}
	return false
}

// ReadOnly executes validated read-only queries against a platform database.
type ReadOnly struct {
	db *sql.DB
}

// NewReadOnly wraps an open database handle.
func NewReadOnly(db *sql.DB) *ReadOnly {
	return &ReadOnly{db: db}
}

// Open connects to PostgreSQL and wraps the handle in a ReadOnly layer.
func Open(dsn string, maxOpenConns int) (*ReadOnly, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
	}
	return NewReadOnly(db), nil
}

// DB exposes the underlying handle, e.g. for the warehouse client.
func (r *ReadOnly) DB() *sql.DB {
	return r.db
}

// Close closes the underlying handle.
func (r *ReadOnly) Close() error {
	return r.db.Close()
}

// Query runs a read-only statement and returns rows as column-name keyed maps
// with JSON-safe values.
func (r *ReadOnly) Query(ctx context.Context, query string, args ...any) ([]map[string]any, error) {
	if !IsReadOnly(query) {
		return nil, ErrNotReadOnly
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("executing query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading columns: %w", err)
	}

	var results []map[string]any
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = jsonSafe(values[i])
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}

	return results, nil
}

// jsonSafe converts driver values into types that marshal cleanly.
func jsonSafe(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case time.Time:
		return val.Format(time.RFC3339)
	case []byte:
		return string(val)
	default:
		return val
	}
}
