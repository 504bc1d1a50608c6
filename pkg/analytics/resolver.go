package analytics

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Status classifies a resolution outcome so callers can tell an unknown
// category apart from a known category whose reports are missing.
type Status int

const (
	// StatusOK means at least one report file was readable.
	StatusOK Status = iota

	// StatusUnknownCategory means the category is outside the closed set.
	StatusUnknownCategory

	// StatusNoneReadable means the category is known but zero of its
	// report files could be read.
	StatusNoneReadable
)

// Result is the outcome of resolving a category. Text is non-empty exactly
// when Status is StatusOK.
type Result struct {
	Status Status
	Text   string
}

// Available reports whether grounding text was found.
func (r Result) Available() bool {
	return r.Status == StatusOK
}

// Resolver loads categorized report text from a directory of pre-generated
// markdown files.
type Resolver struct {
	dir string
}

// NewResolver creates a resolver rooted at dir.
func NewResolver(dir string) *Resolver {
	return &Resolver{dir: dir}
}

// Resolve concatenates the readable report files for a category, in table
// order, joined with a blank line. Unreadable files are logged and skipped;
// partial or total read failure is an ordinary outcome, never an error.
func (r *Resolver) Resolve(category Category) Result {
	files, ok := categoryFiles[category]
	if !ok {
		return Result{Status: StatusUnknownCategory}
	}

	parts := make([]string, 0, len(files))
	for _, name := range files {
		path := filepath.Join(r.dir, name)
		content, err := os.ReadFile(path)
		if err != nil {
			slog.Warn("analytics: skipping unreadable report", "file", name, "error", err)
			continue
		}
		parts = append(parts, string(content))
	}

	if len(parts) == 0 {
		return Result{Status: StatusNoneReadable}
	}
	return Result{Status: StatusOK, Text: strings.Join(parts, "\n\n")}
}
