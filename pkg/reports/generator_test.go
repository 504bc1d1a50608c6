package reports

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSummarizer struct {
	err   error
	calls []string
}

func (f *fakeSummarizer) Summarize(_ context.Context, name, _, data string) (string, error) {
	f.calls = append(f.calls, name)
	if f.err != nil {
		return "", f.err
	}
	return fmt.Sprintf("Summary of %s over %d bytes of data.", name, len(data)), nil
}

func staticSection(file, name string, data any) Section {
	return Section{
		File:        file,
		Name:        name,
		Description: "test section",
		Fetch: func(context.Context) (any, error) {
			return data, nil
		},
	}
}

func TestGenerator_WritesAllSections(t *testing.T) {
	dir := t.TempDir()
	summ := &fakeSummarizer{}
	gen := New(dir, summ, []Section{
		staticSection("active_users.md", "Active Users", map[string]int{"active": 42}),
		staticSection("top_users.md", "Top Users", []string{"u1", "u2"}),
	})

	require.NoError(t, gen.Run(context.Background()))

	content, err := os.ReadFile(filepath.Join(dir, "active_users.md"))
	require.NoError(t, err)
	assert.Contains(t, string(content), "# Active Users")
	assert.Contains(t, string(content), "Summary of Active Users")

	_, err = os.Stat(filepath.Join(dir, "top_users.md"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Active Users", "Top Users"}, summ.calls)
}

func TestGenerator_SkipsFailedSection(t *testing.T) {
	dir := t.TempDir()
	gen := New(dir, &fakeSummarizer{}, []Section{
		{
			File: "broken.md",
			Name: "Broken",
			Fetch: func(context.Context) (any, error) {
				return nil, errors.New("query timeout")
			},
		},
		staticSection("ok.md", "OK", 1),
	})

	require.NoError(t, gen.Run(context.Background()))

	_, err := os.Stat(filepath.Join(dir, "broken.md"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, "ok.md"))
	assert.NoError(t, err)
}

func TestGenerator_AllSectionsFailed(t *testing.T) {
	gen := New(t.TempDir(), &fakeSummarizer{err: errors.New("model unavailable")}, []Section{
		staticSection("a.md", "A", 1),
		staticSection("b.md", "B", 2),
	})

	err := gen.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all 2 report sections failed")
}

func TestGenerator_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "analytics")
	gen := New(dir, &fakeSummarizer{}, []Section{
		staticSection("a.md", "A", 1),
	})

	require.NoError(t, gen.Run(context.Background()))
	_, err := os.Stat(filepath.Join(dir, "a.md"))
	assert.NoError(t, err)
}

func TestDefaultSections_CoverResolverFiles(t *testing.T) {
	sections := DefaultSections(nil, nil)
	seen := make(map[string]bool, len(sections))
	for _, s := range sections {
		assert.False(t, seen[s.File], "duplicate section file %s", s.File)
		seen[s.File] = true
		assert.NotEmpty(t, s.Name)
		assert.NotNil(t, s.Fetch)
	}
	assert.Len(t, sections, 15)
}
