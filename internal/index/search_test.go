package index

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bad33ndj3/docdex/internal/domain"
)

// buildHandle writes blocks into a fresh index and opens it.
func buildHandle(t *testing.T, alias string, blocks []domain.HeadingBlock) *Handle {
	t.Helper()
	dir := t.TempDir()

	w, err := Create(dir)
	require.NoError(t, err)
	w.IndexBlocks(alias, "llms.txt", blocks)
	require.NoError(t, w.Commit())

	h, err := Open(dir)
	require.NoError(t, err)
	return h
}

func block(path []string, start, end, level int, anchor, content string) domain.HeadingBlock {
	return domain.HeadingBlock{
		Path:      path,
		StartLine: start,
		EndLine:   end,
		Level:     level,
		Anchor:    anchor,
		Content:   content,
	}
}

func tinyBlocks() []domain.HeadingBlock {
	return []domain.HeadingBlock{
		block([]string{"Docs"}, 1, 4, 1, "docs", "# Docs\n## Intro\nHello world.\n## Usage"),
		block([]string{"Docs", "Intro"}, 2, 3, 2, "docs/intro", "## Intro\nHello world."),
		block([]string{"Docs", "Usage"}, 4, 4, 2, "docs/usage", "## Usage"),
	}
}

func search(t *testing.T, h *Handle, query string, opts SearchOptions) []domain.SearchHit {
	t.Helper()
	q, err := ParseQuery(query)
	require.NoError(t, err)
	return h.Search(q, opts)
}

func TestSearch_TinyDocHello(t *testing.T) {
	h := buildHandle(t, "docs", tinyBlocks())

	hits := search(t, h, "Hello", SearchOptions{})
	require.NotEmpty(t, hits)

	top := hits[0]
	assert.Equal(t, "docs", top.Alias)
	assert.Equal(t, []string{"Docs", "Intro"}, top.HeadingPath)
	// The hit cites the matched line, and the snippet covers exactly
	// that range.
	assert.Equal(t, "3-3", top.Lines)
	assert.Contains(t, top.Snippet, "Hello world.")
	assert.Equal(t, "docs/intro", top.Anchor)
}

func TestSearch_HeadingMatchOutranksContentMatch(t *testing.T) {
	blocks := []domain.HeadingBlock{
		block([]string{"Install"}, 1, 3, 1, "install", "# Install\nsome setup text\nmore text"),
		block([]string{"Overview"}, 4, 6, 1, "overview", "# Overview\nrun the install command\nother text"),
	}
	h := buildHandle(t, "docs", blocks)

	hits := search(t, h, "install", SearchOptions{})
	require.Len(t, hits, 2)
	assert.Equal(t, "install", hits[0].Anchor)
	assert.Greater(t, hits[0].Score, hits[1].Score)
}

func TestSearch_LevelFilters(t *testing.T) {
	blocks := []domain.HeadingBlock{
		block([]string{"Title"}, 1, 2, 1, "title", "# Title\nalpha"),
		block([]string{"Title", "Section A"}, 3, 4, 2, "title/section-a", "## Section A\nalpha"),
		block([]string{"Title", "Section A", "Subsection"}, 5, 6, 3, "title/section-a/subsection", "### Subsection\nalpha"),
	}
	h := buildHandle(t, "docs", blocks)

	le2, err := ParseLevelFilter("<=2")
	require.NoError(t, err)
	hits := search(t, h, "alpha", SearchOptions{Level: le2})
	require.Len(t, hits, 2)
	for _, hit := range hits {
		assert.LessOrEqual(t, hit.Level, 2)
	}

	eq3, err := ParseLevelFilter("3")
	require.NoError(t, err)
	hits = search(t, h, "alpha", SearchOptions{Level: eq3})
	require.Len(t, hits, 1)
	assert.Equal(t, 3, hits[0].Level)
}

func TestSearch_LevelFieldPrefix(t *testing.T) {
	blocks := []domain.HeadingBlock{
		block([]string{"Title"}, 1, 2, 1, "title", "# Title\nalpha"),
		block([]string{"Title", "Sub"}, 3, 4, 3, "title/sub", "### Sub\nalpha"),
	}
	h := buildHandle(t, "docs", blocks)

	hits := search(t, h, "alpha level:3", SearchOptions{})
	require.Len(t, hits, 1)
	assert.Equal(t, 3, hits[0].Level)
}

func TestSearch_HeadingOnly(t *testing.T) {
	blocks := []domain.HeadingBlock{
		block([]string{"Fetch API"}, 1, 2, 1, "fetch-api", "# Fetch API\nnothing here"),
		block([]string{"Other"}, 3, 4, 1, "other", "# Other\nfetch appears in the body"),
	}
	h := buildHandle(t, "docs", blocks)

	hits := search(t, h, "fetch", SearchOptions{HeadingOnly: true})
	require.Len(t, hits, 1)
	assert.Equal(t, "fetch-api", hits[0].Anchor)
}

func TestSearch_PhraseFiltering(t *testing.T) {
	h := buildHandle(t, "docs", tinyBlocks())

	hits := search(t, h, `"Hello world."`, SearchOptions{})
	require.NotEmpty(t, hits)

	hits = search(t, h, `"goodbye world"`, SearchOptions{})
	assert.Empty(t, hits)
}

func TestSearch_TieBreakPrefersShorterPath(t *testing.T) {
	// Both headings tokenize to {guide, widget}, both bodies and levels
	// are identical, so the scores tie and only the path length orders
	// the hits.
	blocks := []domain.HeadingBlock{
		block([]string{"Guide", "Widget"}, 1, 1, 2, "guide/widget", "widget guide"),
		block([]string{"Widget Guide"}, 2, 2, 2, "widget-guide", "widget guide"),
	}
	h := buildHandle(t, "docs", blocks)

	hits := search(t, h, "widget", SearchOptions{})
	require.Len(t, hits, 2)
	assert.Equal(t, hits[0].Score, hits[1].Score)
	assert.Equal(t, "widget-guide", hits[0].Anchor)
}

func TestSearch_ContextWindow(t *testing.T) {
	content := "# Guide\nline two\nline three\nneedle here\nline five\nline six"
	blocks := []domain.HeadingBlock{
		block([]string{"Guide"}, 1, 6, 1, "guide", content),
	}
	h := buildHandle(t, "docs", blocks)

	hits := search(t, h, "needle", SearchOptions{ContextLines: 1})
	require.Len(t, hits, 1)
	require.NotNil(t, hits[0].Context)
	assert.Equal(t, "3-5", hits[0].Context.Lines)
	assert.Contains(t, hits[0].Context.Content, "needle here")
	assert.False(t, hits[0].Context.Truncated)
}

func TestSearch_BlockModeClamped(t *testing.T) {
	content := "# Guide\nneedle\nline 3\nline 4\nline 5"
	blocks := []domain.HeadingBlock{
		block([]string{"Guide"}, 1, 5, 1, "guide", content),
	}
	h := buildHandle(t, "docs", blocks)

	hits := search(t, h, "needle", SearchOptions{BlockMode: true, MaxBlockLines: 3})
	require.Len(t, hits, 1)
	ctx := hits[0].Context
	require.NotNil(t, ctx)
	assert.True(t, ctx.Truncated)
	assert.Equal(t, "1-3", ctx.Lines)

	hits = search(t, h, "needle", SearchOptions{BlockMode: true})
	ctx = hits[0].Context
	assert.False(t, ctx.Truncated)
	assert.Equal(t, "1-5", ctx.Lines)
}

func TestSearch_AliasFieldRestricts(t *testing.T) {
	dir := t.TempDir()
	w, err := Create(dir)
	require.NoError(t, err)
	w.IndexBlocks("one", "llms.txt", []domain.HeadingBlock{
		block([]string{"Shared"}, 1, 1, 1, "shared", "# Shared"),
	})
	require.NoError(t, w.Commit())
	h, err := Open(dir)
	require.NoError(t, err)

	hits := search(t, h, "shared alias:other", SearchOptions{})
	assert.Empty(t, hits)

	hits = search(t, h, "shared alias:one", SearchOptions{})
	assert.Len(t, hits, 1)
}

// A query with only field predicates matches every document passing
// the filters.
func TestSearch_FieldOnlyQueries(t *testing.T) {
	blocks := []domain.HeadingBlock{
		block([]string{"Title"}, 1, 2, 1, "title", "# Title\nalpha"),
		block([]string{"Title", "Sub"}, 3, 4, 2, "title/sub", "## Sub\nbeta"),
	}
	h := buildHandle(t, "docs", blocks)

	hits := search(t, h, "alias:docs", SearchOptions{})
	assert.Len(t, hits, 2)

	hits = search(t, h, "alias:other", SearchOptions{})
	assert.Empty(t, hits)

	hits = search(t, h, "level:2", SearchOptions{})
	require.Len(t, hits, 1)
	assert.Equal(t, "title/sub", hits[0].Anchor)

	hits = search(t, h, "path:llms.txt level:1", SearchOptions{})
	require.Len(t, hits, 1)
	assert.Equal(t, "title", hits[0].Anchor)
}

func TestIndexBlocks_ReplacesByAliasAndPath(t *testing.T) {
	dir := t.TempDir()
	w, err := Create(dir)
	require.NoError(t, err)

	w.IndexBlocks("docs", "llms.txt", []domain.HeadingBlock{
		block([]string{"Old"}, 1, 1, 1, "old", "# Old"),
	})
	w.IndexBlocks("docs", "llms.txt", []domain.HeadingBlock{
		block([]string{"New"}, 1, 1, 1, "new", "# New"),
	})
	require.NoError(t, w.Commit())

	h, err := Open(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, h.DocCount())

	hits := search(t, h, "old", SearchOptions{})
	assert.Empty(t, hits)
}

func TestOpen_MissingIndex(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
}

func TestOpen_RejectsWrongVersion(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "segment.json"), []byte(`{"version":99}`), 0o644))
	_, err := Open(dir)
	require.Error(t, err)
	assert.Equal(t, domain.KindIndex, domain.KindOf(err))
}

func TestSuggest_FuzzyHeadingTokens(t *testing.T) {
	blocks := []domain.HeadingBlock{
		block([]string{"Installation"}, 1, 2, 1, "installation", "# Installation\nsteps"),
		block([]string{"Configuration"}, 3, 4, 1, "configuration", "# Configuration\nkeys"),
	}
	h := buildHandle(t, "docs", blocks)

	q, err := ParseQuery("instalation")
	require.NoError(t, err)
	require.Empty(t, h.Search(q, SearchOptions{}))

	suggestions := h.Suggest(q)
	require.NotEmpty(t, suggestions)
	assert.Equal(t, "installation", suggestions[0].Term)
	assert.LessOrEqual(t, suggestions[0].Distance, 2)
	assert.Equal(t, "docs", suggestions[0].Alias)
}

func TestDamerauLevenshtein(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"abc", "abc", 0},
		{"abc", "abd", 1},
		{"abc", "acb", 1}, // transposition
		{"abc", "ab", 1},
		{"abc", "xyz", -1}, // beyond bound 2
		{"日本", "日木", 1},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, damerauLevenshtein(tc.a, tc.b, 2), "%q vs %q", tc.a, tc.b)
	}
}
