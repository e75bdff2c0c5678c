package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bad33ndj3/docdex/internal/domain"
)

func newStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := New(t.TempDir())
	require.NoError(t, err)
	return s
}

func sampleJSON(alias string) *domain.LlmsJson {
	return &domain.LlmsJson{
		Alias: alias,
		Source: domain.Source{
			URL:       "https://example.com/llms.txt",
			SHA256:    "abc",
			FetchedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
			Variant:   domain.VariantBase,
			Aliases:   []string{},
			Tags:      []string{},
		},
		Files:       []domain.FileInfo{{Path: "llms.txt", SHA256: "abc"}},
		LineIndex:   domain.LineIndex{TotalLines: 4},
		Diagnostics: []string{},
	}
}

func TestRoundTrip_LlmsTxtAndSidecars(t *testing.T) {
	s := newStorage(t)

	require.NoError(t, s.SaveLlmsTxt("docs", "# Docs\nbody\n"))
	got, err := s.LoadLlmsTxt("docs")
	require.NoError(t, err)
	assert.Equal(t, "# Docs\nbody\n", got)

	doc := sampleJSON("docs")
	require.NoError(t, s.SaveLlmsJson("docs", doc))
	loaded, err := s.LoadLlmsJson("docs")
	require.NoError(t, err)
	assert.Equal(t, doc, loaded)

	src := doc.Source
	require.NoError(t, s.SaveMetadata("docs", &src))
	meta, err := s.LoadMetadata("docs")
	require.NoError(t, err)
	assert.Equal(t, &src, meta)
}

func TestAtomicWrite_NoTmpLeftBehind(t *testing.T) {
	s := newStorage(t)
	require.NoError(t, s.SaveLlmsTxt("docs", "content"))

	dir, err := s.SourceDir("docs")
	require.NoError(t, err)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp")
	}
}

func TestExistsAndList(t *testing.T) {
	s := newStorage(t)
	assert.False(t, s.Exists("docs"))

	// llms.txt alone does not make a listed source.
	require.NoError(t, s.SaveLlmsTxt("half", "x"))
	require.NoError(t, s.SaveLlmsJson("docs", sampleJSON("docs")))
	require.NoError(t, s.SaveLlmsJson("api", sampleJSON("api")))

	assert.True(t, s.Exists("docs"))
	assert.False(t, s.Exists("half"))

	list, err := s.ListSources()
	require.NoError(t, err)
	assert.Equal(t, []string{"api", "docs"}, list)
}

func TestList_SkipsDotDirs(t *testing.T) {
	s := newStorage(t)
	require.NoError(t, os.MkdirAll(filepath.Join(s.Root(), ".hidden"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(s.Root(), ".hidden", "llms.json"), []byte("{}"), 0o644))

	list, err := s.ListSources()
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestDelete(t *testing.T) {
	s := newStorage(t)
	require.NoError(t, s.SaveLlmsJson("docs", sampleJSON("docs")))
	require.NoError(t, s.Delete("docs"))
	assert.False(t, s.Exists("docs"))

	err := s.Delete("docs")
	require.Error(t, err)
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
}

func TestAliasSafety(t *testing.T) {
	s := newStorage(t)
	for _, bad := range []string{"..", ".", "a/b", `a\b`, ".hidden", "UPPER", "", "9lead"} {
		err := s.SaveLlmsTxt(bad, "x")
		require.Error(t, err, "alias %q", bad)
		assert.Equal(t, domain.KindValidation, domain.KindOf(err), "alias %q", bad)
	}
}

func TestArchive(t *testing.T) {
	s := newStorage(t)
	require.NoError(t, s.SaveLlmsTxt("docs", "old content"))
	require.NoError(t, s.SaveLlmsJson("docs", sampleJSON("docs")))

	now := time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC)
	require.NoError(t, s.Archive("docs", now))

	stamps, err := s.ListArchives("docs")
	require.NoError(t, err)
	require.Equal(t, []string{"2025-06-02T09-30Z"}, stamps)

	content, err := s.LoadArchivedLlmsTxt("docs", stamps[0])
	require.NoError(t, err)
	assert.Equal(t, "old content", content)

	doc, err := s.LoadArchivedLlmsJson("docs", stamps[0])
	require.NoError(t, err)
	assert.Equal(t, "docs", doc.Alias)
}

func TestArchive_NothingToArchiveIsFine(t *testing.T) {
	s := newStorage(t)
	// First add: no prior files exist yet.
	_, err := s.SourceDir("docs")
	require.NoError(t, err)
	require.NoError(t, s.Archive("docs", time.Now()))

	stamps, err := s.ListArchives("docs")
	require.NoError(t, err)
	assert.Empty(t, stamps)
}

func TestSwapIndexDir(t *testing.T) {
	s := newStorage(t)

	build, err := s.IndexBuildDir("docs")
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(build, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(build, "segment.json"), []byte("new"), 0o644))

	live, err := s.IndexDir("docs")
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(live, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(live, "segment.json"), []byte("old"), 0o644))

	require.NoError(t, s.SwapIndexDir("docs"))

	data, err := os.ReadFile(filepath.Join(live, "segment.json"))
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))

	_, err = os.Stat(build)
	assert.True(t, os.IsNotExist(err))
}

func TestSwapIndexDir_MissingBuildFails(t *testing.T) {
	s := newStorage(t)
	err := s.SwapIndexDir("docs")
	require.Error(t, err)
	assert.Equal(t, domain.KindIndex, domain.KindOf(err))
}

func TestCleanBuildDir(t *testing.T) {
	s := newStorage(t)
	build, err := s.IndexBuildDir("docs")
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(build, 0o755))

	require.NoError(t, s.CleanBuildDir("docs"))
	_, err = os.Stat(build)
	assert.True(t, os.IsNotExist(err))

	// Idempotent when nothing is there.
	require.NoError(t, s.CleanBuildDir("docs"))
}
