package mcp

import (
	"context"
	"testing"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bad33ndj3/docdex/internal/common"
	"github.com/bad33ndj3/docdex/internal/index"
	"github.com/bad33ndj3/docdex/internal/pipeline"
	"github.com/bad33ndj3/docdex/internal/storage"
	"github.com/bad33ndj3/docdex/internal/testutil"
)

const tinyDoc = `# Docs
## Intro
Hello world.
## Usage`

func newHandlers(t *testing.T) (*Handlers, *testutil.MockFetcher) {
	t.Helper()
	store, err := storage.New(t.TempDir())
	require.NoError(t, err)

	fetch := testutil.NewMockFetcher()
	pipe := pipeline.New(store, fetch, index.NewHandleCache(),
		pipeline.WithLogger(common.QuietLogger()),
		pipeline.WithClock(testutil.FixedClock{T: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}),
	)
	return NewHandlers(pipe, common.QuietLogger()), fetch
}

func textOf(t *testing.T, res *sdk.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(*sdk.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestDocsAdd_RequiresArgs(t *testing.T) {
	h, _ := newHandlers(t)
	_, _, err := h.DocsAdd(context.Background(), nil, AddArgs{})
	assert.Error(t, err)
}

func TestDocsAddThenSearch(t *testing.T) {
	h, fetch := newHandlers(t)
	fetch.Content["https://example.com/llms.txt"] = tinyDoc

	res, _, err := h.DocsAdd(context.Background(), nil, AddArgs{
		Alias: "docs",
		URL:   "https://example.com/llms.txt",
	})
	require.NoError(t, err)
	assert.Contains(t, textOf(t, res), "alias: docs")

	res, _, err = h.DocsSearch(context.Background(), nil, SearchArgs{Query: "Hello"})
	require.NoError(t, err)
	out := textOf(t, res)
	assert.Contains(t, out, `"3-3"`)
	assert.Contains(t, out, "Hello world.")
}

func TestDocsGet(t *testing.T) {
	h, fetch := newHandlers(t)
	fetch.Content["https://example.com/llms.txt"] = tinyDoc

	_, _, err := h.DocsAdd(context.Background(), nil, AddArgs{
		Alias: "docs", URL: "https://example.com/llms.txt",
	})
	require.NoError(t, err)

	res, _, err := h.DocsGet(context.Background(), nil, GetArgs{Alias: "docs", Lines: "2-3"})
	require.NoError(t, err)
	out := textOf(t, res)
	assert.Contains(t, out, "## Intro")
	assert.Contains(t, out, "Hello world.")
}

func TestDocsSearch_BadLevelFilter(t *testing.T) {
	h, _ := newHandlers(t)
	_, _, err := h.DocsSearch(context.Background(), nil, SearchArgs{Query: "x", Level: "nope"})
	assert.Error(t, err)
}

func TestDocsRemove_Missing(t *testing.T) {
	h, _ := newHandlers(t)
	_, _, err := h.DocsRemove(context.Background(), nil, RemoveArgs{Alias: "ghost"})
	assert.Error(t, err)
}
