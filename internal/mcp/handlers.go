// Package mcp provides MCP tool handlers for the documentation cache.
// These handlers parse MCP request arguments and delegate to the
// pipeline.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/phuslu/log"

	"github.com/bad33ndj3/docdex/internal/domain"
	"github.com/bad33ndj3/docdex/internal/index"
	"github.com/bad33ndj3/docdex/internal/pipeline"
)

// AddArgs defines the arguments for the docs_add tool.
type AddArgs struct {
	Alias string `json:"alias" jsonschema_description:"Short name for the source (lowercase, e.g. 'bun')"`
	URL   string `json:"url" jsonschema_description:"URL of the llms.txt document to cache"`
	Force bool   `json:"force,omitempty" jsonschema_description:"Replace the source if it already exists"`
}

// SearchArgs defines the arguments for the docs_search tool.
type SearchArgs struct {
	Query       string   `json:"query" jsonschema_description:"Search query; supports quoted phrases and alias:/path:/heading:/level: prefixes"`
	Aliases     []string `json:"aliases,omitempty" jsonschema_description:"Sources to search (default: all cached sources)"`
	Limit       int      `json:"limit,omitempty" jsonschema_description:"Maximum hits to return (default 10)"`
	HeadingOnly bool     `json:"heading_only,omitempty" jsonschema_description:"Match only against headings"`
	Level       string   `json:"level,omitempty" jsonschema_description:"Heading level predicate, e.g. '<=2' or '3' or '2-4'"`
	Context     int      `json:"context,omitempty" jsonschema_description:"Lines of context around each match (max 10)"`
	Block       bool     `json:"block,omitempty" jsonschema_description:"Return each hit's heading section up to its first subheading"`
	MaxLines    int      `json:"max_lines,omitempty" jsonschema_description:"Clamp block expansion to this many lines"`
}

// GetArgs defines the arguments for the docs_get tool.
type GetArgs struct {
	Alias   string `json:"alias" jsonschema_description:"Source to read from"`
	Lines   string `json:"lines" jsonschema_description:"Line ranges, e.g. '120-142' or '36+20,200'"`
	Context int    `json:"context,omitempty" jsonschema_description:"Widen each range by this many lines"`
	Block   bool   `json:"block,omitempty" jsonschema_description:"Expand each range to its enclosing heading section"`
}

// RefreshArgs defines the arguments for the docs_refresh tool.
type RefreshArgs struct {
	Alias string `json:"alias,omitempty" jsonschema_description:"Source to refresh (default: all cached sources)"`
}

// RemoveArgs defines the arguments for the docs_remove tool.
type RemoveArgs struct {
	Alias string `json:"alias" jsonschema_description:"Source to delete"`
}

// TocArgs defines the arguments for the docs_toc tool.
type TocArgs struct {
	Alias string `json:"alias" jsonschema_description:"Source whose table of contents to return"`
}

// DiffArgs defines the arguments for the docs_diff tool.
type DiffArgs struct {
	Alias   string `json:"alias" jsonschema_description:"Source to diff against its latest archived snapshot"`
	Anchors bool   `json:"anchors,omitempty" jsonschema_description:"Also include the persisted anchor remap history"`
}

// Handlers wraps the pipeline and provides MCP tool handlers.
type Handlers struct {
	pipe   *pipeline.Pipeline
	logger *log.Logger
}

// NewHandlers creates handlers with the given pipeline and logger.
func NewHandlers(p *pipeline.Pipeline, logger *log.Logger) *Handlers {
	return &Handlers{pipe: p, logger: logger}
}

// DocsAdd handles the docs_add tool call.
func (h *Handlers) DocsAdd(ctx context.Context, req *mcp.CallToolRequest, args AddArgs) (*mcp.CallToolResult, any, error) {
	if strings.TrimSpace(args.Alias) == "" || strings.TrimSpace(args.URL) == "" {
		return nil, nil, fmt.Errorf("alias and url are required")
	}

	doc, err := h.pipe.Add(ctx, args.Alias, args.URL, pipeline.AddOptions{Force: args.Force})
	if err != nil {
		h.logger.Error().Err(err).Str("alias", args.Alias).Msg("docs_add failed")
		return nil, nil, err
	}

	msg := fmt.Sprintf("Cached %s.\n\nalias: %s\nlines: %d\nheadings: %d\nsha256: %s\n",
		args.URL, args.Alias, doc.LineIndex.TotalLines, countHeadings(doc.Toc), doc.Source.SHA256)
	return textResult(msg), nil, nil
}

// DocsSearch handles the docs_search tool call.
func (h *Handlers) DocsSearch(ctx context.Context, req *mcp.CallToolRequest, args SearchArgs) (*mcp.CallToolResult, any, error) {
	if strings.TrimSpace(args.Query) == "" {
		return nil, nil, fmt.Errorf("query is required")
	}

	opts := index.SearchOptions{
		Limit:         args.Limit,
		HeadingOnly:   args.HeadingOnly,
		ContextLines:  args.Context,
		BlockMode:     args.Block,
		MaxBlockLines: args.MaxLines,
	}
	if args.Level != "" {
		lf, err := index.ParseLevelFilter(args.Level)
		if err != nil {
			return nil, nil, err
		}
		opts.Level = lf
	}

	aliases := args.Aliases
	if len(aliases) == 0 {
		summaries, err := h.pipe.List()
		if err != nil {
			return nil, nil, err
		}
		for _, s := range summaries {
			aliases = append(aliases, s.Alias)
		}
	}

	res, aliasErrs := h.pipe.SearchMulti(aliases, args.Query, opts)
	for _, ae := range aliasErrs {
		h.logger.Warn().Err(ae.Err).Str("alias", ae.Alias).Msg("docs_search: source skipped")
	}

	return jsonResult(struct {
		*pipeline.SearchResult
		Skipped []string `json:"skipped_sources,omitempty"`
	}{res, aliasNames(aliasErrs)})
}

// DocsGet handles the docs_get tool call.
func (h *Handlers) DocsGet(ctx context.Context, req *mcp.CallToolRequest, args GetArgs) (*mcp.CallToolResult, any, error) {
	if strings.TrimSpace(args.Alias) == "" || strings.TrimSpace(args.Lines) == "" {
		return nil, nil, fmt.Errorf("alias and lines are required")
	}

	res, err := h.pipe.Get(args.Alias, args.Lines, pipeline.GetOptions{
		ContextLines: args.Context,
		Block:        args.Block,
	})
	if err != nil {
		return nil, nil, err
	}
	return jsonResult(res)
}

// DocsList handles the docs_list tool call.
func (h *Handlers) DocsList(ctx context.Context, req *mcp.CallToolRequest, args struct{}) (*mcp.CallToolResult, any, error) {
	summaries, err := h.pipe.List()
	if err != nil {
		return nil, nil, err
	}
	return jsonResult(summaries)
}

// DocsRefresh handles the docs_refresh tool call. Without an alias it
// refreshes every cached source; one failing source never aborts the
// rest.
func (h *Handlers) DocsRefresh(ctx context.Context, req *mcp.CallToolRequest, args RefreshArgs) (*mcp.CallToolResult, any, error) {
	if alias := strings.TrimSpace(args.Alias); alias != "" {
		res, err := h.pipe.Refresh(ctx, alias)
		if err != nil {
			return nil, nil, err
		}
		return jsonResult(res)
	}

	summaries, err := h.pipe.List()
	if err != nil {
		return nil, nil, err
	}
	aliases := make([]string, 0, len(summaries))
	for _, s := range summaries {
		aliases = append(aliases, s.Alias)
	}

	results := h.pipe.RefreshAll(ctx, aliases, 4)
	type row struct {
		Alias  string `json:"alias"`
		Status string `json:"status"`
		Error  string `json:"error,omitempty"`
	}
	rows := make([]row, 0, len(results))
	for _, r := range results {
		out := row{Alias: r.Alias, Status: r.Status}
		if r.Err != nil {
			out.Error = r.Err.Error()
		}
		rows = append(rows, out)
	}
	return jsonResult(rows)
}

// DocsRemove handles the docs_remove tool call.
func (h *Handlers) DocsRemove(ctx context.Context, req *mcp.CallToolRequest, args RemoveArgs) (*mcp.CallToolResult, any, error) {
	if strings.TrimSpace(args.Alias) == "" {
		return nil, nil, fmt.Errorf("alias is required")
	}
	if err := h.pipe.Remove(args.Alias); err != nil {
		return nil, nil, err
	}
	return textResult(fmt.Sprintf("Removed %s.", args.Alias)), nil, nil
}

// DocsToc handles the docs_toc tool call.
func (h *Handlers) DocsToc(ctx context.Context, req *mcp.CallToolRequest, args TocArgs) (*mcp.CallToolResult, any, error) {
	if strings.TrimSpace(args.Alias) == "" {
		return nil, nil, fmt.Errorf("alias is required")
	}
	toc, err := h.pipe.Toc(args.Alias)
	if err != nil {
		return nil, nil, err
	}
	return jsonResult(toc)
}

// DocsDiff handles the docs_diff tool call.
func (h *Handlers) DocsDiff(ctx context.Context, req *mcp.CallToolRequest, args DiffArgs) (*mcp.CallToolResult, any, error) {
	if strings.TrimSpace(args.Alias) == "" {
		return nil, nil, fmt.Errorf("alias is required")
	}

	diff, err := h.pipe.Diff(args.Alias)
	if err != nil {
		return nil, nil, err
	}
	if !args.Anchors {
		return jsonResult(diff)
	}

	remap, err := h.pipe.Anchors(args.Alias)
	if err != nil {
		return nil, nil, err
	}
	return jsonResult(struct {
		Diff    any `json:"diff"`
		Anchors any `json:"anchors"`
	}{diff, remap})
}

// countHeadings counts every entry of a toc tree, nested ones included.
func countHeadings(entries []domain.TocEntry) int {
	n := len(entries)
	for _, e := range entries {
		n += countHeadings(e.Children)
	}
	return n
}

func aliasNames(errs []pipeline.AliasError) []string {
	if len(errs) == 0 {
		return nil
	}
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.Alias)
	}
	return out
}

func textResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: msg}},
	}
}

func jsonResult(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, nil, err
	}
	return textResult(string(data)), nil, nil
}
