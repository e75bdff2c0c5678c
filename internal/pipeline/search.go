package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"

	"github.com/bad33ndj3/docdex/internal/anchors"
	"github.com/bad33ndj3/docdex/internal/domain"
	"github.com/bad33ndj3/docdex/internal/index"
	"github.com/bad33ndj3/docdex/internal/linerange"
	"github.com/bad33ndj3/docdex/internal/parser"
)

// SearchResult bundles hits with the fallback suggestions computed
// when a query matches nothing.
type SearchResult struct {
	Hits        []domain.SearchHit  `json:"hits"`
	Suggestions []domain.Suggestion `json:"suggestions,omitempty"`
}

// handle returns the shared index handle for an alias, opening it
// through the double-checked cache on a miss.
func (p *Pipeline) handle(alias string) (*index.Handle, error) {
	if err := domain.ValidateAlias(alias); err != nil {
		return nil, err
	}
	return p.cache.Get(alias, func() (*index.Handle, error) {
		dir, err := p.store.IndexDir(alias)
		if err != nil {
			return nil, err
		}
		return index.Open(dir)
	})
}

// Search runs a query against one source.
func (p *Pipeline) Search(alias, query string, opts index.SearchOptions) (*SearchResult, error) {
	q, err := index.ParseQuery(query)
	if err != nil {
		return nil, err
	}

	h, err := p.handle(alias)
	if err != nil {
		return nil, err
	}

	if opts.SourceURL == "" {
		if meta, merr := p.store.LoadMetadata(alias); merr == nil {
			opts.SourceURL = meta.URL
		}
	}

	hits := h.Search(q, opts)
	res := &SearchResult{Hits: hits}
	if len(hits) == 0 {
		res.Suggestions = h.Suggest(q)
	}
	return res, nil
}

// AliasError pairs an alias with the error that kept it out of a
// multi-source search.
type AliasError struct {
	Alias string `json:"alias"`
	Err   error  `json:"-"`
}

// SearchMulti fans a query out across sources and merges hits by
// score descending. A missing or corrupt index for one alias
// contributes zero hits; its error is reported alongside the results,
// never thrown.
func (p *Pipeline) SearchMulti(aliases []string, query string, opts index.SearchOptions) (*SearchResult, []AliasError) {
	var (
		merged SearchResult
		errs   []AliasError
	)

	for _, alias := range aliases {
		res, err := p.Search(alias, query, opts)
		if err != nil {
			errs = append(errs, AliasError{Alias: alias, Err: err})
			continue
		}
		merged.Hits = append(merged.Hits, res.Hits...)
		merged.Suggestions = append(merged.Suggestions, res.Suggestions...)
	}

	sort.SliceStable(merged.Hits, func(i, j int) bool {
		return merged.Hits[i].Score > merged.Hits[j].Score
	})
	if opts.Limit > 0 && len(merged.Hits) > opts.Limit {
		merged.Hits = merged.Hits[:opts.Limit]
	}
	if len(merged.Hits) > 0 {
		merged.Suggestions = nil
	} else if len(merged.Suggestions) > 5 {
		merged.Suggestions = merged.Suggestions[:5]
	}
	return &merged, errs
}

// GetResult is the outcome of a line-range retrieval.
type GetResult struct {
	Alias string `json:"alias"`

	// Lines is the merged, strictly increasing list of line numbers.
	Lines []int `json:"lines"`

	// Content is the corresponding text, one element per line.
	Content []string `json:"content"`

	// Truncated is set when block clamping applied.
	Truncated bool `json:"truncated,omitempty"`
}

// GetOptions tune retrieval.
type GetOptions struct {
	// ContextLines widens each requested range by +/-N lines (N<=10).
	ContextLines int

	// Block expands each range to its smallest enclosing heading
	// block; ranges outside any block fall back to +/-ContextLines.
	Block bool

	// MaxBlockLines clamps block expansion.
	MaxBlockLines int
}

// Get retrieves lines from a source by range expression.
func (p *Pipeline) Get(alias, rangeExpr string, opts GetOptions) (*GetResult, error) {
	if err := domain.ValidateAlias(alias); err != nil {
		return nil, err
	}
	ranges, err := linerange.Parse(rangeExpr)
	if err != nil {
		return nil, err
	}

	content, err := p.store.LoadLlmsTxt(alias)
	if err != nil {
		return nil, err
	}

	truncated := false
	if opts.Block {
		ranges, truncated = p.expandToBlocks(alias, content, ranges, opts)
	} else if n := min(opts.ContextLines, 10); n > 0 {
		for i := range ranges {
			ranges[i].Start = max(1, ranges[i].Start-n)
			ranges[i].End += n
		}
	}

	return &GetResult{
		Alias:     alias,
		Lines:     linerange.Lines(ranges),
		Content:   linerange.Extract(content, ranges),
		Truncated: truncated,
	}, nil
}

// expandToBlocks widens each range to the smallest enclosing heading
// block, reconstructing blocks from the stored content.
func (p *Pipeline) expandToBlocks(alias, content string, ranges []linerange.Range, opts GetOptions) ([]linerange.Range, bool) {
	parsed, err := p.parser.Parse(context.Background(), content)
	if err != nil {
		return ranges, false
	}

	truncated := false
	out := make([]linerange.Range, 0, len(ranges))
	for _, r := range ranges {
		block, ok := parser.BlockForLine(parsed.Blocks, r.Start)
		if !ok {
			n := min(opts.ContextLines, 10)
			out = append(out, linerange.Range{Start: max(1, r.Start-n), End: r.End + n})
			continue
		}
		span := linerange.Range{Start: block.StartLine, End: block.EndLine}
		if opts.MaxBlockLines > 0 && span.End-span.Start+1 > opts.MaxBlockLines {
			span.End = span.Start + opts.MaxBlockLines - 1
			truncated = true
		}
		out = append(out, span)
	}
	return out, truncated
}

// Toc returns the table of contents for a source.
func (p *Pipeline) Toc(alias string) ([]domain.TocEntry, error) {
	doc, err := p.store.LoadLlmsJson(alias)
	if err != nil {
		return nil, err
	}
	return doc.Toc, nil
}

// Anchors returns the persisted anchor remap history.
func (p *Pipeline) Anchors(alias string) (*domain.AnchorsMap, error) {
	if err := domain.ValidateAlias(alias); err != nil {
		return nil, err
	}
	return p.store.LoadAnchors(alias)
}

// Diff compares the latest archived snapshot against the current
// state, with content slices for each changed section.
func (p *Pipeline) Diff(alias string) (*domain.DiffResult, error) {
	stamps, err := p.store.ListArchives(alias)
	if err != nil {
		return nil, err
	}
	if len(stamps) == 0 {
		return nil, domain.NotFoundErr("diff", "archive snapshot for "+alias)
	}
	latest := stamps[len(stamps)-1]

	priorJSON, err := p.store.LoadArchivedLlmsJson(alias, latest)
	if err != nil {
		return nil, err
	}
	priorContent, err := p.store.LoadArchivedLlmsTxt(alias, latest)
	if err != nil {
		return nil, err
	}
	curJSON, err := p.store.LoadLlmsJson(alias)
	if err != nil {
		return nil, err
	}
	curContent, err := p.store.LoadLlmsTxt(alias)
	if err != nil {
		return nil, err
	}

	res := anchors.Diff(priorJSON.Toc, curJSON.Toc)
	res = anchors.WithContent(res, priorContent, curContent)
	return &res, nil
}

// Verify recomputes the content hash and checks it against metadata,
// reporting a storage error on mismatch.
func (p *Pipeline) Verify(alias string) error {
	meta, err := p.store.LoadMetadata(alias)
	if err != nil {
		return err
	}
	content, err := p.store.LoadLlmsTxt(alias)
	if err != nil {
		return err
	}
	if sum := contentSHA256(content); sum != meta.SHA256 {
		return domain.E(domain.KindStorage, "verify",
			"llms.txt hash "+sum+" does not match metadata "+meta.SHA256, nil)
	}
	return nil
}

func contentSHA256(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
