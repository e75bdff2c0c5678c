// Package pipeline orchestrates the add, refresh, and remove flows.
// Add runs fetch -> parse -> write -> reindex; refresh runs fetch ->
// archive -> parse -> reindex with atomic swap -> write. It
// ties together the fetcher, parser, storage, and index components.
// Dependency injection via interfaces makes it fully testable.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phuslu/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/bad33ndj3/docdex/internal/anchors"
	"github.com/bad33ndj3/docdex/internal/common"
	"github.com/bad33ndj3/docdex/internal/domain"
	"github.com/bad33ndj3/docdex/internal/fetcher"
	"github.com/bad33ndj3/docdex/internal/index"
	"github.com/bad33ndj3/docdex/internal/parser"
	"github.com/bad33ndj3/docdex/internal/storage"
)

// llmsPath is the file name every block is indexed under.
const llmsPath = "llms.txt"

// Clock abstracts time access for reproducible tests.
type Clock interface {
	Now() time.Time
}

// RealClock uses the system time.
type RealClock struct{}

// Now returns the current time.
func (RealClock) Now() time.Time { return time.Now() }

// Pipeline is the single writer for a source. Callers serialize
// concurrent writes to the same alias externally; searches never
// mutate.
type Pipeline struct {
	store   *storage.Storage
	fetcher fetcher.Fetcher
	parser  *parser.Parser
	cache   *index.HandleCache
	clock   Clock
	logger  *log.Logger

	preferFull bool
}

// Option configures the Pipeline.
type Option func(*Pipeline)

// WithClock injects a test clock.
func WithClock(c Clock) Option {
	return func(p *Pipeline) { p.clock = c }
}

// WithLogger sets the pipeline logger.
func WithLogger(l *log.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithPreferFull upgrades sources to llms-full.txt when a refresh
// discovers one upstream.
func WithPreferFull(prefer bool) Option {
	return func(p *Pipeline) { p.preferFull = prefer }
}

// New wires a Pipeline from its dependencies.
func New(store *storage.Storage, f fetcher.Fetcher, cache *index.HandleCache, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:   store,
		fetcher: f,
		parser:  parser.New(),
		cache:   cache,
		clock:   RealClock{},
		logger:  common.GetLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// AddOptions tune the add flow.
type AddOptions struct {
	// Force replaces an existing source instead of failing.
	Force bool

	// Variant overrides the recorded flavor; empty means derived from
	// the URL.
	Variant domain.Variant

	// Aliases, Tags, and FilterNonEnglish are recorded on metadata.
	Aliases          []string
	Tags             []string
	FilterNonEnglish bool
}

// Add fetches a document and creates the source. All sidecars are
// written and the index swapped in before it returns; a fetch or parse
// failure leaves nothing on disk.
func (p *Pipeline) Add(ctx context.Context, alias, url string, opts AddOptions) (*domain.LlmsJson, error) {
	if err := domain.ValidateAlias(alias); err != nil {
		return nil, err
	}
	if p.store.Exists(alias) && !opts.Force {
		return nil, domain.E(domain.KindAlreadyExists, "add", "source "+alias+" already exists", nil)
	}

	op := uuid.NewString()
	p.logger.Info().Str("op", op).Str("alias", alias).Str("url", url).Msg("add: fetching")

	res, err := p.fetcher.FetchWithCache(ctx, url, "", "")
	if err != nil {
		return nil, err
	}

	src := domain.Source{
		URL:              res.FinalURL,
		ETag:             res.ETag,
		LastModified:     res.LastModified,
		SHA256:           res.SHA256,
		FetchedAt:        p.clock.Now().UTC(),
		Variant:          opts.Variant,
		Aliases:          opts.Aliases,
		Tags:             opts.Tags,
		FilterNonEnglish: opts.FilterNonEnglish,
	}
	if src.Variant == "" {
		src.Variant = variantForURL(src.URL)
	}

	doc, err := p.install(ctx, alias, res.Content, src)
	if err != nil {
		return nil, err
	}

	p.logger.Info().Str("op", op).Str("alias", alias).
		Int("blocks", countToc(doc.Toc)).Int("lines", doc.LineIndex.TotalLines).
		Msg("add: done")
	return doc, nil
}

// RefreshResult reports what a refresh did for one alias.
type RefreshResult struct {
	Alias string `json:"alias"`

	// Status is one of "updated", "unchanged", "error".
	Status string `json:"status"`

	// Diff is present when content changed.
	Diff *domain.DiffResult `json:"diff,omitempty"`

	// Err carries the failure for Status "error".
	Err error `json:"-"`
}

// Refresh performs the conditional update flow for one alias.
func (p *Pipeline) Refresh(ctx context.Context, alias string) (*RefreshResult, error) {
	if err := domain.ValidateAlias(alias); err != nil {
		return nil, err
	}
	src, err := p.store.LoadMetadata(alias)
	if err != nil {
		return nil, err
	}

	op := uuid.NewString()

	// A leftover build directory from an interrupted run is cleaned
	// before anything else.
	if err := p.store.CleanBuildDir(alias); err != nil {
		return nil, err
	}

	// Flavor upgrade: switch to llms-full.txt when policy prefers it
	// and one has appeared upstream.
	url := src.URL
	if p.preferFull && src.Variant != domain.VariantFull {
		if flavors, ferr := p.fetcher.CheckFlavors(ctx, src.URL); ferr == nil {
			for _, fl := range flavors {
				if fl.Name == "llms-full.txt" {
					p.logger.Info().Str("op", op).Str("alias", alias).Str("url", fl.URL).
						Msg("refresh: upgrading to llms-full.txt")
					url = fl.URL
					src.Variant = domain.VariantFull
					break
				}
			}
		}
	}

	// Validators only apply to the URL they were issued for.
	etag, lastModified := src.ETag, src.LastModified
	if url != src.URL {
		etag, lastModified = "", ""
	}

	res, err := p.fetcher.FetchWithCache(ctx, url, etag, lastModified)
	if err != nil {
		return nil, err
	}

	if res.NotModified {
		src.FetchedAt = p.clock.Now().UTC()
		src.ETag = res.ETag
		src.LastModified = res.LastModified
		if err := p.store.SaveMetadata(alias, src); err != nil {
			return nil, err
		}
		return &RefreshResult{Alias: alias, Status: "unchanged"}, nil
	}

	// The server may answer 200 with identical bytes; compare hashes
	// before paying for a reparse and archive.
	if res.SHA256 == src.SHA256 {
		src.FetchedAt = p.clock.Now().UTC()
		src.URL = res.FinalURL
		src.ETag = res.ETag
		src.LastModified = res.LastModified
		if err := p.store.SaveMetadata(alias, src); err != nil {
			return nil, err
		}
		return &RefreshResult{Alias: alias, Status: "unchanged"}, nil
	}

	priorJSON, err := p.store.LoadLlmsJson(alias)
	if err != nil {
		return nil, err
	}
	priorContent, err := p.store.LoadLlmsTxt(alias)
	if err != nil {
		return nil, err
	}

	if err := p.store.Archive(alias, p.clock.Now()); err != nil {
		return nil, err
	}

	src.URL = res.FinalURL
	src.ETag = res.ETag
	src.LastModified = res.LastModified
	src.SHA256 = res.SHA256
	src.FetchedAt = p.clock.Now().UTC()

	// Update order protects the prior state: the replacement index is
	// built and swapped before any sidecar is overwritten, so a
	// failure up to and including the swap leaves llms.json and
	// .index/ describing the same (old) content. Only after the swap
	// lands are the sidecars rewritten.
	doc, blocks, err := p.parseDoc(ctx, alias, res.Content, *src)
	if err != nil {
		return nil, err
	}
	if err := p.buildAndSwapIndex(alias, blocks); err != nil {
		return nil, err
	}
	if err := p.writeSidecars(alias, res.Content, doc); err != nil {
		return nil, err
	}

	diff := anchors.Diff(priorJSON.Toc, doc.Toc)
	diff = anchors.WithContent(diff, priorContent, res.Content)

	priorMap, err := p.store.LoadAnchors(alias)
	if err != nil {
		return nil, err
	}
	if err := p.store.SaveAnchors(alias, anchors.UpdateMap(priorMap, diff, p.clock.Now())); err != nil {
		return nil, err
	}
	p.cache.Invalidate(alias)

	p.logger.Info().Str("op", op).Str("alias", alias).
		Int("moved", len(diff.Moved)).Int("added", len(diff.Added)).Int("removed", len(diff.Removed)).
		Msg("refresh: updated")

	return &RefreshResult{Alias: alias, Status: "updated", Diff: &diff}, nil
}

// RefreshAll refreshes sources with bounded concurrency. A failure on
// one source never aborts the others; results come back in input
// order.
func (p *Pipeline) RefreshAll(ctx context.Context, aliases []string, concurrency int) []RefreshResult {
	if concurrency < 1 {
		concurrency = 1
	}
	sem := semaphore.NewWeighted(int64(concurrency))
	results := make([]RefreshResult, len(aliases))

	g, ctx := errgroup.WithContext(ctx)
	for i, alias := range aliases {
		g.Go(func() error {
			if err := sem.Acquire(ctx, 1); err != nil {
				results[i] = RefreshResult{Alias: alias, Status: "error", Err: err}
				return nil
			}
			defer sem.Release(1)

			res, err := p.Refresh(ctx, alias)
			if err != nil {
				results[i] = RefreshResult{Alias: alias, Status: "error", Err: err}
				return nil
			}
			results[i] = *res
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Remove deletes a source's entire directory subtree and drops its
// cached index handle.
func (p *Pipeline) Remove(alias string) error {
	if err := p.store.Delete(alias); err != nil {
		return err
	}
	p.cache.Invalidate(alias)
	return nil
}

// parseDoc parses content and assembles the llms.json sidecar plus
// the blocks to index (language filter already applied). Nothing is
// written to disk.
func (p *Pipeline) parseDoc(ctx context.Context, alias, content string, src domain.Source) (*domain.LlmsJson, []domain.HeadingBlock, error) {
	parsed, err := p.parser.Parse(ctx, content)
	if err != nil {
		return nil, nil, domain.E(domain.KindParse, "install", "parse "+alias, err)
	}

	blocks, stats := filterBlocks(parsed.Blocks, src.FilterNonEnglish)

	sum := sha256.Sum256([]byte(content))
	doc := &domain.LlmsJson{
		Alias:  alias,
		Source: src,
		Toc:    parsed.Toc,
		Files: []domain.FileInfo{
			{Path: llmsPath, SHA256: hex.EncodeToString(sum[:])},
		},
		LineIndex:   domain.LineIndex{TotalLines: parsed.TotalLines, ByteOffsets: false},
		Diagnostics: parsed.Diagnostics,
		FilterStats: stats,
	}
	if doc.Diagnostics == nil {
		doc.Diagnostics = []string{}
	}
	return doc, blocks, nil
}

// buildAndSwapIndex builds a replacement index in .index.new/ and
// renames it live.
func (p *Pipeline) buildAndSwapIndex(alias string, blocks []domain.HeadingBlock) error {
	buildDir, err := p.store.IndexBuildDir(alias)
	if err != nil {
		return err
	}
	writer, err := index.Create(buildDir)
	if err != nil {
		return err
	}
	writer.IndexBlocks(alias, llmsPath, blocks)
	if err := writer.Commit(); err != nil {
		// Leave .index.new/ for inspection; the next refresh cleans it.
		return err
	}
	return p.store.SwapIndexDir(alias)
}

// writeSidecars atomically persists llms.txt, llms.json, and
// metadata.json.
func (p *Pipeline) writeSidecars(alias, content string, doc *domain.LlmsJson) error {
	if err := p.store.SaveLlmsTxt(alias, content); err != nil {
		return err
	}
	if err := p.store.SaveLlmsJson(alias, doc); err != nil {
		return err
	}
	return p.store.SaveMetadata(alias, &doc.Source)
}

// install creates a source from scratch: sidecars first, then the
// index. Used by Add, where there is no prior state to protect - a
// failure mid-way just leaves a partially created alias that the next
// forced add overwrites.
func (p *Pipeline) install(ctx context.Context, alias, content string, src domain.Source) (*domain.LlmsJson, error) {
	doc, blocks, err := p.parseDoc(ctx, alias, content, src)
	if err != nil {
		return nil, err
	}
	if err := p.writeSidecars(alias, content, doc); err != nil {
		return nil, err
	}
	if err := p.buildAndSwapIndex(alias, blocks); err != nil {
		return nil, err
	}
	p.cache.Invalidate(alias)
	return doc, nil
}

// filterBlocks drops blocks whose heading has no ASCII letter when the
// non-English filter is on. Stats are only reported when the filter
// actually ran.
func filterBlocks(blocks []domain.HeadingBlock, filterNonEnglish bool) ([]domain.HeadingBlock, *domain.FilterStats) {
	if !filterNonEnglish {
		return blocks, nil
	}

	kept := make([]domain.HeadingBlock, 0, len(blocks))
	for _, b := range blocks {
		if hasASCIILetter(b.Path[len(b.Path)-1]) {
			kept = append(kept, b)
		}
	}

	stats := &domain.FilterStats{
		Total:   len(blocks),
		Indexed: len(kept),
		Skipped: len(blocks) - len(kept),
	}
	if stats.Total > 0 {
		stats.KeptPct = domain.ClampPct(100 * float64(stats.Indexed) / float64(stats.Total))
		stats.SkippedPct = domain.ClampPct(100 * float64(stats.Skipped) / float64(stats.Total))
	}
	return kept, stats
}

func hasASCIILetter(s string) bool {
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			return true
		}
	}
	return false
}

func variantForURL(url string) domain.Variant {
	switch {
	case strings.HasSuffix(url, "/llms-full.txt"):
		return domain.VariantFull
	case strings.HasSuffix(url, "/llms.txt"):
		return domain.VariantBase
	default:
		return domain.VariantCustom
	}
}

// List returns a summary row per cached source, sorted by alias.
func (p *Pipeline) List() ([]domain.SourceSummary, error) {
	aliasList, err := p.store.ListSources()
	if err != nil {
		return nil, err
	}

	out := make([]domain.SourceSummary, 0, len(aliasList))
	for _, alias := range aliasList {
		doc, err := p.store.LoadLlmsJson(alias)
		if err != nil {
			continue
		}
		out = append(out, domain.SourceSummary{
			Alias:      alias,
			URL:        doc.Source.URL,
			Variant:    doc.Source.Variant,
			FetchedAt:  doc.Source.FetchedAt,
			SHA256:     doc.Source.SHA256,
			TotalLines: doc.LineIndex.TotalLines,
			Headings:   countToc(doc.Toc),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Alias < out[j].Alias })
	return out, nil
}

func countToc(entries []domain.TocEntry) int {
	n := len(entries)
	for _, e := range entries {
		n += countToc(e.Children)
	}
	return n
}
