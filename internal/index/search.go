package index

import (
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/bad33ndj3/docdex/internal/domain"
)

// BM25 tuning parameters. Heading matches must outrank content-only
// matches of comparable term frequency; headingBoost is the knob.
const (
	bm25K1       = 1.2
	bm25B        = 0.75
	headingBoost = 2.5
)

// SearchOptions control ranking output and snippet shape.
type SearchOptions struct {
	// Limit caps the number of hits (default 10).
	Limit int

	// HeadingOnly restricts matching to the heading field.
	HeadingOnly bool

	// Level is an optional predicate over heading levels.
	Level *LevelFilter

	// ContextLines asks for a +/-N window around the first match in
	// the hit's Context. Capped at 10.
	ContextLines int

	// BlockMode expands Context to the block's own section: its lines
	// from the heading up to the first subheading. Subsections are not
	// included.
	BlockMode bool

	// MaxBlockLines clamps block expansion; the context is flagged
	// truncated when the clamp applies. Zero means no clamp.
	MaxBlockLines int

	// SourceURL is stamped on each hit for citation output.
	SourceURL string
}

// termFrequency counts occurrences of each term.
type termFrequency map[string]int

// tfPool recycles term-frequency maps across scoring calls.
var tfPool = sync.Pool{
	New: func() any { return make(termFrequency, 32) },
}

func borrowTF() termFrequency   { return tfPool.Get().(termFrequency) }
func returnTF(tf termFrequency) { clear(tf); tfPool.Put(tf) }

// calcIDF computes inverse document frequency; rare terms score higher.
func calcIDF(numDocs, docFreq float64) float64 {
	return math.Log(1.0 + (numDocs-docFreq+0.5)/(docFreq+0.5))
}

// calcTF computes the BM25 term-frequency component with saturation
// and length normalization.
func calcTF(termCount, docLen, avgLen float64) float64 {
	if avgLen == 0 {
		avgLen = 1
	}
	denom := termCount + bm25K1*(1.0-bm25B+bm25B*(docLen/avgLen))
	if denom == 0 {
		return 0
	}
	return (termCount * (bm25K1 + 1.0)) / denom
}

type scoredDoc struct {
	doc   int
	score float64
}

// Search runs a parsed query against the handle and returns ranked
// hits. A query matching nothing returns an empty slice, not an error.
func (h *Handle) Search(q *Query, opts SearchOptions) []domain.SearchHit {
	if q == nil || q.IsEmpty() {
		return nil
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}

	candidates := h.candidates(q, opts.HeadingOnly)
	if len(candidates) == 0 {
		return nil
	}

	scored := h.score(q, candidates, opts.HeadingOnly)

	// Post-filters: phrases, field restrictions, level predicate.
	filtered := scored[:0]
	for _, sc := range scored {
		doc := &h.seg.Docs[sc.doc]
		if q.Alias != "" && doc.Alias != q.Alias {
			continue
		}
		if q.Path != "" && doc.Path != q.Path {
			continue
		}
		if opts.Level != nil && !opts.Level.Matches(doc.Level) {
			continue
		}
		if q.Level != nil && !q.Level.Matches(doc.Level) {
			continue
		}
		if !h.phrasesMatch(doc, q, opts.HeadingOnly) {
			continue
		}
		filtered = append(filtered, sc)
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		a, b := filtered[i], filtered[j]
		if a.score != b.score {
			return a.score > b.score
		}
		da, db := &h.seg.Docs[a.doc], &h.seg.Docs[b.doc]
		// Tie-breaks: shorter heading path, then more general level,
		// then lexicographic path.
		if len(da.HeadingDisplay) != len(db.HeadingDisplay) {
			return len(da.HeadingDisplay) < len(db.HeadingDisplay)
		}
		if da.Level != db.Level {
			return da.Level < db.Level
		}
		return da.HeadingJoined < db.HeadingJoined
	})

	if len(filtered) > limit {
		filtered = filtered[:limit]
	}

	hits := make([]domain.SearchHit, 0, len(filtered))
	for _, sc := range filtered {
		doc := &h.seg.Docs[sc.doc]
		window := h.window(doc, q, opts)
		hit := domain.SearchHit{
			Alias:       doc.Alias,
			SourceURL:   opts.SourceURL,
			File:        doc.Path,
			HeadingPath: doc.HeadingDisplay,
			Lines:       window.Lines,
			Snippet:     window.Content,
			Score:       sc.score,
			Level:       doc.Level,
			Anchor:      doc.Anchor,
		}
		if opts.BlockMode || opts.ContextLines > 0 {
			hit.Context = window
		}
		hits = append(hits, hit)
	}
	return hits
}

// candidates returns the documents containing every query term in at
// least one searched field (implicit AND).
func (h *Handle) candidates(q *Query, headingOnly bool) []int {
	terms := append([]string{}, q.Terms...)
	terms = append(terms, q.HeadingTerms...)

	if len(terms) == 0 {
		// Phrase-only and field-only queries start from every doc;
		// the phrase and field post-filters narrow the set.
		all := make([]int, len(h.seg.Docs))
		for i := range all {
			all[i] = i
		}
		return all
	}

	var result map[int]bool
	for _, term := range terms {
		matches := make(map[int]bool)
		for _, id := range h.seg.HeadingPostings[term] {
			matches[id] = true
		}
		if !headingOnly {
			for _, id := range h.seg.ContentPostings[term] {
				matches[id] = true
			}
		}
		if result == nil {
			result = matches
			continue
		}
		for id := range result {
			if !matches[id] {
				delete(result, id)
			}
		}
		if len(result) == 0 {
			return nil
		}
	}

	out := make([]int, 0, len(result))
	for id := range result {
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}

// score computes field-weighted BM25 for each candidate.
func (h *Handle) score(q *Query, candidates []int, headingOnly bool) []scoredDoc {
	terms := append([]string{}, q.Terms...)
	terms = append(terms, q.HeadingTerms...)
	numDocs := float64(len(h.seg.Docs))

	out := make([]scoredDoc, 0, len(candidates))
	for _, id := range candidates {
		doc := &h.seg.Docs[id]

		headingTF := borrowTF()
		for _, t := range doc.HeadingTerms {
			headingTF[t]++
		}
		contentTF := borrowTF()
		if !headingOnly {
			for _, t := range doc.ContentTerms {
				contentTF[t]++
			}
		}

		score := 0.0
		for _, term := range terms {
			if df := docFreq(h.seg.HeadingPostings, term); df > 0 && headingTF[term] > 0 {
				idf := calcIDF(numDocs, float64(df))
				tf := calcTF(float64(headingTF[term]), float64(len(doc.HeadingTerms)), h.seg.AvgHeadingLen)
				score += headingBoost * idf * tf
			}
			if headingOnly {
				continue
			}
			if df := docFreq(h.seg.ContentPostings, term); df > 0 && contentTF[term] > 0 {
				idf := calcIDF(numDocs, float64(df))
				tf := calcTF(float64(contentTF[term]), float64(len(doc.ContentTerms)), h.seg.AvgContentLen)
				score += idf * tf
			}
		}

		returnTF(headingTF)
		returnTF(contentTF)

		if score > 0 || len(terms) == 0 {
			out = append(out, scoredDoc{doc: id, score: score})
		}
	}
	return out
}

// phrasesMatch verifies quoted phrases case-insensitively against the
// stored content and heading display.
func (h *Handle) phrasesMatch(doc *Doc, q *Query, headingOnly bool) bool {
	headingText := strings.ToLower(strings.Join(doc.HeadingDisplay, " "))
	for _, p := range q.HeadingPhrases {
		if !strings.Contains(headingText, strings.ToLower(p)) {
			return false
		}
	}
	for _, p := range q.Phrases {
		lower := strings.ToLower(p)
		if strings.Contains(headingText, lower) {
			continue
		}
		if !headingOnly && strings.Contains(strings.ToLower(doc.Content), lower) {
			continue
		}
		return false
	}
	return true
}

// matchLine locates the first content line containing any query term
// or phrase. Returns the 1-based document line, falling back to the
// block start.
func (h *Handle) matchLine(doc *Doc, q *Query) int {
	needles := make([]string, 0, len(q.Terms)+len(q.Phrases))
	for _, t := range q.Terms {
		needles = append(needles, t)
	}
	for _, p := range q.Phrases {
		needles = append(needles, strings.ToLower(p))
	}
	if len(needles) == 0 {
		return doc.StartLine
	}

	for i, line := range strings.Split(doc.Content, "\n") {
		lower := strings.ToLower(line)
		for _, n := range needles {
			if strings.Contains(lower, n) {
				return doc.StartLine + i
			}
		}
	}
	return doc.StartLine
}

// window extracts the snippet window. The window's line range is what
// the hit reports in Lines, so the snippet and the citation always
// agree. Default is the matched line alone; ContextLines widens it;
// block mode returns the doc's own section (up to its first
// subheading, without subsections), clamped to MaxBlockLines with
// truncated=true when the clamp applies.
func (h *Handle) window(doc *Doc, q *Query, opts SearchOptions) *domain.HitContext {
	lines := strings.Split(doc.Content, "\n")

	if opts.BlockMode {
		truncated := false
		end := len(lines)
		if opts.MaxBlockLines > 0 && end > opts.MaxBlockLines {
			end = opts.MaxBlockLines
			truncated = true
		}
		return &domain.HitContext{
			Lines:     domain.FormatLines(doc.StartLine, doc.StartLine+end-1),
			Content:   strings.Join(lines[:end], "\n"),
			Truncated: truncated,
		}
	}

	n := opts.ContextLines
	if n > 10 {
		n = 10
	}
	match := h.matchLine(doc, q) - doc.StartLine
	lo := match - n
	if lo < 0 {
		lo = 0
	}
	hi := match + n
	if hi >= len(lines) {
		hi = len(lines) - 1
	}
	return &domain.HitContext{
		Lines:   domain.FormatLines(doc.StartLine+lo, doc.StartLine+hi),
		Content: strings.Join(lines[lo:hi+1], "\n"),
	}
}
