// Package index implements the per-source full-text search index:
// an inverted index over heading blocks persisted under .index/, with
// BM25 ranking, query parsing, snippet extraction, and fuzzy
// suggestions. Index-time and query-time tokenization both go through
// internal/heading so the two can never drift.
package index

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/bad33ndj3/docdex/internal/domain"
	"github.com/bad33ndj3/docdex/internal/heading"
)

// FormatVersion is bumped when the on-disk segment format changes.
// Old indexes are rejected and rebuilt from llms.txt.
const FormatVersion = 1

const segmentFile = "segment.json"

// Doc is one indexed heading block with its stored fields. Snippets
// are extracted from the stored Content at query time, never re-read
// from disk, so search stays self-contained.
type Doc struct {
	Alias          string   `json:"alias"`
	Path           string   `json:"path"`
	HeadingDisplay []string `json:"heading_display"`
	HeadingJoined  string   `json:"heading_joined"`
	Content        string   `json:"content"`
	StartLine      int      `json:"start_line"`
	EndLine        int      `json:"end_line"`
	Level          int      `json:"level"`
	Anchor         string   `json:"anchor"`
	HeadingTerms   []string `json:"heading_terms"`
	ContentTerms   []string `json:"content_terms"`
}

// Lines renders the doc's range as "start-end".
func (d Doc) Lines() string {
	return domain.FormatLines(d.StartLine, d.EndLine)
}

// segment is the persisted index: stored docs plus per-field postings.
type segment struct {
	Version         int              `json:"version"`
	Docs            []Doc            `json:"docs"`
	ContentPostings map[string][]int `json:"content_postings"`
	HeadingPostings map[string][]int `json:"heading_postings"`
	AvgContentLen   float64          `json:"avg_content_len"`
	AvgHeadingLen   float64          `json:"avg_heading_len"`
}

// Writer accumulates documents and commits them to a directory.
type Writer struct {
	dir  string
	docs []Doc
}

// Create initializes an empty index writer for the given directory,
// creating it if needed.
func Create(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, domain.IndexErr("index.create", err)
	}
	return &Writer{dir: dir}, nil
}

// IndexBlocks replaces all documents with the given alias and path,
// then adds one document per block. The replacement and the adds land
// in the same commit.
//
// A block's indexed content is its OWN segment: the lines from its
// heading up to its first child heading. Without this, a term in a
// subsection would also hit every ancestor block.
func (w *Writer) IndexBlocks(alias, path string, blocks []domain.HeadingBlock) {
	kept := w.docs[:0]
	for _, d := range w.docs {
		if d.Alias == alias && d.Path == path {
			continue
		}
		kept = append(kept, d)
	}
	w.docs = kept

	for i, b := range blocks {
		ownEnd := b.EndLine
		if i+1 < len(blocks) {
			if bound := blocks[i+1].StartLine - 1; bound < ownEnd {
				ownEnd = bound
			}
		}

		pv := heading.Path(b.Path)
		joined := strings.Join(pv.NormalizedSegments, "/")
		content := ownSegment(b, ownEnd)
		w.docs = append(w.docs, Doc{
			Alias:          alias,
			Path:           path,
			HeadingDisplay: b.Path,
			HeadingJoined:  joined,
			Content:        content,
			StartLine:      b.StartLine,
			EndLine:        ownEnd,
			Level:          b.Level,
			Anchor:         b.Anchor,
			HeadingTerms:   heading.TokenizePath(joined),
			ContentTerms:   heading.Tokenize(content),
		})
	}
}

// ownSegment trims a block's content to the lines before its first
// child heading. Blocks are in document order, so the next block's
// start bounds this block's own text.
func ownSegment(b domain.HeadingBlock, ownEnd int) string {
	if ownEnd >= b.EndLine {
		return b.Content
	}
	n := ownEnd - b.StartLine + 1
	lines := strings.SplitN(b.Content, "\n", n+1)
	if len(lines) > n {
		lines = lines[:n]
	}
	return strings.Join(lines, "\n")
}

// Commit builds postings and writes the segment atomically.
func (w *Writer) Commit() error {
	seg := segment{
		Version:         FormatVersion,
		Docs:            w.docs,
		ContentPostings: make(map[string][]int),
		HeadingPostings: make(map[string][]int),
	}

	var contentLen, headingLen int
	for i, d := range w.docs {
		contentLen += len(d.ContentTerms)
		headingLen += len(d.HeadingTerms)
		addPostings(seg.ContentPostings, d.ContentTerms, i)
		addPostings(seg.HeadingPostings, d.HeadingTerms, i)
	}
	if n := len(w.docs); n > 0 {
		seg.AvgContentLen = float64(contentLen) / float64(n)
		seg.AvgHeadingLen = float64(headingLen) / float64(n)
	}

	data, err := json.Marshal(seg)
	if err != nil {
		return domain.IndexErr("index.commit", err)
	}

	path := filepath.Join(w.dir, segmentFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return domain.IndexErr("index.commit", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return domain.IndexErr("index.commit", err)
	}
	return nil
}

func addPostings(postings map[string][]int, terms []string, docID int) {
	seen := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		postings[t] = append(postings[t], docID)
	}
}

// Handle is a read-only, fully-loaded view of one index. Handles are
// shared across concurrent readers; a handle stays valid after the
// on-disk index is swapped away beneath it.
type Handle struct {
	seg segment
}

// Open loads an index read-only.
func Open(dir string) (*Handle, error) {
	data, err := os.ReadFile(filepath.Join(dir, segmentFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.NotFoundErr("index.open", "index at "+dir)
		}
		return nil, domain.IndexErr("index.open", err)
	}

	var seg segment
	if err := json.Unmarshal(data, &seg); err != nil {
		return nil, domain.IndexErr("index.open", err)
	}
	if seg.Version != FormatVersion {
		return nil, domain.IndexErr("index.open",
			domain.ValidationErr("index", "incompatible index version; rebuild from llms.txt"))
	}
	return &Handle{seg: seg}, nil
}

// DocCount returns the number of indexed blocks.
func (h *Handle) DocCount() int { return len(h.seg.Docs) }

// docFreq returns how many documents contain the term in the given
// field postings.
func docFreq(postings map[string][]int, term string) int {
	return len(postings[term])
}
