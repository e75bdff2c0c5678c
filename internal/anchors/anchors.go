// Package anchors computes section-level diffs between two toc
// snapshots via anchor identity, and maintains the persisted anchor
// remap history (anchors.json).
package anchors

import (
	"sort"
	"strings"
	"time"

	"github.com/bad33ndj3/docdex/internal/domain"
	"github.com/bad33ndj3/docdex/internal/linerange"
)

// flatEntry is one toc node with its tree position discarded.
type flatEntry struct {
	anchor      string
	headingPath []string
	lines       string
}

func flatten(toc []domain.TocEntry, out map[string]flatEntry) {
	for _, e := range toc {
		out[e.Anchor] = flatEntry{
			anchor:      e.Anchor,
			headingPath: e.HeadingPath,
			lines:       e.Lines,
		}
		flatten(e.Children, out)
	}
}

// Diff compares a prior and a new toc. Anchors present in both with a
// changed line range become Moved; anchors only in one side become
// Added or Removed. A removed/added pair whose display heading paths
// are equal (the anchor changed because normalization changed, e.g. a
// punctuation edit) is folded into a Moved entry carrying the new
// anchor.
func Diff(prior, next []domain.TocEntry) domain.DiffResult {
	old := make(map[string]flatEntry)
	flatten(prior, old)
	cur := make(map[string]flatEntry)
	flatten(next, cur)

	var res domain.DiffResult

	for anchor, n := range cur {
		o, ok := old[anchor]
		if !ok {
			continue
		}
		if o.lines != n.lines {
			res.Moved = append(res.Moved, domain.DiffEntry{
				Anchor:      anchor,
				HeadingPath: n.headingPath,
				OldLines:    o.lines,
				NewLines:    n.lines,
			})
		}
	}

	removed := make(map[string]flatEntry)
	for anchor, o := range old {
		if _, ok := cur[anchor]; !ok {
			removed[anchor] = o
		}
	}
	added := make(map[string]flatEntry)
	for anchor, n := range cur {
		if _, ok := old[anchor]; !ok {
			added[anchor] = n
		}
	}

	// Pair up renamed anchors whose display path survived unchanged.
	byDisplay := make(map[string]string, len(removed))
	for anchor, o := range removed {
		byDisplay[displayKey(o.headingPath)] = anchor
	}
	for anchor, n := range added {
		oldAnchor, ok := byDisplay[displayKey(n.headingPath)]
		if !ok {
			continue
		}
		o := removed[oldAnchor]
		res.Moved = append(res.Moved, domain.DiffEntry{
			Anchor:      anchor,
			HeadingPath: n.headingPath,
			OldLines:    o.lines,
			NewLines:    n.lines,
		})
		delete(removed, oldAnchor)
		delete(added, anchor)
	}

	for _, o := range removed {
		res.Removed = append(res.Removed, domain.DiffEntry{
			Anchor:      o.anchor,
			HeadingPath: o.headingPath,
			Lines:       o.lines,
		})
	}
	for _, n := range added {
		res.Added = append(res.Added, domain.DiffEntry{
			Anchor:      n.anchor,
			HeadingPath: n.headingPath,
			Lines:       n.lines,
		})
	}

	sortEntries(res.Moved)
	sortEntries(res.Added)
	sortEntries(res.Removed)
	return res
}

func displayKey(path []string) string {
	return strings.Join(path, " > ")
}

func sortEntries(entries []domain.DiffEntry) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Anchor < entries[j].Anchor
	})
}

// WithContent fills each diff entry's Content slice from the archived
// (removed) or current (added/moved) document text.
func WithContent(res domain.DiffResult, priorContent, nextContent string) domain.DiffResult {
	for i, e := range res.Moved {
		res.Moved[i].Content = slice(nextContent, e.NewLines)
	}
	for i, e := range res.Added {
		res.Added[i].Content = slice(nextContent, e.Lines)
	}
	for i, e := range res.Removed {
		res.Removed[i].Content = slice(priorContent, e.Lines)
	}
	return res
}

func slice(content, lines string) string {
	if content == "" || lines == "" {
		return ""
	}
	ranges, err := linerange.Parse(lines)
	if err != nil {
		return ""
	}
	return strings.Join(linerange.Extract(content, ranges), "\n")
}

// UpdateMap appends the diff's moved entries to the persisted remap
// history, stamping updated_at. Existing mappings for the same anchor
// are replaced so the map reflects the latest remapping per anchor.
func UpdateMap(prior *domain.AnchorsMap, res domain.DiffResult, now time.Time) *domain.AnchorsMap {
	out := &domain.AnchorsMap{UpdatedAt: now.UTC()}

	replaced := make(map[string]bool, len(res.Moved))
	for _, e := range res.Moved {
		replaced[e.Anchor] = true
	}
	if prior != nil {
		for _, m := range prior.Mappings {
			if !replaced[m.Anchor] {
				out.Mappings = append(out.Mappings, m)
			}
		}
	}
	for _, e := range res.Moved {
		out.Mappings = append(out.Mappings, domain.AnchorMapping{
			Anchor:      e.Anchor,
			HeadingPath: e.HeadingPath,
			OldLines:    e.OldLines,
			NewLines:    e.NewLines,
		})
	}
	return out
}
