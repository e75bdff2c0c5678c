package index

import (
	"sort"

	"github.com/bad33ndj3/docdex/internal/domain"
)

// maxSuggestions caps how many fuzzy alternatives are returned.
const maxSuggestions = 5

// maxEditDistance bounds the Damerau-Levenshtein matcher. Each
// returned suggestion's distance to at least one query token is within
// this bound.
const maxEditDistance = 2

// Suggest computes fuzzy suggestions for a query that yielded zero
// hits, matching query tokens against the union of heading path
// segment tokens across all indexed documents.
func (h *Handle) Suggest(q *Query) []domain.Suggestion {
	tokens := append([]string{}, q.Terms...)
	tokens = append(tokens, q.HeadingTerms...)
	if len(tokens) == 0 {
		return nil
	}

	// Collect each distinct heading token with one representative doc.
	type candidate struct {
		term string
		doc  int
	}
	seen := map[string]int{}
	var candidates []candidate
	for i, doc := range h.seg.Docs {
		for _, t := range doc.HeadingTerms {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = i
			candidates = append(candidates, candidate{term: t, doc: i})
		}
	}

	var out []domain.Suggestion
	for _, c := range candidates {
		best := -1
		for _, qt := range tokens {
			if qt == c.term {
				best = -1 // exact token already matched nothing; skip
				break
			}
			d := damerauLevenshtein(qt, c.term, maxEditDistance)
			if d >= 0 && (best < 0 || d < best) {
				best = d
			}
		}
		if best < 0 {
			continue
		}
		doc := h.seg.Docs[c.doc]
		out = append(out, domain.Suggestion{
			Alias:       doc.Alias,
			HeadingPath: doc.HeadingDisplay,
			Term:        c.term,
			Distance:    best,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		return out[i].Term < out[j].Term
	})
	if len(out) > maxSuggestions {
		out = out[:maxSuggestions]
	}
	return out
}

// damerauLevenshtein computes the optimal-string-alignment distance
// between a and b, returning -1 when it exceeds bound. Runes, not
// bytes, so multi-byte input measures correctly.
func damerauLevenshtein(a, b string, bound int) int {
	ra, rb := []rune(a), []rune(b)
	la, lb := len(ra), len(rb)

	diff := la - lb
	if diff < 0 {
		diff = -diff
	}
	if diff > bound {
		return -1
	}

	prev2 := make([]int, lb+1)
	prev := make([]int, lb+1)
	cur := make([]int, lb+1)
	for j := 0; j <= lb; j++ {
		prev[j] = j
	}

	for i := 1; i <= la; i++ {
		cur[0] = i
		rowMin := cur[0]
		for j := 1; j <= lb; j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := cur[j-1] + 1
			sub := prev[j-1] + cost

			best := del
			if ins < best {
				best = ins
			}
			if sub < best {
				best = sub
			}
			if i > 1 && j > 1 && ra[i-1] == rb[j-2] && ra[i-2] == rb[j-1] {
				if tr := prev2[j-2] + 1; tr < best {
					best = tr
				}
			}
			cur[j] = best
			if best < rowMin {
				rowMin = best
			}
		}
		if rowMin > bound {
			return -1
		}
		prev2, prev, cur = prev, cur, prev2
	}

	if prev[lb] > bound {
		return -1
	}
	return prev[lb]
}
