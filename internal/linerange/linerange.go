// Package linerange parses line-range expressions used for retrieval:
// "N", "N-N", "N:N", "N+N", and comma-separated lists of those. Line
// numbers are 1-based and ranges are inclusive; overlapping ranges are
// merged.
package linerange

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/bad33ndj3/docdex/internal/domain"
)

// Range is one inclusive 1-based line span.
type Range struct {
	Start int
	End   int
}

// Parse parses a comma-separated range expression. Empty input, zero
// line numbers, and backwards ranges fail with a validation error.
func Parse(input string) ([]Range, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return nil, domain.ValidationErr("linerange", "empty range expression")
	}

	var out []Range
	for _, part := range strings.Split(trimmed, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, domain.ValidationErr("linerange", "empty range in list")
		}
		r, err := parseOne(part)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func parseOne(part string) (Range, error) {
	switch {
	case strings.Contains(part, "+"):
		start, count, err := splitPair(part, "+")
		if err != nil {
			return Range{}, err
		}
		if start < 1 {
			return Range{}, domain.ValidationErr("linerange", fmt.Sprintf("line %d is not 1-based", start))
		}
		if count < 1 {
			return Range{}, domain.ValidationErr("linerange", fmt.Sprintf("%q: count must be at least 1", part))
		}
		return Range{Start: start, End: start + count}, nil

	case strings.Contains(part, "-"):
		start, end, err := splitPair(part, "-")
		if err != nil {
			return Range{}, err
		}
		return validSpan(part, start, end)

	case strings.Contains(part, ":"):
		start, end, err := splitPair(part, ":")
		if err != nil {
			return Range{}, err
		}
		return validSpan(part, start, end)

	default:
		n, err := strconv.Atoi(part)
		if err != nil {
			return Range{}, domain.ValidationErr("linerange", fmt.Sprintf("%q is not a line number", part))
		}
		if n < 1 {
			return Range{}, domain.ValidationErr("linerange", fmt.Sprintf("line %d is not 1-based", n))
		}
		return Range{Start: n, End: n}, nil
	}
}

func splitPair(part, sep string) (int, int, error) {
	pieces := strings.SplitN(part, sep, 2)
	a, err := strconv.Atoi(strings.TrimSpace(pieces[0]))
	if err != nil {
		return 0, 0, domain.ValidationErr("linerange", fmt.Sprintf("%q is not a valid range", part))
	}
	b, err := strconv.Atoi(strings.TrimSpace(pieces[1]))
	if err != nil {
		return 0, 0, domain.ValidationErr("linerange", fmt.Sprintf("%q is not a valid range", part))
	}
	return a, b, nil
}

func validSpan(part string, start, end int) (Range, error) {
	if start < 1 {
		return Range{}, domain.ValidationErr("linerange", fmt.Sprintf("line %d is not 1-based", start))
	}
	if end < start {
		return Range{}, domain.ValidationErr("linerange", fmt.Sprintf("%q: end before start", part))
	}
	return Range{Start: start, End: end}, nil
}

// Merge sorts ranges and coalesces overlapping or adjacent spans.
func Merge(ranges []Range) []Range {
	if len(ranges) == 0 {
		return nil
	}
	sorted := make([]Range, len(ranges))
	copy(sorted, ranges)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Start != sorted[j].Start {
			return sorted[i].Start < sorted[j].Start
		}
		return sorted[i].End < sorted[j].End
	})

	out := []Range{sorted[0]}
	for _, r := range sorted[1:] {
		last := &out[len(out)-1]
		if r.Start <= last.End+1 {
			if r.End > last.End {
				last.End = r.End
			}
			continue
		}
		out = append(out, r)
	}
	return out
}

// Lines expands merged ranges into a strictly increasing list of
// distinct line numbers.
func Lines(ranges []Range) []int {
	var out []int
	for _, r := range Merge(ranges) {
		for n := r.Start; n <= r.End; n++ {
			out = append(out, n)
		}
	}
	return out
}

// Extract returns the requested lines from content, clamped to the
// document length. Lines beyond the end are silently dropped.
func Extract(content string, ranges []Range) []string {
	lines := strings.Split(content, "\n")
	total := len(lines)
	if total > 0 && lines[total-1] == "" {
		total--
	}

	var out []string
	for _, n := range Lines(ranges) {
		if n > total {
			break
		}
		out = append(out, lines[n-1])
	}
	return out
}
