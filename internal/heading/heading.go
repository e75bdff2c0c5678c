// Package heading normalizes raw markdown heading text into the three
// variants the rest of the system works with: display text for humans,
// a search-normalized string, and the token list used for indexing.
// It is the single source of truth for normalization so index-time and
// query-time tokenizers cannot drift.
package heading

import (
	"html"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// SegmentVariants holds the derived forms of one raw heading segment.
type SegmentVariants struct {
	// Display is the human-friendly text: markdown links reduced to
	// their label, anchor tags removed, HTML entities decoded, trimmed.
	Display string

	// Normalized is the search form: NFKD, combining marks dropped,
	// lowercased, punctuation collapsed to single spaces.
	Normalized string

	// Tokens is the whitespace split of Normalized.
	Tokens []string
}

// PathVariants aggregates the variants of an ordered heading path.
type PathVariants struct {
	DisplaySegments    []string
	NormalizedSegments []string

	// Tokens is the flat token list across all segments, for indexing.
	Tokens []string
}

// Segment computes the display and normalized variants for one raw
// heading segment. Given identical input the output is byte-identical
// across runs and platforms.
func Segment(raw string) SegmentVariants {
	stripped := stripLinksAndAnchors(raw)
	display := strings.TrimSpace(html.UnescapeString(stripped))
	normalized := NormalizeForSearch(display)
	return SegmentVariants{
		Display:    display,
		Normalized: normalized,
		Tokens:     strings.Fields(normalized),
	}
}

// Path computes variants for an entire heading path. An empty display
// form falls back to the raw text and an empty normalized form to the
// lowercased display form, so no level of the path disappears.
func Path(path []string) PathVariants {
	out := PathVariants{
		DisplaySegments:    make([]string, 0, len(path)),
		NormalizedSegments: make([]string, 0, len(path)),
	}

	for _, raw := range path {
		v := Segment(raw)

		display := v.Display
		if display == "" {
			display = raw
		}

		normalized := v.Normalized
		if normalized == "" {
			normalized = strings.ToLower(display)
		}

		tokens := v.Tokens
		if len(tokens) == 0 {
			tokens = strings.Fields(normalized)
		}

		out.DisplaySegments = append(out.DisplaySegments, display)
		out.NormalizedSegments = append(out.NormalizedSegments, normalized)
		out.Tokens = append(out.Tokens, tokens...)
	}

	return out
}

// stripLinksAndAnchors reduces [Label](url) to Label and drops <a ...>
// and </a> tags, leaving other angle-bracket text untouched.
func stripLinksAndAnchors(input string) string {
	var out strings.Builder
	out.Grow(len(input))
	runes := []rune(input)
	i := 0

	for i < len(runes) {
		switch runes[i] {
		case '[':
			if labelEnd, linkEnd, ok := findMarkdownLink(runes, i); ok {
				out.WriteString(string(runes[i+1 : labelEnd]))
				i = linkEnd + 1
				continue
			}
			out.WriteRune('[')
			i++
		case '<':
			if gt := indexRune(runes, i+1, '>'); gt >= 0 {
				tag := strings.ToLower(strings.TrimSpace(string(runes[i+1 : gt])))
				if tag == "a" || strings.HasPrefix(tag, "a ") || strings.HasPrefix(tag, "/a") {
					i = gt + 1
					continue
				}
			}
			out.WriteRune('<')
			i++
		default:
			out.WriteRune(runes[i])
			i++
		}
	}

	return out.String()
}

// findMarkdownLink locates a [label](target) starting at the given '['.
// Returns the index of the closing ']' and of the closing ')'.
func findMarkdownLink(runes []rune, start int) (labelEnd, linkEnd int, ok bool) {
	i := start + 1
	for i < len(runes) {
		switch runes[i] {
		case '\\':
			i += 2
		case ']':
			if i+1 < len(runes) && runes[i+1] == '(' {
				if close := findMatchingParen(runes, i+2); close >= 0 {
					return i, close, true
				}
			}
			return 0, 0, false
		default:
			i++
		}
	}
	return 0, 0, false
}

func findMatchingParen(runes []rune, pos int) int {
	depth := 1
	for pos < len(runes) {
		switch runes[pos] {
		case '\\':
			pos += 2
			continue
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return pos
			}
		}
		pos++
	}
	return -1
}

func indexRune(runes []rune, from int, want rune) int {
	for i := from; i < len(runes); i++ {
		if runes[i] == want {
			return i
		}
	}
	return -1
}

// NormalizeForSearch applies the shared normalization rules to arbitrary
// text: NFKD decomposition, combining marks dropped, lowercase, ASCII
// alphanumerics kept, all other ASCII and common markdown punctuation
// collapsed to single spaces. Non-ASCII letters and digits survive.
func NormalizeForSearch(display string) string {
	var b strings.Builder
	b.Grow(len(display))
	prevSpace := true

	for _, ch := range norm.NFKD.String(display) {
		if unicode.Is(unicode.Mn, ch) {
			continue
		}
		ch = unicode.ToLower(ch)
		switch {
		case ch >= 'a' && ch <= 'z', ch >= '0' && ch <= '9':
			b.WriteRune(ch)
			prevSpace = false
		case ch > unicode.MaxASCII && (unicode.IsLetter(ch) || unicode.IsDigit(ch)):
			b.WriteRune(ch)
			prevSpace = false
		default:
			// Whitespace, punctuation, markdown delimiters, and any
			// remaining symbol all collapse to a single space.
			if !prevSpace && b.Len() > 0 {
				b.WriteByte(' ')
				prevSpace = true
			}
		}
	}

	return strings.TrimSpace(b.String())
}
