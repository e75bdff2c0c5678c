package index

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/bad33ndj3/docdex/internal/domain"
	"github.com/bad33ndj3/docdex/internal/heading"
)

// Query is the parsed form of a caller-supplied query string.
// Space-separated terms are an implicit AND; field prefixes bind only
// the immediately following token or phrase.
type Query struct {
	// Terms are the tokenized free-text terms (ANDed).
	Terms []string

	// Phrases are quoted phrases matched verbatim (case-insensitive).
	Phrases []string

	// Alias restricts matches to one source ("alias:" prefix).
	Alias string

	// Path restricts matches to one file ("path:" prefix).
	Path string

	// HeadingTerms are terms bound to the heading field ("heading:").
	HeadingTerms []string

	// HeadingPhrases are phrases bound to the heading field.
	HeadingPhrases []string

	// Level is the parsed "level:" predicate, if present.
	Level *LevelFilter
}

// IsEmpty reports whether the query constrains nothing at all. A
// query with only field predicates (alias:, path:, level:) is not
// empty - it matches every document passing those filters.
func (q *Query) IsEmpty() bool {
	return len(q.Terms) == 0 && len(q.Phrases) == 0 &&
		len(q.HeadingTerms) == 0 && len(q.HeadingPhrases) == 0 &&
		q.Alias == "" && q.Path == "" && q.Level == nil
}

// knownFields are the recognized field prefixes.
var knownFields = map[string]bool{
	"alias":   true,
	"path":    true,
	"heading": true,
	"level":   true,
}

// escapable are the reserved characters a backslash may escape.
var escapable = map[rune]bool{
	'(': true, ')': true, '[': true, ']': true,
	'{': true, '}': true, '^': true, '~': true,
	':': true, '\\': true, '"': true,
}

// rawToken is one lexed unit prior to field assembly.
type rawToken struct {
	value  string
	phrase bool
	field  string
	pos    int
}

// ParseQuery parses a query string. For any input it terminates and
// returns either a query or a validation error with a position; it
// never panics. The parser is total over arbitrary input.
func ParseQuery(input string) (*Query, error) {
	tokens, err := lex(input)
	if err != nil {
		return nil, err
	}

	q := &Query{}
	for _, tok := range tokens {
		switch tok.field {
		case "":
			if tok.phrase {
				q.Phrases = append(q.Phrases, tok.value)
			} else {
				q.Terms = append(q.Terms, heading.Tokenize(tok.value)...)
			}
		case "alias":
			q.Alias = strings.ToLower(tok.value)
		case "path":
			q.Path = tok.value
		case "heading":
			if tok.phrase {
				q.HeadingPhrases = append(q.HeadingPhrases, tok.value)
			} else {
				q.HeadingTerms = append(q.HeadingTerms, heading.Tokenize(tok.value)...)
			}
		case "level":
			lf, lerr := ParseLevelFilter(tok.value)
			if lerr != nil {
				return nil, domain.ValidationErr("query",
					fmt.Sprintf("position %d: bad level filter %q", tok.pos, tok.value))
			}
			q.Level = lf
		}
	}
	return q, nil
}

// lex scans the input into raw tokens, honoring quotes, escapes, and
// field prefixes. Uses rune-safe iteration so multi-byte input cannot
// split a character.
func lex(input string) ([]rawToken, error) {
	var (
		tokens   []rawToken
		current  strings.Builder
		field    string
		fieldPos int
		tokenPos = -1
		inQuote  bool
		quotePos int
	)

	runes := []rune(input)

	flush := func(phrase bool, pos int) {
		if current.Len() == 0 && !phrase {
			field = ""
			tokenPos = -1
			return
		}
		tokens = append(tokens, rawToken{
			value:  current.String(),
			phrase: phrase,
			field:  field,
			pos:    pos,
		})
		current.Reset()
		field = ""
		tokenPos = -1
	}

	i := 0
	for i < len(runes) {
		ch := runes[i]

		if ch == '\\' && i+1 < len(runes) && escapable[runes[i+1]] {
			if tokenPos < 0 {
				tokenPos = i
			}
			current.WriteRune(runes[i+1])
			i += 2
			continue
		}

		if ch == '"' {
			if inQuote {
				flush(true, quotePos)
				inQuote = false
			} else {
				if current.Len() > 0 && field == "" {
					// A quote glued to a pending bare term ends it.
					flush(false, tokenPos)
				}
				inQuote = true
				quotePos = i
			}
			i++
			continue
		}

		if inQuote {
			current.WriteRune(ch)
			i++
			continue
		}

		if ch == ':' && field == "" && knownFields[strings.ToLower(current.String())] {
			field = strings.ToLower(current.String())
			fieldPos = tokenPos
			current.Reset()
			i++
			// A field prefix with nothing after it is an error.
			if i >= len(runes) || unicode.IsSpace(runes[i]) {
				return nil, domain.ValidationErr("query",
					fmt.Sprintf("position %d: field %q has no value", fieldPos+1, field))
			}
			continue
		}

		if unicode.IsSpace(ch) {
			flush(false, tokenPos)
			i++
			continue
		}

		if tokenPos < 0 {
			tokenPos = i
		}
		current.WriteRune(ch)
		i++
	}

	if inQuote {
		// Unclosed quote: treat the remainder as a phrase, matching
		// the forgiving behavior users expect from search boxes.
		flush(true, quotePos)
	} else {
		flush(false, tokenPos)
	}

	return tokens, nil
}
