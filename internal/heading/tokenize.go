package heading

import (
	"strings"
	"unicode"

	"github.com/clipperhouse/uax29/v2/words"
)

// Tokenize splits text into lowercase search tokens using UAX#29 word
// segmentation. No stemming, no stopword removal - the index and the
// query parser both call this so the two can never disagree.
func Tokenize(text string) []string {
	var out []string
	iter := words.FromString(text)
	for iter.Next() {
		tok := iter.Value()
		if !hasAlphanumeric(tok) {
			continue
		}
		out = append(out, strings.ToLower(tok))
	}
	return out
}

// TokenizePath tokenizes a heading path string, additionally splitting
// on the "/" separators so ancestor segments match individually.
func TokenizePath(path string) []string {
	var out []string
	for _, part := range strings.Split(path, "/") {
		out = append(out, Tokenize(part)...)
	}
	return out
}

func hasAlphanumeric(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
