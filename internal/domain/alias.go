package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// aliasRe is the validated alias shape: lowercase, starts with a letter,
// then letters/digits/hyphen/underscore, 1-64 chars total.
var aliasRe = regexp.MustCompile(`^[a-z][a-z0-9-_]{0,63}$`)

// ValidateAlias rejects aliases that could escape the storage root or
// collide with hidden directories.
func ValidateAlias(alias string) error {
	if alias == "" {
		return ValidationErr("alias", "alias is empty")
	}
	if alias == "." || alias == ".." {
		return ValidationErr("alias", fmt.Sprintf("alias %q is reserved", alias))
	}
	if strings.ContainsAny(alias, `/\`) {
		return ValidationErr("alias", fmt.Sprintf("alias %q contains a path separator", alias))
	}
	if strings.HasPrefix(alias, ".") {
		return ValidationErr("alias", fmt.Sprintf("alias %q starts with a dot", alias))
	}
	if !aliasRe.MatchString(alias) {
		return ValidationErr("alias", fmt.Sprintf("alias %q does not match [a-z][a-z0-9-_]{0,63}", alias))
	}
	return nil
}

// NormalizeAlias lowercases the input and collapses runs of
// non-alphanumeric characters to single hyphens. The result must still
// pass ValidateAlias; normalization is not a guarantee of validity
// (e.g. an all-digit input still fails).
func NormalizeAlias(input string) string {
	var b strings.Builder
	b.Grow(len(input))
	lastHyphen := true // suppress a leading hyphen
	for _, r := range strings.ToLower(strings.TrimSpace(input)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	out := strings.Trim(b.String(), "-")
	if len(out) > 64 {
		out = out[:64]
		out = strings.Trim(out, "-")
	}
	return out
}

// FormatLines renders a 1-based inclusive range as "start-end".
func FormatLines(start, end int) string {
	return fmt.Sprintf("%d-%d", start, end)
}

// ParseLines splits a "start-end" string back into its bounds.
func ParseLines(s string) (start, end int, err error) {
	if _, serr := fmt.Sscanf(s, "%d-%d", &start, &end); serr != nil {
		return 0, 0, ValidationErr("lines", fmt.Sprintf("bad line range %q", s))
	}
	if start < 1 || end < start {
		return 0, 0, ValidationErr("lines", fmt.Sprintf("bad line range %q", s))
	}
	return start, end, nil
}
