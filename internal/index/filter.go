package index

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bad33ndj3/docdex/internal/domain"
)

// LevelFilter is a predicate over heading levels, applied as a
// post-filter on candidate hits. Supported textual forms:
//
//	=N  N      exact level
//	<N  <=N    upper bounds
//	>N  >=N    lower bounds
//	N,M,...    explicit list
//	N-M        inclusive range
type LevelFilter struct {
	op     string
	value  int
	hi     int
	levels map[int]bool
}

// ParseLevelFilter parses the textual predicate forms.
func ParseLevelFilter(input string) (*LevelFilter, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return nil, domain.ValidationErr("level", "empty level filter")
	}

	switch {
	case strings.HasPrefix(s, "<="):
		return cmpFilter("<=", s[2:])
	case strings.HasPrefix(s, ">="):
		return cmpFilter(">=", s[2:])
	case strings.HasPrefix(s, "<"):
		return cmpFilter("<", s[1:])
	case strings.HasPrefix(s, ">"):
		return cmpFilter(">", s[1:])
	case strings.HasPrefix(s, "="):
		return cmpFilter("=", s[1:])
	case strings.Contains(s, ","):
		levels := make(map[int]bool)
		for _, part := range strings.Split(s, ",") {
			n, err := parseLevel(part)
			if err != nil {
				return nil, err
			}
			levels[n] = true
		}
		return &LevelFilter{op: "in", levels: levels}, nil
	case strings.Contains(s, "-"):
		parts := strings.SplitN(s, "-", 2)
		lo, err := parseLevel(parts[0])
		if err != nil {
			return nil, err
		}
		hi, err := parseLevel(parts[1])
		if err != nil {
			return nil, err
		}
		if hi < lo {
			return nil, domain.ValidationErr("level", fmt.Sprintf("range %q: end before start", s))
		}
		return &LevelFilter{op: "range", value: lo, hi: hi}, nil
	default:
		return cmpFilter("=", s)
	}
}

func cmpFilter(op, rest string) (*LevelFilter, error) {
	n, err := parseLevel(rest)
	if err != nil {
		return nil, err
	}
	return &LevelFilter{op: op, value: n}, nil
}

func parseLevel(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 || n > 6 {
		return 0, domain.ValidationErr("level", fmt.Sprintf("%q is not a heading level (1-6)", strings.TrimSpace(s)))
	}
	return n, nil
}

// Matches applies the predicate to a heading level.
func (f *LevelFilter) Matches(level int) bool {
	switch f.op {
	case "=":
		return level == f.value
	case "<":
		return level < f.value
	case "<=":
		return level <= f.value
	case ">":
		return level > f.value
	case ">=":
		return level >= f.value
	case "in":
		return f.levels[level]
	case "range":
		return level >= f.value && level <= f.hi
	default:
		return true
	}
}

// String renders the filter back to its canonical textual form.
func (f *LevelFilter) String() string {
	switch f.op {
	case "in":
		parts := make([]string, 0, len(f.levels))
		for n := 1; n <= 6; n++ {
			if f.levels[n] {
				parts = append(parts, strconv.Itoa(n))
			}
		}
		return strings.Join(parts, ",")
	case "range":
		return fmt.Sprintf("%d-%d", f.value, f.hi)
	default:
		return f.op + strconv.Itoa(f.value)
	}
}
