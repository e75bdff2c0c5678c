package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevelFilter_Forms(t *testing.T) {
	cases := []struct {
		input   string
		matches []int
	}{
		{"2", []int{2}},
		{"=3", []int{3}},
		{"<3", []int{1, 2}},
		{"<=2", []int{1, 2}},
		{">4", []int{5, 6}},
		{">=5", []int{5, 6}},
		{"1,3,5", []int{1, 3, 5}},
		{"2-4", []int{2, 3, 4}},
	}

	for _, tc := range cases {
		f, err := ParseLevelFilter(tc.input)
		require.NoError(t, err, "input %q", tc.input)

		want := make(map[int]bool)
		for _, n := range tc.matches {
			want[n] = true
		}
		for level := 1; level <= 6; level++ {
			assert.Equal(t, want[level], f.Matches(level), "input %q level %d", tc.input, level)
		}
	}
}

func TestParseLevelFilter_Invalid(t *testing.T) {
	for _, input := range []string{"", "0", "7", "abc", "<=x", "4-2", "1,9"} {
		_, err := ParseLevelFilter(input)
		assert.Error(t, err, "input %q", input)
	}
}

func TestLevelFilter_String(t *testing.T) {
	f, err := ParseLevelFilter("<=2")
	require.NoError(t, err)
	assert.Equal(t, "<=2", f.String())

	f, err = ParseLevelFilter("1,3")
	require.NoError(t, err)
	assert.Equal(t, "1,3", f.String())

	f, err = ParseLevelFilter("2-4")
	require.NoError(t, err)
	assert.Equal(t, "2-4", f.String())
}
