package index

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bad33ndj3/docdex/internal/domain"
)

func TestParseQuery_TermsAreImplicitAND(t *testing.T) {
	q, err := ParseQuery("consumer config")
	require.NoError(t, err)
	assert.Equal(t, []string{"consumer", "config"}, q.Terms)
	assert.Empty(t, q.Phrases)
}

func TestParseQuery_Phrase(t *testing.T) {
	q, err := ParseQuery(`install "exact phrase here" deploy`)
	require.NoError(t, err)
	assert.Equal(t, []string{"install", "deploy"}, q.Terms)
	assert.Equal(t, []string{"exact phrase here"}, q.Phrases)
}

func TestParseQuery_FieldPrefixes(t *testing.T) {
	q, err := ParseQuery("alias:bun path:llms.txt heading:install level:<=2 fetch")
	require.NoError(t, err)
	assert.Equal(t, "bun", q.Alias)
	assert.Equal(t, "llms.txt", q.Path)
	assert.Equal(t, []string{"install"}, q.HeadingTerms)
	require.NotNil(t, q.Level)
	assert.True(t, q.Level.Matches(2))
	assert.False(t, q.Level.Matches(3))
	assert.Equal(t, []string{"fetch"}, q.Terms)
}

func TestParseQuery_FieldBindsOnlyNextToken(t *testing.T) {
	q, err := ParseQuery("heading:install guide")
	require.NoError(t, err)
	assert.Equal(t, []string{"install"}, q.HeadingTerms)
	assert.Equal(t, []string{"guide"}, q.Terms)
}

func TestParseQuery_FieldBindsPhrase(t *testing.T) {
	q, err := ParseQuery(`heading:"install guide"`)
	require.NoError(t, err)
	assert.Equal(t, []string{"install guide"}, q.HeadingPhrases)
}

func TestParseQuery_Escapes(t *testing.T) {
	q, err := ParseQuery(`fetch\(\) alias\:notafield`)
	require.NoError(t, err)
	// Escaped characters survive into the term text. UAX#29 then splits
	// off the parentheses but keeps a colon between letters inside the
	// word.
	assert.Contains(t, q.Terms, "fetch")
	assert.Empty(t, q.Alias)
	assert.Contains(t, q.Terms, "alias:notafield")
}

func TestParseQuery_EmptyFieldValueIsError(t *testing.T) {
	_, err := ParseQuery("alias: foo")
	require.Error(t, err)
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
	assert.Contains(t, err.Error(), "position")
}

func TestParseQuery_UnclosedQuoteIsForgiven(t *testing.T) {
	q, err := ParseQuery(`find "half open`)
	require.NoError(t, err)
	assert.Equal(t, []string{"half open"}, q.Phrases)
}

func TestParseQuery_FieldOnlyQueryIsNotEmpty(t *testing.T) {
	for _, input := range []string{"alias:docs", "path:llms.txt", "level:2"} {
		q, err := ParseQuery(input)
		require.NoError(t, err, "input %q", input)
		assert.False(t, q.IsEmpty(), "input %q", input)
	}

	q, err := ParseQuery("   ")
	require.NoError(t, err)
	assert.True(t, q.IsEmpty())
}

func TestParseQuery_UnknownFieldIsATerm(t *testing.T) {
	q, err := ParseQuery("weird:thing")
	require.NoError(t, err)
	assert.Empty(t, q.Alias)
	assert.Equal(t, []string{"weird:thing"}, q.Terms)
}

// For arbitrary input the parser terminates and never panics.
func TestParseQuery_Totality(t *testing.T) {
	inputs := []string{
		"", "   ", `"`, `""`, `\\`, `\`, ":", "::", "a:", "alias:",
		`alias:"x`, "level:abc", "level:", strings.Repeat("x ", 2048),
		strings.Repeat(`"`, 99), "日本語 пример \U0001F600",
		`\(\)\[\]\{\}\^\~\:\\`,
	}
	for _, in := range inputs {
		require.NotPanics(t, func() {
			q, err := ParseQuery(in)
			if err == nil {
				require.NotNil(t, q)
			} else {
				assert.Equal(t, domain.KindValidation, domain.KindOf(err))
			}
		}, "input %q", in)
	}
}
