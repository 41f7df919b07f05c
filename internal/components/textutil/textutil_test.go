package textutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeName(t *testing.T) {
	require.Equal(t, "westernunion", NormalizeName("  Western \t Union\n"))
	require.Equal(t, "", NormalizeName(" "))
}

func TestTitleCase(t *testing.T) {
	testCases := []struct {
		ident    string
		expected string
	}{
		{ident: "western-union", expected: "Western Union"},
		{ident: "wise", expected: "Wise"},
		{ident: "money_gram.co", expected: "Money Gram Co"},
		{ident: "", expected: ""},
	}
	for _, test := range testCases {
		require.Equal(t, test.expected, TitleCase(test.ident), test.ident)
	}
}

func TestMatchAny(t *testing.T) {
	require.True(t, MatchAny("Authorised by the FCA", []string{"authorised"}))
	require.False(t, MatchAny("Send money abroad", []string{"fee", "rate"}))
}
