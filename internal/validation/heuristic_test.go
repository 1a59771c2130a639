package validation

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/teazle/autosocialai/internal/domain"
)

func TestDetectGibberish(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		text string
		want GibberishFlags
	}{
		{name: "plain words", text: "Save 50% Today", want: GibberishFlags{}},
		{name: "special heavy", text: "#@!$%^&*ab", want: GibberishFlags{TooManySpecialChars: true}},
		{name: "repeating", text: "aaaaa sale", want: GibberishFlags{RepeatingChars: true}},
		{name: "few words many special", text: "abc#@!$ defg", want: GibberishFlags{FewWordsManySpecial: true}},
		{name: "empty", text: "", want: GibberishFlags{}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, DetectGibberish(tc.text))
		})
	}
}

func TestClassifyHeuristically(t *testing.T) {
	t.Parallel()

	english := ClassifyHeuristically("New Collection Out Now")
	require.True(t, english.IsReadable)
	require.Equal(t, domain.LanguageEnglish, english.Language)
	require.Empty(t, english.Issues)

	mashed := ClassifyHeuristically("x7#kP@m9$qL")
	require.False(t, mashed.IsReadable)
	require.Equal(t, domain.LanguageGibberish, mashed.Language)
	require.NotEmpty(t, mashed.Issues)

	repeated := ClassifyHeuristically("zzzzzzz")
	require.Equal(t, domain.LanguageGibberish, repeated.Language)

	none := ClassifyHeuristically("   ")
	require.Equal(t, domain.LanguageNone, none.Language)
}

func TestSpecialCharRatio(t *testing.T) {
	t.Parallel()

	require.InDelta(t, 0.0, SpecialCharRatio("abc 123"), 1e-9)
	require.InDelta(t, 0.5, SpecialCharRatio("ab#$"), 1e-9)
	require.InDelta(t, 0.0, SpecialCharRatio(""), 1e-9)
}
