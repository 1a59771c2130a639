package validation

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/teazle/autosocialai/internal/domain"
)

const (
	specialRatioLimit    = 0.5
	specialRatioFewWords = 0.3
	fewWordsLimit        = 3
	fewWordsMinLength    = 10
	repeatRunLength      = 5
	englishRatio         = 0.7
)

var wordExpr = regexp.MustCompile(`\b\w+\b`)

// GibberishFlags lists what made a piece of text look like gibberish.
type GibberishFlags struct {
	TooManySpecialChars bool
	RepeatingChars      bool
	FewWordsManySpecial bool
}

// Any reports whether at least one flag fired.
func (f GibberishFlags) Any() bool {
	return f.TooManySpecialChars || f.RepeatingChars || f.FewWordsManySpecial
}

// DetectGibberish applies the character-level heuristics to text.
func DetectGibberish(text string) GibberishFlags {
	runes := []rune(text)
	if len(runes) == 0 {
		return GibberishFlags{}
	}

	ratio := SpecialCharRatio(text)
	words := len(wordExpr.FindAllString(text, -1))

	return GibberishFlags{
		TooManySpecialChars: ratio > specialRatioLimit,
		RepeatingChars:      hasRun(runes, repeatRunLength),
		FewWordsManySpecial: words < fewWordsLimit && len(runes) > fewWordsMinLength && ratio > specialRatioFewWords,
	}
}

// SpecialCharRatio is the share of runes that are neither ASCII letters,
// digits nor whitespace.
func SpecialCharRatio(text string) float64 {
	runes := []rune(text)
	if len(runes) == 0 {
		return 0
	}
	special := 0
	for _, r := range runes {
		if !isASCIIAlnum(r) && !unicode.IsSpace(r) {
			special++
		}
	}
	return float64(special) / float64(len(runes))
}

// ClassifyHeuristically labels extracted text without a language model.
// Flagged text is gibberish; otherwise text made mostly of ASCII letters
// and spaces counts as English.
func ClassifyHeuristically(text string) domain.TextClassification {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.TextClassification{IsReadable: true, Language: domain.LanguageNone}
	}

	if DetectGibberish(text).Any() {
		return domain.TextClassification{
			IsReadable: false,
			Language:   domain.LanguageGibberish,
			Issues:     []string{"Text appears to be gibberish or contains random characters"},
		}
	}

	runes := []rune(text)
	letters := 0
	for _, r := range runes {
		if (r < unicode.MaxASCII && unicode.IsLetter(r)) || unicode.IsSpace(r) {
			letters++
		}
	}
	if float64(letters)/float64(len(runes)) > englishRatio {
		return domain.TextClassification{IsReadable: true, Language: domain.LanguageEnglish}
	}
	return domain.TextClassification{
		IsReadable: false,
		Language:   domain.LanguageGibberish,
		Issues:     []string{"Text appears to be gibberish or non-English"},
	}
}

func hasRun(runes []rune, n int) bool {
	run := 1
	for i := 1; i < len(runes); i++ {
		if runes[i] == runes[i-1] {
			run++
			if run >= n {
				return true
			}
			continue
		}
		run = 1
	}
	return n <= 1 && len(runes) > 0
}

func isASCIIAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
