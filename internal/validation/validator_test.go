package validation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/teazle/autosocialai/internal/domain"
)

func TestValidateApprovesCleanEnglishText(t *testing.T) {
	t.Parallel()

	extractor := &fakeExtractor{name: "ocr", text: "SAVE 20%"}
	quality := &fakeQuality{assessment: domain.QualityAssessment{ContentQuality: domain.QualityHigh, Score: 96}}
	v := newTestValidator(extractor, quality, WithClassifier(fakeClassifier{
		result: domain.TextClassification{IsReadable: true, Language: domain.LanguageEnglish},
	}))

	result, err := v.Validate(context.Background(), goodDraft(), "Acme")
	require.NoError(t, err)
	require.True(t, result.Approved)
	require.Empty(t, result.Issues)
	require.GreaterOrEqual(t, result.Details.OverallScore, 85)
	require.True(t, result.Details.ImageTextReadable)
	require.Equal(t, domain.LanguageEnglish, result.Details.ImageTextLanguage)
	require.NotNil(t, result.Details.ImageTextDetected)
	require.Equal(t, "SAVE 20%", *result.Details.ImageTextDetected)
}

func TestValidateRejectsGibberishImageText(t *testing.T) {
	t.Parallel()

	extractor := &fakeExtractor{name: "ocr", text: "x7#kP@m9$qL"}
	quality := &fakeQuality{assessment: domain.QualityAssessment{ContentQuality: domain.QualityHigh, Score: 96}}
	v := newTestValidator(extractor, quality)

	result, err := v.Validate(context.Background(), goodDraft(), "Acme")
	require.NoError(t, err)
	require.False(t, result.Approved)
	require.True(t, result.HasGibberish())
	require.LessOrEqual(t, result.Details.OverallScore, 50)
	require.Equal(t, MsgGibberish, result.Issues[0].Message)
	require.Equal(t, domain.LanguageOther, result.Details.ImageTextLanguage)
	require.Equal(t, 100-PenaltyGibberish-PenaltyUnreadable-PenaltyUnprofessional, result.Details.OverallScore)
}

func TestValidateNeverApprovesGibberishPattern(t *testing.T) {
	t.Parallel()

	// The model scores highly but names corrupted text in its own words.
	extractor := &fakeExtractor{name: "ocr", text: "NO_TEXT"}
	quality := &fakeQuality{assessment: domain.QualityAssessment{
		ContentQuality: domain.QualityHigh,
		Score:          100,
		Issues:         []string{"Hashtag block looks like corrupted text"},
	}}
	v := newTestValidator(extractor, quality)

	result, err := v.Validate(context.Background(), goodDraft(), "Acme")
	require.NoError(t, err)
	require.Equal(t, 100, result.Details.OverallScore)
	require.False(t, result.Approved)
}

func TestValidateApprovesWithoutIssuesAboveThreshold(t *testing.T) {
	t.Parallel()

	extractor := &fakeExtractor{name: "ocr", text: ""}
	quality := &fakeQuality{assessment: domain.QualityAssessment{ContentQuality: domain.QualityLow, Score: 40}}
	v := newTestValidator(extractor, quality)

	result, err := v.Validate(context.Background(), goodDraft(), "Acme")
	require.NoError(t, err)
	require.Empty(t, result.Issues)
	require.Equal(t, 100-PenaltyLowTextQuality, result.Details.OverallScore)
	require.True(t, result.Approved)
}

func TestValidateRejectsMissingImage(t *testing.T) {
	t.Parallel()

	quality := &fakeQuality{assessment: domain.QualityAssessment{ContentQuality: domain.QualityHigh, Score: 100}}
	v := newTestValidator(&fakeExtractor{name: "ocr"}, quality)

	draft := goodDraft()
	draft.ImageURL = ""
	result, err := v.Validate(context.Background(), draft, "Acme")
	require.NoError(t, err)
	require.False(t, result.Approved)
	require.Equal(t, 0, result.Details.OverallScore)
	require.Equal(t, []string{MsgNoImage}, result.IssueMessages())
	require.Zero(t, quality.calls)
}

func TestScorePenaltiesAreIndependent(t *testing.T) {
	t.Parallel()

	v := newTestValidator(nil, &fakeQuality{})
	base := ImageAnalysis{
		HasText:              true,
		TextContent:          "New Collection",
		TextIsReadable:       true,
		TextLanguage:         domain.LanguageEnglish,
		ImageQuality:         domain.QualityHigh,
		ProfessionalStandard: true,
	}
	text := TextScore{Score: 100, Quality: domain.QualityHigh}
	baseline := v.combine(base, text).Details.OverallScore
	require.Equal(t, 100, baseline)

	cases := []struct {
		name    string
		mutate  func(*ImageAnalysis, *TextScore)
		penalty int
	}{
		{"gibberish", func(a *ImageAnalysis, _ *TextScore) { a.TextLanguage = domain.LanguageGibberish }, PenaltyGibberish},
		{"other language", func(a *ImageAnalysis, _ *TextScore) { a.TextLanguage = domain.LanguageOther }, PenaltyOtherLanguage},
		{"unreadable", func(a *ImageAnalysis, _ *TextScore) { a.TextIsReadable = false }, PenaltyUnreadable},
		{"low image quality", func(a *ImageAnalysis, _ *TextScore) { a.ImageQuality = domain.QualityLow }, PenaltyLowImageQuality},
		{"unprofessional", func(a *ImageAnalysis, _ *TextScore) { a.ProfessionalStandard = false }, PenaltyUnprofessional},
		{"low text quality", func(_ *ImageAnalysis, s *TextScore) { s.Quality = domain.QualityLow }, PenaltyLowTextQuality},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			a, s := base, text
			tc.mutate(&a, &s)
			got := v.combine(a, s).Details.OverallScore
			require.Equal(t, baseline-tc.penalty, got)
		})
	}

	all := base
	all.TextLanguage = domain.LanguageGibberish
	all.TextIsReadable = false
	all.ImageQuality = domain.QualityLow
	all.ProfessionalStandard = false
	low := TextScore{Score: 10, Quality: domain.QualityLow}
	require.Equal(t, 0, v.combine(all, low).Details.OverallScore)
}

func TestValidateSkipsImageWhenOCRUnavailable(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name         string
		score        int
		wantApproved bool
		wantScore    int
	}{
		{name: "excellent text", score: 96, wantApproved: true, wantScore: 91},
		{name: "weak text", score: 60, wantApproved: false, wantScore: 60},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			extractor := &fakeExtractor{name: "ocr", err: errUnreachable}
			quality := &fakeQuality{assessment: domain.QualityAssessment{ContentQuality: domain.QualityMedium, Score: tc.score}}
			v := newTestValidator(extractor, quality)

			result, err := v.Validate(context.Background(), goodDraft(), "Acme")
			require.NoError(t, err)
			require.Equal(t, tc.wantApproved, result.Approved)
			require.Equal(t, tc.wantScore, result.Details.OverallScore)
			require.Contains(t, result.Issues[0].Message, "OCR unavailable")
			require.Equal(t, 1, quality.calls)
		})
	}
}

func TestScorerBlocksCriticalWordingWhateverTheKind(t *testing.T) {
	t.Parallel()

	cases := []struct {
		issue        string
		wantApproved bool
	}{
		{issue: "Bad call to action quality", wantApproved: false},
		{issue: "Hook has bad engagement", wantApproved: false},
		{issue: "Gibberish-like spelling errors in caption", wantApproved: false},
		{issue: "Unreadable phrasing error in the hook", wantApproved: false},
		{issue: "Inappropriate tone for the brand", wantApproved: false},
		{issue: "Could use a stronger call to action", wantApproved: true},
	}

	for _, tc := range cases {
		t.Run(tc.issue, func(t *testing.T) {
			t.Parallel()

			scorer := NewScorer(&fakeQuality{assessment: domain.QualityAssessment{
				ContentQuality: domain.QualityMedium,
				Score:          88,
				Issues:         []string{tc.issue},
			}}, DefaultThresholds())

			got, err := scorer.Score(context.Background(), goodDraft(), "Acme")
			require.NoError(t, err)
			require.Equal(t, tc.wantApproved, got.Approved)
			require.Equal(t, !tc.wantApproved, got.HasCriticalIssue())
		})
	}
}

func TestValidateDegradedMode(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name         string
		score        int
		issues       []string
		wantApproved bool
		wantScore    int
	}{
		{name: "excellent text", score: 96, wantApproved: true, wantScore: 91},
		{name: "good text without critical issues", score: 92, issues: []string{"Could use a stronger call to action"}, wantApproved: true, wantScore: 87},
		{name: "good text with grammar issue", score: 92, issues: []string{"Grammar error in Facebook caption"}, wantApproved: false, wantScore: 92},
		{name: "good text with bad call to action", score: 92, issues: []string{"Bad call to action quality"}, wantApproved: false, wantScore: 92},
		{name: "scorer approval uses floor", score: 86, wantApproved: true, wantScore: 85},
		{name: "mediocre text", score: 60, wantApproved: false, wantScore: 60},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			extractor := &fakeExtractor{name: "ocr", err: errUnreachable}
			lastResort := &fakeExtractor{name: "vision", err: errUnreachable}
			quality := &fakeQuality{assessment: domain.QualityAssessment{
				ContentQuality: domain.QualityMedium,
				Score:          tc.score,
				Issues:         tc.issues,
			}}
			v := newTestValidator(extractor, quality, WithLastResort(lastResort))

			result, err := v.Validate(context.Background(), goodDraft(), "Acme")
			require.NoError(t, err)
			require.Equal(t, tc.wantApproved, result.Approved)
			require.Equal(t, tc.wantScore, result.Details.OverallScore)
			require.Equal(t, 1, lastResort.calls)
			require.NotEmpty(t, result.Issues)
			if tc.wantApproved {
				require.Equal(t, domain.IssueInfo, result.Issues[0].Kind)
				require.Contains(t, result.Issues[0].Message, "OCR unavailable")
			} else {
				require.Contains(t, result.Issues[0].Message, "manual review recommended")
			}
		})
	}
}

func TestValidateLastResortRecovers(t *testing.T) {
	t.Parallel()

	extractor := &fakeExtractor{name: "ocr", err: errUnreachable}
	lastResort := &fakeExtractor{name: "vision", text: "NO_TEXT"}
	quality := &fakeQuality{assessment: domain.QualityAssessment{ContentQuality: domain.QualityHigh, Score: 90}}
	v := newTestValidator(extractor, quality, WithLastResort(lastResort))

	result, err := v.Validate(context.Background(), goodDraft(), "Acme")
	require.NoError(t, err)
	require.True(t, result.Approved)
	require.Equal(t, 100, result.Details.OverallScore)
}

func TestValidateSystemErrorWhenTextPathFails(t *testing.T) {
	t.Parallel()

	extractor := &fakeExtractor{name: "ocr", text: "NO_TEXT"}
	quality := &fakeQuality{err: errUnreachable}
	v := newTestValidator(extractor, quality)

	result, err := v.Validate(context.Background(), goodDraft(), "Acme")
	require.NoError(t, err)
	require.False(t, result.Approved)
	require.Equal(t, 30, result.Details.OverallScore)
	require.Equal(t, []string{MsgSystemError}, result.IssueMessages())
	require.Equal(t, 2, quality.calls)
}

func TestValidateTextOnly(t *testing.T) {
	t.Parallel()

	quality := &fakeQuality{assessment: domain.QualityAssessment{ContentQuality: domain.QualityHigh, Score: 97}}
	v := newTestValidator(&fakeExtractor{name: "ocr"}, quality)

	draft := goodDraft()
	draft.ImageURL = ""
	result, err := v.ValidateTextOnly(context.Background(), draft, "Acme")
	require.NoError(t, err)
	require.True(t, result.Approved)
	require.Equal(t, 92, result.Details.OverallScore)
	require.Contains(t, result.Issues[0].Message, "no image")
}

func TestValidateReturnsErrorWhenCancelled(t *testing.T) {
	t.Parallel()

	quality := &fakeQuality{assessment: domain.QualityAssessment{Score: 100}}
	v := newTestValidator(&fakeExtractor{name: "ocr"}, quality)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := v.Validate(ctx, goodDraft(), "Acme")
	require.ErrorIs(t, err, ErrValidation)

	var nilValidator *Validator
	_, err = nilValidator.Validate(context.Background(), goodDraft(), "Acme")
	require.ErrorIs(t, err, ErrValidation)
}
