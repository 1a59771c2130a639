package validation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/teazle/autosocialai/internal/domain"
)

// Issue messages produced by the validator itself.
const (
	MsgNoImage          = "No image URL provided"
	MsgGibberish        = "Image contains gibberish or random characters instead of readable text"
	MsgNonEnglish       = "Image contains text in a non-English language"
	MsgUnreadable       = "Image contains unreadable text"
	MsgSpecialChars     = "Image text contains too many special/random characters"
	MsgCorrupted        = "Image appears to contain gibberish or corrupted text"
	MsgLowImageQuality  = "Image quality is below professional standards"
	MsgUnprofessional   = "Image does not meet professional social media standards"
	MsgSystemError      = "Validation system error - needs manual review"
	msgSkippedExcellent = "Image validation skipped (%s), but excellent text content approved"
	msgSkippedApproved  = "Image validation skipped (%s), but text content approved"
	msgManualReview     = "Image validation unavailable (%s) - manual review recommended"
)

const (
	reasonOCRUnavailable = "OCR unavailable"
	reasonNoImage        = "no image"
)

// Validator decides whether a draft may be published.
type Validator struct {
	analyzer   *Analyzer
	scorer     *Scorer
	thresholds Thresholds
	logger     *slog.Logger
}

// NewValidator wires the analyzer and scorer. A nil analyzer puts every
// image validation into text-only mode.
func NewValidator(analyzer *Analyzer, scorer *Scorer, thresholds Thresholds, logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{
		analyzer:   analyzer,
		scorer:     scorer,
		thresholds: thresholds,
		logger:     logger.With("component", "content_validator"),
	}
}

// Validate checks the draft's image text and captions together. Drafts
// without an image are rejected. Upstream failures degrade to text-only
// scoring; an error is returned only when nothing could be attempted.
func (v *Validator) Validate(ctx context.Context, draft domain.ContentDraft, brandName string) (domain.ValidationResult, error) {
	if err := v.ready(ctx); err != nil {
		return domain.ValidationResult{}, err
	}
	if !draft.HasImage() {
		return domain.ValidationResult{
			Approved: false,
			Issues:   []domain.Issue{domain.NewIssue(domain.IssueMissingImage, domain.ScopeImage, MsgNoImage)},
			Details: domain.ValidationDetails{
				ImageTextLanguage: domain.LanguageNone,
				ContentQuality:    domain.QualityLow,
				OverallScore:      0,
			},
		}, nil
	}
	if v.analyzer == nil {
		return v.textOnly(ctx, draft, brandName, reasonOCRUnavailable)
	}

	analysis, err := v.analyzer.Analyze(ctx, draft.ImageURL)
	if err != nil {
		v.logger.Warn("image analysis failed, validating text only", "error", err)
		return v.textOnly(ctx, draft, brandName, reasonOCRUnavailable)
	}
	if analysis.Skipped {
		return v.textOnly(ctx, draft, brandName, reasonOCRUnavailable)
	}

	text, err := v.scorer.Score(ctx, draft, brandName)
	if err != nil {
		v.logger.Warn("text scoring failed, retrying text only", "error", err)
		return v.textOnly(ctx, draft, brandName, reasonOCRUnavailable)
	}

	result := v.combine(analysis, text)
	v.logger.Info("content validated",
		"approved", result.Approved,
		"score", result.Details.OverallScore,
		"issues", len(result.Issues),
	)
	return result, nil
}

// ValidateTextOnly validates only the captions. It is used when a draft
// deliberately carries no image.
func (v *Validator) ValidateTextOnly(ctx context.Context, draft domain.ContentDraft, brandName string) (domain.ValidationResult, error) {
	if err := v.ready(ctx); err != nil {
		return domain.ValidationResult{}, err
	}
	return v.textOnly(ctx, draft, brandName, reasonNoImage)
}

func (v *Validator) ready(ctx context.Context) error {
	if v == nil || v.scorer == nil {
		return fmt.Errorf("%w: no text scorer configured", ErrValidation)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return nil
}

func (v *Validator) combine(analysis ImageAnalysis, text TextScore) domain.ValidationResult {
	var issues []domain.Issue
	add := func(kind domain.IssueKind, msg string) {
		issues = append(issues, domain.NewIssue(kind, domain.ScopeImage, msg))
	}

	if analysis.HasText {
		if analysis.TextLanguage == domain.LanguageGibberish {
			add(domain.IssueGibberish, MsgGibberish)
		}
		flags := DetectGibberish(analysis.TextContent)
		if flags.TooManySpecialChars {
			add(domain.IssueGibberish, MsgSpecialChars)
		}
		if flags.RepeatingChars || flags.FewWordsManySpecial {
			add(domain.IssueGibberish, MsgCorrupted)
		}
		if analysis.TextLanguage == domain.LanguageOther {
			add(domain.IssueNonEnglish, MsgNonEnglish)
		}
		if !analysis.TextIsReadable && analysis.TextLanguage != domain.LanguageDecorative {
			add(domain.IssueUnreadable, MsgUnreadable)
		}
	}
	if analysis.ImageQuality == domain.QualityLow {
		add(domain.IssueImageQuality, MsgLowImageQuality)
	}
	if !analysis.ProfessionalStandard {
		add(domain.IssueProfessional, MsgUnprofessional)
	}
	issues = append(issues, analysis.Issues...)
	issues = append(issues, text.Issues...)

	score := 100
	if analysis.TextLanguage == domain.LanguageGibberish {
		score -= PenaltyGibberish
	}
	if analysis.TextLanguage == domain.LanguageOther {
		score -= PenaltyOtherLanguage
	}
	if analysis.HasText && !analysis.TextIsReadable {
		score -= PenaltyUnreadable
	}
	if analysis.ImageQuality == domain.QualityLow {
		score -= PenaltyLowImageQuality
	}
	if !analysis.ProfessionalStandard {
		score -= PenaltyUnprofessional
	}
	if text.Quality == domain.QualityLow {
		score -= PenaltyLowTextQuality
	}
	score = domain.ClampScore(score)

	result := domain.ValidationResult{
		Issues: issues,
		Details: domain.ValidationDetails{
			ImageTextReadable: analysis.HasText && analysis.TextIsReadable,
			ImageTextLanguage: reportedLanguage(analysis.TextLanguage),
			ContentQuality:    text.Quality,
			OverallScore:      score,
		},
	}
	if analysis.TextContent != "" {
		detected := analysis.TextContent
		result.Details.ImageTextDetected = &detected
	}
	result.Approved = !result.HasGibberish() && blockingCount(issues) == 0 && score >= v.thresholds.Approve
	return result
}

// textOnly scores the captions alone and applies the relaxed thresholds.
func (v *Validator) textOnly(ctx context.Context, draft domain.ContentDraft, brandName, reason string) (domain.ValidationResult, error) {
	text, err := v.scorer.Score(ctx, draft, brandName)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.ValidationResult{}, fmt.Errorf("%w: %w", ErrValidation, ctxErr)
		}
		v.logger.Error("text-only validation failed", "error", err)
		return v.systemError(), nil
	}

	details := domain.ValidationDetails{
		ImageTextLanguage: domain.LanguageNone,
		ContentQuality:    text.Quality,
	}

	if text.Approved || text.Score >= v.thresholds.TextOnlyApprove ||
		(text.Score >= v.thresholds.TextOnlyNoCritical && !text.HasCriticalIssue()) {
		msg := fmt.Sprintf(msgSkippedApproved, reason)
		if text.Score >= v.thresholds.TextOnlyApprove {
			msg = fmt.Sprintf(msgSkippedExcellent, reason)
		}
		details.OverallScore = max(v.thresholds.DegradedFloor, text.Score-v.thresholds.DegradedPenalty)
		v.logger.Info("text-only validation approved", "reason", reason, "score", details.OverallScore)
		return domain.ValidationResult{
			Approved: true,
			Issues:   []domain.Issue{domain.NewIssue(domain.IssueInfo, domain.ScopeImage, msg)},
			Details:  details,
		}, nil
	}

	issues := []domain.Issue{domain.NewIssue(domain.IssueSkipped, domain.ScopeImage, fmt.Sprintf(msgManualReview, reason))}
	for _, issue := range text.Issues {
		lower := strings.ToLower(issue.Message)
		if strings.Contains(lower, "ocr") || strings.Contains(lower, "image") {
			continue
		}
		issues = append(issues, issue)
	}
	details.OverallScore = text.Score
	v.logger.Info("text-only validation needs review", "reason", reason, "score", text.Score)
	return domain.ValidationResult{Approved: false, Issues: issues, Details: details}, nil
}

func (v *Validator) systemError() domain.ValidationResult {
	result := SystemErrorResult(v.thresholds.SystemErrorScore)
	result.Details.ContentQuality = domain.QualityLow
	return result
}

// SystemErrorResult is the verdict recorded when validation could not run.
func SystemErrorResult(score int) domain.ValidationResult {
	return domain.ValidationResult{
		Approved: false,
		Issues:   []domain.Issue{domain.NewIssue(domain.IssueSystem, domain.ScopeNone, MsgSystemError)},
		Details: domain.ValidationDetails{
			ImageTextLanguage: domain.LanguageNone,
			ContentQuality:    domain.QualityMedium,
			OverallScore:      domain.ClampScore(score),
		},
	}
}

func reportedLanguage(lang domain.TextLanguage) domain.TextLanguage {
	switch lang {
	case domain.LanguageEnglish, domain.LanguageNone:
		return lang
	case "":
		return domain.LanguageNone
	default:
		return domain.LanguageOther
	}
}

func blockingCount(issues []domain.Issue) int {
	n := 0
	for _, issue := range issues {
		if !issue.Advisory() {
			n++
		}
	}
	return n
}
