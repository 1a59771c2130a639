package validation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/teazle/autosocialai/internal/domain"
	"github.com/teazle/autosocialai/internal/ports"
)

const noTextSentinel = "no_text"

// ocrSkippedMessage is reported when no OCR strategy could read the image.
const ocrSkippedMessage = "Image text validation skipped - OCR not available. Manual review recommended for images with text."

// ImageAnalysis describes the text found inside an image.
type ImageAnalysis struct {
	HasText              bool
	TextContent          string
	TextIsReadable       bool
	TextLanguage         domain.TextLanguage
	ImageQuality         domain.Quality
	ProfessionalStandard bool
	Issues               []domain.Issue
	// Method names the extractor that produced TextContent.
	Method string
	// Skipped is set when no extractor could read the image.
	Skipped bool
}

// Analyzer extracts and classifies text inside images.
type Analyzer struct {
	extractor  ports.TextExtractor
	lastResort ports.TextExtractor
	classifier ports.TextClassifier
	logger     *slog.Logger
}

// AnalyzerOption customises an Analyzer.
type AnalyzerOption func(*Analyzer)

// WithClassifier classifies extracted text with a language model before
// falling back to the heuristic.
func WithClassifier(c ports.TextClassifier) AnalyzerOption {
	return func(a *Analyzer) { a.classifier = c }
}

// WithLastResort makes the analyzer try one more extractor when the main one
// fails, and report an error if that fails too.
func WithLastResort(e ports.TextExtractor) AnalyzerOption {
	return func(a *Analyzer) { a.lastResort = e }
}

// NewAnalyzer builds an analyzer around an extractor, usually an ocr.Chain.
func NewAnalyzer(extractor ports.TextExtractor, logger *slog.Logger, opts ...AnalyzerOption) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Analyzer{extractor: extractor, logger: logger.With("component", "image_analyzer")}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze reads the text in an image and labels it. Extraction failures
// degrade to a conservative skipped result unless a last-resort extractor
// is configured, in which case its failure is returned.
func (a *Analyzer) Analyze(ctx context.Context, imageURL string) (ImageAnalysis, error) {
	text, method, err := a.extract(ctx, imageURL)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ImageAnalysis{}, ctxErr
		}
		if a.lastResort == nil {
			a.logger.Warn("ocr unavailable, skipping image text validation", "error", err)
			return skippedAnalysis(), nil
		}
		a.logger.Warn("ocr chain failed, trying last resort", "error", err, "extractor", a.lastResort.Name())
		text, err = a.lastResort.ExtractText(ctx, imageURL)
		if err != nil {
			return ImageAnalysis{}, fmt.Errorf("last resort %s: %w", a.lastResort.Name(), err)
		}
		method = a.lastResort.Name()
	}

	text = strings.TrimSpace(text)
	if text == "" || strings.Contains(strings.ToLower(text), noTextSentinel) {
		return ImageAnalysis{
			TextIsReadable:       true,
			TextLanguage:         domain.LanguageNone,
			ImageQuality:         domain.QualityHigh,
			ProfessionalStandard: true,
			Method:               method,
		}, nil
	}

	classification := a.classify(ctx, text)
	a.logger.Info("image text analysed",
		"method", method,
		"readable", classification.IsReadable,
		"language", classification.Language,
	)

	return ImageAnalysis{
		HasText:              true,
		TextContent:          text,
		TextIsReadable:       classification.IsReadable,
		TextLanguage:         classification.Language,
		ImageQuality:         domain.QualityHigh,
		ProfessionalStandard: classification.IsReadable,
		Issues:               domain.ClassifyIssues(classification.Issues, domain.ScopeImage),
		Method:               method,
	}, nil
}

func (a *Analyzer) extract(ctx context.Context, imageURL string) (string, string, error) {
	if a.extractor == nil {
		return "", "", fmt.Errorf("no text extractor configured")
	}
	text, err := a.extractor.ExtractText(ctx, imageURL)
	if err != nil {
		return "", "", fmt.Errorf("%s: %w", a.extractor.Name(), err)
	}
	return text, a.extractor.Name(), nil
}

func (a *Analyzer) classify(ctx context.Context, text string) domain.TextClassification {
	if a.classifier == nil {
		return ClassifyHeuristically(text)
	}
	classification, err := a.classifier.ClassifyText(ctx, text)
	if err != nil {
		a.logger.Warn("text classifier failed, using heuristic", "error", err)
		return ClassifyHeuristically(text)
	}
	switch classification.Language {
	case domain.LanguageEnglish, domain.LanguageOther, domain.LanguageGibberish, domain.LanguageDecorative, domain.LanguageNone:
	default:
		classification.Language = domain.LanguageOther
	}
	return classification
}

func skippedAnalysis() ImageAnalysis {
	return ImageAnalysis{
		Skipped:              true,
		TextIsReadable:       true,
		TextLanguage:         domain.LanguageNone,
		ImageQuality:         domain.QualityMedium,
		ProfessionalStandard: true,
		Issues:               []domain.Issue{domain.NewIssue(domain.IssueSkipped, domain.ScopeImage, ocrSkippedMessage)},
	}
}
