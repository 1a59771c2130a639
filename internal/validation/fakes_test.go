package validation

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/teazle/autosocialai/internal/domain"
)

var errUnreachable = errors.New("dial tcp: connection refused")

type fakeExtractor struct {
	name  string
	text  string
	err   error
	calls int
}

func (f *fakeExtractor) Name() string { return f.name }

func (f *fakeExtractor) ExtractText(context.Context, string) (string, error) {
	f.calls++
	return f.text, f.err
}

type fakeClassifier struct {
	result domain.TextClassification
	err    error
}

func (f fakeClassifier) ClassifyText(context.Context, string) (domain.TextClassification, error) {
	return f.result, f.err
}

type fakeQuality struct {
	assessment domain.QualityAssessment
	err        error
	calls      int
}

func (f *fakeQuality) AssessText(context.Context, domain.ContentDraft, string) (domain.QualityAssessment, error) {
	f.calls++
	return f.assessment, f.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func goodDraft() domain.ContentDraft {
	return domain.ContentDraft{
		Hook:       "Summer savings are here",
		CaptionIG:  "Fresh deals land today across the whole store, with new colours, new cuts and twenty percent off everything you love for the season ahead.",
		CaptionFB:  "Our summer sale starts today. Stop by and save twenty percent on the new collection.",
		CaptionTT:  "Summer sale is live, twenty percent off everything.",
		ImageURL:   "https://images.example.com/post.png",
		ImageModel: "ideogram-ai/ideogram-v3-turbo",
	}
}

func newTestValidator(extractor *fakeExtractor, quality *fakeQuality, opts ...AnalyzerOption) *Validator {
	logger := discardLogger()
	var analyzer *Analyzer
	if extractor != nil {
		analyzer = NewAnalyzer(extractor, logger, opts...)
	}
	return NewValidator(analyzer, NewScorer(quality, DefaultThresholds()), DefaultThresholds(), logger)
}
