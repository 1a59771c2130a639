package validation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/teazle/autosocialai/internal/domain"
	"github.com/teazle/autosocialai/internal/ports"
)

// TextScore is the text quality verdict on a draft's captions.
type TextScore struct {
	Score    int
	Quality  domain.Quality
	Issues   []domain.Issue
	Approved bool
}

// HasCriticalIssue reports issues that stop a text-only approval.
func (s TextScore) HasCriticalIssue() bool {
	for _, issue := range s.Issues {
		if issue.CriticalForText() {
			return true
		}
	}
	return false
}

// Scorer rates captions through a quality model.
type Scorer struct {
	model      ports.QualityModel
	thresholds Thresholds
}

// NewScorer wraps a quality model with the approval policy.
func NewScorer(model ports.QualityModel, thresholds Thresholds) *Scorer {
	return &Scorer{model: model, thresholds: thresholds}
}

// Score rates the draft's captions. Length is only flagged for extreme
// outliers and never blocks approval on its own.
func (s *Scorer) Score(ctx context.Context, draft domain.ContentDraft, brandName string) (TextScore, error) {
	if s == nil || s.model == nil {
		return TextScore{}, errors.New("no quality model configured")
	}

	assessment, err := s.model.AssessText(ctx, draft, brandName)
	if err != nil {
		return TextScore{}, fmt.Errorf("assess text: %w", err)
	}

	issues := domain.ClassifyIssues(assessment.Issues, domain.ScopeText)
	if msg := s.lengthOutlier(draft); msg != "" {
		issues = append(issues, domain.NewIssue(domain.IssueLength, domain.ScopeText, msg))
	}

	score := TextScore{
		Score:   domain.ClampScore(assessment.Score),
		Quality: domain.ParseQuality(string(assessment.ContentQuality)),
		Issues:  issues,
	}
	score.Approved = score.Score >= s.thresholds.ScorerApprove ||
		(score.Score >= s.thresholds.ScorerNoCritical && !score.HasCriticalIssue())
	return score, nil
}

func (s *Scorer) lengthOutlier(draft domain.ContentDraft) string {
	if n := wordCount(draft.CaptionIG); n > 0 && n < s.thresholds.ShortCaptionWords {
		return fmt.Sprintf("Instagram caption length is very short (%d words)", n)
	}
	for _, p := range domain.Platforms {
		if n := wordCount(draft.Caption(p)); n > s.thresholds.LongCaptionWords {
			return fmt.Sprintf("%s caption length is very long (%d words)", platformLabel(p), n)
		}
	}
	return ""
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}

func platformLabel(p domain.Platform) string {
	switch p {
	case domain.PlatformInstagram:
		return "Instagram"
	case domain.PlatformFacebook:
		return "Facebook"
	case domain.PlatformTikTok:
		return "TikTok"
	}
	return string(p)
}
