package llm

import (
	"context"
	"fmt"

	"github.com/teazle/autosocialai/internal/domain"
	"github.com/teazle/autosocialai/internal/ports"
)

const (
	judgeTemperature = 0.1
	// defaultScore is assumed when the model omits a score.
	defaultScore = 70
)

// QualityModel rates captions with the chat model.
type QualityModel struct {
	client *Client
}

var _ ports.QualityModel = (*QualityModel)(nil)

// NewQualityModel builds a quality model on top of client.
func NewQualityModel(client *Client) *QualityModel {
	return &QualityModel{client: client}
}

// AssessText returns the model's quality verdict on the draft captions.
func (m *QualityModel) AssessText(ctx context.Context, draft domain.ContentDraft, brandName string) (domain.QualityAssessment, error) {
	prompt := fmt.Sprintf(`You are an expert social media content validator. Validate this content for %s:

Hook: %s
Instagram Caption: %s
Facebook Caption: %s
TikTok Caption: %s

Validation Guidelines (be reasonable - length is flexible):
- Grammar and spelling: Only flag actual errors, not stylistic choices
- Content quality: Focus on engagement potential, clarity, and value to audience
- Length suggestions are OPTIONAL improvements, not blockers
- Brand alignment: Ensure content matches brand voice

Scoring Guidelines:
- Score 95-100: Excellent content, no issues
- Score 85-94: Good content, minor suggestions for improvement
- Score 70-84: Acceptable content with some areas for improvement
- Score 50-69: Content needs significant improvement
- Score <50: Poor quality content

IMPORTANT: Length alone should NEVER cause rejection. Only flag length if it is extremely short (<20 words for Instagram) or extremely long (>500 words).

Respond with JSON only:
{
  "contentQuality": "high" | "medium" | "low",
  "issues": [array of specific issues, empty if none],
  "score": number (0-100)
}`, brandName, draft.Hook, orDefault(draft.CaptionIG, "N/A"), orDefault(draft.CaptionFB, "N/A"), orDefault(draft.CaptionTT, "N/A"))

	var out struct {
		ContentQuality string   `json:"contentQuality"`
		Issues         []string `json:"issues"`
		Score          *int     `json:"score"`
	}
	if err := m.client.CompleteJSON(ctx, []Message{{Role: "user", Content: prompt}}, judgeTemperature, &out); err != nil {
		return domain.QualityAssessment{}, fmt.Errorf("assess text: %w", err)
	}

	score := defaultScore
	if out.Score != nil {
		score = *out.Score
	}
	return domain.QualityAssessment{
		ContentQuality: domain.ParseQuality(out.ContentQuality),
		Issues:         out.Issues,
		Score:          domain.ClampScore(score),
	}, nil
}
