package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/teazle/autosocialai/internal/domain"
	"github.com/teazle/autosocialai/internal/ports"
)

const generationTemperature = 0.7

// DefaultContentSystemPrompt is used when no content_system_prompt setting exists.
const DefaultContentSystemPrompt = `You are an expert social media content creator and strategist specializing in {industry}.

Your expertise includes:
- Creating highly engaging, {brandVoice} content tailored to {targetAudience}
- Optimizing content for Instagram, Facebook, and TikTok with platform-specific best practices
- Crafting compelling hooks that drive action and engagement
- Incorporating relevant hashtags and trending language naturally

Output Format (CRITICAL):
Return ONLY valid JSON without markdown or explanatory text, using this schema:
{
  "hook": "string (max 12 words - punchy, curiosity-driven, action-oriented)",
  "caption_ig": "string (120-200 words with 5-10 relevant hashtags, engaging storytelling)",
  "caption_fb": "string (80-120 words, community-focused, conversational)",
  "caption_tt": "string (max 60 words, energetic, trending language)"
}`

// ContentGenerator writes hooks and captions.
type ContentGenerator struct {
	client *Client
}

var _ ports.TextGenerator = (*ContentGenerator)(nil)

// NewContentGenerator builds a generator on top of client.
func NewContentGenerator(client *Client) *ContentGenerator {
	return &ContentGenerator{client: client}
}

// GenerateText asks the model for a new draft. Feedback and the previous
// attempt, when present, steer the model away from repeating it.
func (g *ContentGenerator) GenerateText(ctx context.Context, brief domain.ContentBrief) (domain.ContentDraft, error) {
	if err := domain.Check(brief); err != nil {
		return domain.ContentDraft{}, fmt.Errorf("invalid brief: %w", err)
	}

	messages := []Message{
		{Role: "system", Content: SystemPrompt(brief)},
		{Role: "user", Content: UserPrompt(brief)},
	}

	var out struct {
		Hook      string `json:"hook"`
		CaptionIG string `json:"caption_ig"`
		CaptionFB string `json:"caption_fb"`
		CaptionTT string `json:"caption_tt"`
	}
	if err := g.client.CompleteJSON(ctx, messages, generationTemperature, &out); err != nil {
		return domain.ContentDraft{}, fmt.Errorf("generate content: %w", err)
	}

	draft := domain.ContentDraft{
		Hook:      SanitizeHook(out.Hook),
		CaptionIG: SanitizeCaption(out.CaptionIG),
		CaptionFB: SanitizeCaption(out.CaptionFB),
		CaptionTT: SanitizeCaption(out.CaptionTT),
	}
	if draft.Hook == "" {
		return domain.ContentDraft{}, errors.New("generate content: model returned an empty hook")
	}
	return draft, nil
}

// SystemPrompt fills the brief's template placeholders.
func SystemPrompt(brief domain.ContentBrief) string {
	template := brief.SystemPrompt
	if strings.TrimSpace(template) == "" {
		template = DefaultContentSystemPrompt
	}
	voice := strings.ToLower(string(brief.BrandVoice))
	if voice == "" {
		voice = "professional"
	}
	r := strings.NewReplacer(
		"{industry}", orDefault(brief.Industry, "various industries"),
		"{brandVoice}", voice,
		"{targetAudience}", orDefault(brief.TargetAudience, "target audiences"),
	)
	return r.Replace(template)
}

// UserPrompt describes the brand and, on regeneration, what to fix.
func UserPrompt(brief domain.ContentBrief) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Generate social media content for %s", brief.BrandName)
	if brief.BrandVoice != "" {
		fmt.Fprintf(&b, " with a %s brand voice", brief.BrandVoice)
	}
	b.WriteString(".\n")
	if brief.CompanyDescription != "" {
		fmt.Fprintf(&b, "\nAbout the company: %s\n", brief.CompanyDescription)
	}
	if brief.Industry != "" {
		fmt.Fprintf(&b, "Industry: %s\n", brief.Industry)
	}
	if brief.TargetAudience != "" {
		fmt.Fprintf(&b, "Target audience: %s\n", brief.TargetAudience)
	}

	if brief.Feedback != "" {
		fmt.Fprintf(&b, "\nEDITOR FEEDBACK ON THE PREVIOUS ATTEMPT:\n%s\n", brief.Feedback)
	}
	if prev := brief.PreviousAttempt; prev != nil {
		b.WriteString("\nPREVIOUS ATTEMPT (do not reuse it, write something new):\n")
		fmt.Fprintf(&b, "Hook: %s\nInstagram: %s\nFacebook: %s\nTikTok: %s\n", prev.Hook, prev.CaptionIG, prev.CaptionFB, prev.CaptionTT)
	}

	b.WriteString("\nReturn a JSON object with exactly the keys hook, caption_ig, caption_fb and caption_tt.")
	return b.String()
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
