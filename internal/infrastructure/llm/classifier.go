package llm

import (
	"context"
	"fmt"

	"github.com/teazle/autosocialai/internal/domain"
	"github.com/teazle/autosocialai/internal/ports"
)

// TextClassifier decides whether text pulled from an image is readable.
type TextClassifier struct {
	client *Client
}

var _ ports.TextClassifier = (*TextClassifier)(nil)

// NewTextClassifier builds a classifier on top of client.
func NewTextClassifier(client *Client) *TextClassifier {
	return &TextClassifier{client: client}
}

// ClassifyText labels extracted image text.
func (c *TextClassifier) ClassifyText(ctx context.Context, text string) (domain.TextClassification, error) {
	prompt := fmt.Sprintf(`You are an expert at detecting gibberish and unreadable text in images. Analyze this text extracted from a social media image:

%q

Decide whether the text is:
1. Readable English: real words forming meaningful phrases (e.g. "Save 50%% Today", "New Collection")
2. Gibberish: random characters, scrambled letters, keyboard mashing (e.g. "asdfghjkl", "x7#kP@m9")
3. Corrupted text: symbols mixed randomly into words (e.g. "Sav#50%% T@day")
4. Decorative text: stylized but readable
5. Other language: foreign language text

Real words even if styled (SAVE, NEW, 50%% OFF) and brand names are NOT gibberish.

Respond with JSON only:
{
  "isReadable": boolean,
  "language": "english" | "other" | "gibberish" | "decorative",
  "issues": [specific issues if the text is gibberish or corrupted, empty if readable]
}`, text)

	var out struct {
		IsReadable bool     `json:"isReadable"`
		Language   string   `json:"language"`
		Issues     []string `json:"issues"`
	}
	if err := c.client.CompleteJSON(ctx, []Message{{Role: "user", Content: prompt}}, judgeTemperature, &out); err != nil {
		return domain.TextClassification{}, fmt.Errorf("classify text: %w", err)
	}

	language := domain.TextLanguage(out.Language)
	if language == "" {
		language = domain.LanguageOther
	}
	return domain.TextClassification{
		IsReadable: out.IsReadable,
		Language:   language,
		Issues:     out.Issues,
	}, nil
}
