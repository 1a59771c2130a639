package replicate

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/teazle/autosocialai/internal/domain"
	"github.com/teazle/autosocialai/internal/ports"
	"github.com/teazle/autosocialai/internal/upstream"
)

// Supported image models.
const (
	ModelIdeogramV3Turbo = "ideogram-ai/ideogram-v3-turbo"
	ModelFlux11Pro       = "black-forest-labs/flux-1.1-pro"
	ModelFluxSchnell     = "black-forest-labs/flux-schnell"
	DefaultImageModel    = ModelIdeogramV3Turbo
)

// ImageModels lists the models that may be selected through settings.
var ImageModels = []string{ModelIdeogramV3Turbo, ModelFlux11Pro, ModelFluxSchnell}

// DefaultPromptTemplate is used when neither brand assets nor settings define one.
const DefaultPromptTemplate = `{hook} | Brand: {brandName}
Setting: Modern, professional social media advertising environment, optimized for digital display
Style: {styleKeywords}, editorial photography, magazine-quality, high-contrast visual
Technical: ultra high quality, professional photography, crisp and sharp, well-composed, perfect lighting, clear readable text (if text is included), professional typography
Colors: {colors}
Composition: Balanced, eye-catching, optimized for social media feed (1:1 ratio), clear focal point`

// DefaultNegativePrompt lists what images must avoid.
const DefaultNegativePrompt = "watermark, gibberish text, random characters, unreadable text, corrupted text, distorted text, blurry text, foreign language text, scrambled letters, meaningless text, low-res, blurry, distortion, bad anatomy, duplicate, ugly, deformed, amateur, low quality, pixelated, cluttered"

// ImageSettings supplies runtime choices for image generation.
type ImageSettings interface {
	ImageModel(ctx context.Context) string
	ImagePromptTemplate(ctx context.Context) string
	ImageNegativePrompt(ctx context.Context) string
}

// ImageGenerator produces post images through Replicate.
type ImageGenerator struct {
	client   *Client
	settings ImageSettings
	backoff  upstream.Backoff
	logger   *slog.Logger
}

var _ ports.ImageGenerator = (*ImageGenerator)(nil)

// NewImageGenerator wires the client with settings and a retry policy.
// settings may be nil, in which case defaults are used.
func NewImageGenerator(client *Client, settings ImageSettings, backoff upstream.Backoff, logger *slog.Logger) *ImageGenerator {
	if logger == nil {
		logger = slog.Default()
	}
	return &ImageGenerator{
		client:   client,
		settings: settings,
		backoff:  backoff,
		logger:   logger.With("component", "image_generator"),
	}
}

// GenerateImage renders the brief. Transient failures are retried with
// backoff; payment and auth failures are returned at once.
func (g *ImageGenerator) GenerateImage(ctx context.Context, brief domain.ImageBrief) (domain.GeneratedImage, error) {
	if err := domain.Check(brief); err != nil {
		return domain.GeneratedImage{}, fmt.Errorf("invalid image brief: %w", err)
	}

	model := g.resolveModel(ctx, brief.Model)
	input := g.buildInput(ctx, model, brief)

	url, err := upstream.Do(ctx, g.backoff, func(ctx context.Context) (string, error) {
		raw, err := g.client.Run(ctx, model, input)
		if err != nil {
			g.logger.Warn("image generation attempt failed", "model", model, "kind", upstream.Kind(err), "error", err)
			return "", err
		}
		return ImageURL(raw)
	})
	if err != nil {
		return domain.GeneratedImage{}, fmt.Errorf("generate image with %s: %w", model, err)
	}

	g.logger.Info("image generated", "model", model)
	return domain.GeneratedImage{URL: url, Model: model}, nil
}

func (g *ImageGenerator) resolveModel(ctx context.Context, requested string) string {
	model := requested
	if model == "" && g.settings != nil {
		model = g.settings.ImageModel(ctx)
	}
	return NormalizeModel(model)
}

// NormalizeModel returns model if supported, otherwise the default.
func NormalizeModel(model string) string {
	if slices.Contains(ImageModels, model) {
		return model
	}
	return DefaultImageModel
}

func (g *ImageGenerator) buildInput(ctx context.Context, model string, brief domain.ImageBrief) map[string]any {
	prompt := g.prompt(ctx, brief)
	switch model {
	case ModelFluxSchnell:
		return map[string]any{
			"prompt":        prompt,
			"num_outputs":   1,
			"aspect_ratio":  "1:1",
			"output_format": "png",
		}
	case ModelFlux11Pro:
		return map[string]any{
			"prompt":           prompt,
			"aspect_ratio":     "1:1",
			"output_format":    "png",
			"safety_tolerance": 2,
		}
	default:
		return map[string]any{
			"prompt":              prompt,
			"aspect_ratio":        "1:1",
			"magic_prompt_option": "Auto",
		}
	}
}

func (g *ImageGenerator) prompt(ctx context.Context, brief domain.ImageBrief) string {
	template := brief.PromptTemplate
	if template == "" && g.settings != nil {
		template = g.settings.ImagePromptTemplate(ctx)
	}
	if template == "" {
		template = DefaultPromptTemplate
	}
	negative := brief.NegativePromptTemplate
	if negative == "" && g.settings != nil {
		negative = g.settings.ImageNegativePrompt(ctx)
	}
	if negative == "" {
		negative = DefaultNegativePrompt
	}

	colors := "modern, vibrant"
	if len(brief.BrandColors) > 0 {
		colors = strings.Join(brief.BrandColors, ", ")
	}
	style := "premium"
	if brief.Industry != "" {
		style = "premium " + brief.Industry
	}

	prompt := strings.NewReplacer(
		"{hook}", brief.Hook,
		"{brandName}", brief.BrandName,
		"{styleKeywords}", style,
		"{colors}", colors,
		"{industry}", brief.Industry,
		"{targetAudience}", brief.TargetAudience,
	).Replace(template)

	avoid := negative
	if len(brief.BannedTerms) > 0 {
		avoid += ", " + strings.Join(brief.BannedTerms, ", ")
	}
	prompt += "\nAvoid: " + avoid
	if len(brief.ImageFeedback) > 0 {
		prompt += "\nThe previous image was rejected for: " + strings.Join(brief.ImageFeedback, "; ") +
			". Any text in the image must be short, correctly spelled English."
	}
	return prompt
}

// OCRStrategy extracts text from an image with one Replicate model.
type OCRStrategy struct {
	name   string
	model  string
	prompt string
	client *Client
}

var _ ports.TextExtractor = (*OCRStrategy)(nil)

// NewOCRStrategy builds a strategy; prompt is sent to vision-language models.
func NewOCRStrategy(client *Client, name, model, prompt string) *OCRStrategy {
	return &OCRStrategy{name: name, model: model, prompt: prompt, client: client}
}

// Name identifies the strategy in logs and configuration.
func (s *OCRStrategy) Name() string {
	return s.name
}

// ExtractText returns the text the model read from the image.
func (s *OCRStrategy) ExtractText(ctx context.Context, imageURL string) (string, error) {
	input := map[string]any{"image": imageURL}
	if s.prompt != "" {
		input["prompt"] = s.prompt
	}
	raw, err := s.client.Run(ctx, s.model, input)
	if err != nil {
		return "", err
	}
	text, err := Text(raw)
	if err != nil {
		return "", fmt.Errorf("%s output: %w", s.model, err)
	}
	return text, nil
}
