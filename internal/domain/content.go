package domain

// Platform names a publishing destination.
type Platform string

const (
	PlatformFacebook  Platform = "facebook"
	PlatformInstagram Platform = "instagram"
	PlatformTikTok    Platform = "tiktok"
)

// Platforms lists every supported destination in publishing order.
var Platforms = []Platform{PlatformFacebook, PlatformInstagram, PlatformTikTok}

// ContentDraft is one generation attempt: hook, per-platform captions and image.
// An empty ImageURL means the draft carries no image.
type ContentDraft struct {
	Hook       string `json:"hook"`
	CaptionIG  string `json:"caption_ig"`
	CaptionFB  string `json:"caption_fb"`
	CaptionTT  string `json:"caption_tt"`
	ImageURL   string `json:"image_url,omitempty"`
	ImageModel string `json:"image_model,omitempty"`
}

// HasImage reports whether the draft points at an image asset.
func (d ContentDraft) HasImage() bool {
	return d.ImageURL != ""
}

// WithImage returns a copy of the draft carrying the given image.
func (d ContentDraft) WithImage(url, model string) ContentDraft {
	d.ImageURL = url
	d.ImageModel = model
	return d
}

// Caption returns the caption used for a platform, falling back to the hook.
func (d ContentDraft) Caption(p Platform) string {
	var caption string
	switch p {
	case PlatformFacebook:
		caption = d.CaptionFB
	case PlatformInstagram:
		caption = d.CaptionIG
	case PlatformTikTok:
		caption = d.CaptionTT
	}
	if caption == "" {
		return d.Hook
	}
	return caption
}

// ContentBrief is what the text generator receives.
type ContentBrief struct {
	BrandName          string     `validate:"required"`
	BrandVoice         BrandVoice `validate:"omitempty,oneof=Friendly Premium Bold Luxury"`
	CompanyDescription string
	Industry           string
	TargetAudience     string
	SystemPrompt       string
	Feedback           string
	PreviousAttempt    *ContentDraft
}

// ImageBrief is what the image generator receives.
type ImageBrief struct {
	Hook                   string `validate:"required"`
	BrandName              string `validate:"required"`
	BrandColors            []string
	BannedTerms            []string
	Industry               string
	TargetAudience         string
	PromptTemplate         string
	NegativePromptTemplate string
	Model                  string
	ImageFeedback          []string
}

// GeneratedImage is the canonical output of the image generator.
type GeneratedImage struct {
	URL   string
	Model string
}

// TextLanguage classifies text found inside an image.
type TextLanguage string

const (
	LanguageEnglish    TextLanguage = "english"
	LanguageOther      TextLanguage = "other"
	LanguageGibberish  TextLanguage = "gibberish"
	LanguageDecorative TextLanguage = "decorative"
	LanguageNone       TextLanguage = "none"
)

// Quality is a coarse quality bucket.
type Quality string

const (
	QualityHigh   Quality = "high"
	QualityMedium Quality = "medium"
	QualityLow    Quality = "low"
)

// ParseQuality maps free text to a bucket, defaulting to medium.
func ParseQuality(s string) Quality {
	switch Quality(s) {
	case QualityHigh, QualityLow:
		return Quality(s)
	default:
		return QualityMedium
	}
}

// TextClassification is the output of the text classifier.
type TextClassification struct {
	IsReadable bool         `json:"isReadable"`
	Language   TextLanguage `json:"language"`
	Issues     []string     `json:"issues"`
}

// QualityAssessment is the raw verdict of the text quality model.
type QualityAssessment struct {
	ContentQuality Quality  `json:"contentQuality"`
	Issues         []string `json:"issues"`
	Score          int      `json:"score"`
}
