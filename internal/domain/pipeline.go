package domain

import (
	"errors"
	"time"
)

// ErrNotFound is returned by repositories when a record does not exist.
var ErrNotFound = errors.New("not found")

// PipelineStatus is the publishing status of a pipeline item.
type PipelineStatus string

const (
	StatusPending   PipelineStatus = "pending"
	StatusGenerated PipelineStatus = "generated"
	StatusPublished PipelineStatus = "published"
	StatusFailed    PipelineStatus = "failed"
)

// Valid reports whether the status belongs to the closed vocabulary.
func (s PipelineStatus) Valid() bool {
	switch s {
	case StatusPending, StatusGenerated, StatusPublished, StatusFailed:
		return true
	}
	return false
}

// ValidationStatus is the editorial verdict on a pipeline item.
type ValidationStatus string

const (
	ValidationPending      ValidationStatus = "pending"
	ValidationApproved     ValidationStatus = "approved"
	ValidationRejected     ValidationStatus = "rejected"
	ValidationManualReview ValidationStatus = "manual_review"
)

// Valid reports whether the status belongs to the closed vocabulary.
func (s ValidationStatus) Valid() bool {
	switch s {
	case ValidationPending, ValidationApproved, ValidationRejected, ValidationManualReview:
		return true
	}
	return false
}

// PipelineItem is one scheduled post.
type PipelineItem struct {
	ID               string              `json:"id"`
	ClientID         string              `json:"client_id"`
	ScheduledAt      time.Time           `json:"scheduled_at"`
	Status           PipelineStatus      `json:"status"`
	Hook             string              `json:"hook"`
	CaptionIG        string              `json:"caption_ig"`
	CaptionFB        string              `json:"caption_fb"`
	CaptionTT        string              `json:"caption_tt"`
	ImageURL         *string             `json:"image_url"`
	ImageModel       *string             `json:"image_model"`
	ValidationStatus ValidationStatus    `json:"validation_status"`
	ValidationResult *ValidationDetails  `json:"validation_result"`
	ValidationIssues []string            `json:"validation_issues"`
	ValidatedAt      *time.Time          `json:"validated_at"`
	EditorComments   string              `json:"editor_comments"`
	PostRefs         map[Platform]string `json:"post_refs"`
	ErrorLog         string              `json:"error_log"`
	RetryCount       int                 `json:"retry_count"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

// Draft returns the item's content as a draft.
func (p PipelineItem) Draft() ContentDraft {
	d := ContentDraft{
		Hook:      p.Hook,
		CaptionIG: p.CaptionIG,
		CaptionFB: p.CaptionFB,
		CaptionTT: p.CaptionTT,
	}
	if p.ImageURL != nil {
		d.ImageURL = *p.ImageURL
	}
	if p.ImageModel != nil {
		d.ImageModel = *p.ImageModel
	}
	return d
}

// PipelineUpdate is a partial update; nil fields are left untouched.
type PipelineUpdate struct {
	Status           *PipelineStatus
	Hook             *string
	CaptionIG        *string
	CaptionFB        *string
	CaptionTT        *string
	ImageURL         *string
	ImageModel       *string
	ClearImage       bool
	Validation       *ValidationResult
	ValidationStatus *ValidationStatus
	ValidatedAt      *time.Time
	PostRefs         map[Platform]string
	ErrorLog         *string
	RetryCount       *int
}

// DraftUpdate builds an update that replaces the item's content with draft.
func DraftUpdate(d ContentDraft) PipelineUpdate {
	u := PipelineUpdate{
		Hook:      &d.Hook,
		CaptionIG: &d.CaptionIG,
		CaptionFB: &d.CaptionFB,
		CaptionTT: &d.CaptionTT,
	}
	if d.HasImage() {
		u.ImageURL = &d.ImageURL
		u.ImageModel = &d.ImageModel
	} else {
		u.ClearImage = true
	}
	return u
}

// BrandVoice is the tone a client writes in.
type BrandVoice string

const (
	VoiceFriendly BrandVoice = "Friendly"
	VoicePremium  BrandVoice = "Premium"
	VoiceBold     BrandVoice = "Bold"
	VoiceLuxury   BrandVoice = "Luxury"
)

// ClientStatus gates whether content is generated for a client.
type ClientStatus string

const (
	ClientPending   ClientStatus = "pending"
	ClientActive    ClientStatus = "active"
	ClientPaused    ClientStatus = "paused"
	ClientSuspended ClientStatus = "suspended"
)

// Client is a brand the platform writes for.
type Client struct {
	ID                 string
	Name               string
	BrandVoice         BrandVoice
	CompanyDescription string
	Timezone           string
	Status             ClientStatus
}

// BrandAssets carries optional visual and wording constraints.
type BrandAssets struct {
	ColorHex               []string
	BannedTerms            []string
	DefaultHashtags        []string
	ImagePromptTemplate    string
	NegativePromptTemplate string
	Industry               string
	TargetAudience         string
}

// ContentRules controls cadence.
type ContentRules struct {
	PostsPerWeek     int    `validate:"min=1,max=7"`
	PostingDays      []int  `validate:"dive,min=0,max=6"`
	PostingTime      string `validate:"omitempty,hhmm"`
	AllowAutoPublish bool
}

// ClientProfile bundles a client with its rules and assets.
type ClientProfile struct {
	Client Client
	Rules  ContentRules
	Assets *BrandAssets
}

// ContentBrief builds the text brief for this client.
func (c ClientProfile) ContentBrief() ContentBrief {
	brief := ContentBrief{
		BrandName:          c.Client.Name,
		BrandVoice:         c.Client.BrandVoice,
		CompanyDescription: c.Client.CompanyDescription,
	}
	if c.Assets != nil {
		brief.Industry = c.Assets.Industry
		brief.TargetAudience = c.Assets.TargetAudience
	}
	return brief
}

// ImageBrief builds the image brief for a hook.
func (c ClientProfile) ImageBrief(hook string) ImageBrief {
	brief := ImageBrief{Hook: hook, BrandName: c.Client.Name}
	if c.Assets != nil {
		brief.BrandColors = c.Assets.ColorHex
		brief.BannedTerms = c.Assets.BannedTerms
		brief.Industry = c.Assets.Industry
		brief.TargetAudience = c.Assets.TargetAudience
		brief.PromptTemplate = c.Assets.ImagePromptTemplate
		brief.NegativePromptTemplate = c.Assets.NegativePromptTemplate
	}
	return brief
}

// SocialAccount is a connected platform account.
type SocialAccount struct {
	ID             string
	ClientID       string
	Platform       Platform
	BusinessID     string
	PageID         string
	TokenEncrypted string
	AccessToken    string `json:"-"`
	TokenExpiresAt *time.Time
}

// PostLog records a successful platform publish.
type PostLog struct {
	PipelineID  string
	Platform    Platform
	PostID      string
	PublishedAt time.Time
}

// Setting is a system-wide key/value pair.
type Setting struct {
	Key         string    `json:"key"`
	Value       string    `json:"value"`
	Description string    `json:"description,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Apply copies the set fields of u onto the item.
func (p *PipelineItem) Apply(u PipelineUpdate) {
	if u.Status != nil {
		p.Status = *u.Status
	}
	if u.Hook != nil {
		p.Hook = *u.Hook
	}
	if u.CaptionIG != nil {
		p.CaptionIG = *u.CaptionIG
	}
	if u.CaptionFB != nil {
		p.CaptionFB = *u.CaptionFB
	}
	if u.CaptionTT != nil {
		p.CaptionTT = *u.CaptionTT
	}
	if u.ClearImage {
		p.ImageURL, p.ImageModel = nil, nil
	}
	if u.ImageURL != nil {
		url := *u.ImageURL
		p.ImageURL = &url
	}
	if u.ImageModel != nil {
		model := *u.ImageModel
		p.ImageModel = &model
	}
	if u.Validation != nil {
		details := u.Validation.Details
		p.ValidationResult = &details
		p.ValidationIssues = u.Validation.IssueMessages()
	}
	if u.ValidationStatus != nil {
		p.ValidationStatus = *u.ValidationStatus
	}
	if u.ValidatedAt != nil {
		at := *u.ValidatedAt
		p.ValidatedAt = &at
	}
	if len(u.PostRefs) > 0 {
		if p.PostRefs == nil {
			p.PostRefs = make(map[Platform]string, len(u.PostRefs))
		}
		for platform, ref := range u.PostRefs {
			p.PostRefs[platform] = ref
		}
	}
	if u.ErrorLog != nil {
		p.ErrorLog = *u.ErrorLog
	}
	if u.RetryCount != nil {
		p.RetryCount = *u.RetryCount
	}
}
