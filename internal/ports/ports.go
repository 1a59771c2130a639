package ports

import (
	"context"
	"time"

	"github.com/teazle/autosocialai/internal/domain"
)

// TextGenerator turns a brief into hook and captions.
type TextGenerator interface {
	GenerateText(ctx context.Context, brief domain.ContentBrief) (domain.ContentDraft, error)
}

// ImageGenerator turns a brief into a hosted image.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, brief domain.ImageBrief) (domain.GeneratedImage, error)
}

// TextExtractor pulls visible text out of an image.
type TextExtractor interface {
	Name() string
	ExtractText(ctx context.Context, imageURL string) (string, error)
}

// TextClassifier decides whether extracted text is readable language.
type TextClassifier interface {
	ClassifyText(ctx context.Context, text string) (domain.TextClassification, error)
}

// QualityModel rates caption quality.
type QualityModel interface {
	AssessText(ctx context.Context, draft domain.ContentDraft, brandName string) (domain.QualityAssessment, error)
}

// PipelineRepository persists pipeline items.
type PipelineRepository interface {
	InsertItem(ctx context.Context, item domain.PipelineItem) error
	GetItem(ctx context.Context, id string) (domain.PipelineItem, error)
	UpdateItem(ctx context.Context, id string, update domain.PipelineUpdate) error
	ListDue(ctx context.Context, now time.Time, limit int) ([]domain.PipelineItem, error)
	ListScheduled(ctx context.Context, clientID string, from, to time.Time) ([]time.Time, error)
}

// ClientRepository loads brands and their rules.
type ClientRepository interface {
	ListActiveClients(ctx context.Context) ([]domain.ClientProfile, error)
	GetClient(ctx context.Context, id string) (domain.ClientProfile, error)
}

// AccountRepository loads connected platform accounts and records posts.
type AccountRepository interface {
	ListAccounts(ctx context.Context, clientID string) ([]domain.SocialAccount, error)
	InsertPostLog(ctx context.Context, log domain.PostLog) error
}

// SettingsRepository stores system-wide settings.
type SettingsRepository interface {
	GetSetting(ctx context.Context, key string) (string, bool, error)
	ListSettings(ctx context.Context) ([]domain.Setting, error)
	UpsertSetting(ctx context.Context, key, value string) error
}

// ImageStore copies a generated image into durable storage and returns its URL.
type ImageStore interface {
	Store(ctx context.Context, sourceURL, itemID string) (string, error)
}

// Publisher posts to one platform.
type Publisher interface {
	Platform() domain.Platform
	Publish(ctx context.Context, account domain.SocialAccount, caption, imageURL string) (string, error)
}

// Notifier streams operator alerts to Telegram or other channels.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// Locker serialises writers of one pipeline item.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// Scheduler controls when jobs execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
