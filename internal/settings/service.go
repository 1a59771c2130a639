package settings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/teazle/autosocialai/internal/domain"
	"github.com/teazle/autosocialai/internal/ports"
)

// Well-known setting keys.
const (
	KeyContentSystemPrompt = "content_system_prompt"
	KeyImagePromptTemplate = "image_prompt_template"
	KeyImageNegativePrompt = "image_negative_prompt"
	KeyImageModel          = "replicate_model"
	KeyKillSwitch          = "kill_switch_enabled"
)

// ErrInvalidSetting is returned when a value fails its key's check.
var ErrInvalidSetting = errors.New("invalid setting")

type lookup struct {
	value string
	found bool
}

// Service reads system settings through a TTL cache. Writes go to the store
// and invalidate the cached key.
type Service struct {
	repo              ports.SettingsRepository
	cache             *Cache[lookup]
	defaultImageModel string
	checks            map[string]func(string) error
	logger            *slog.Logger
}

// Option customises a Service.
type Option func(*Service)

// WithCheck registers a validation function for key.
func WithCheck(key string, check func(string) error) Option {
	return func(s *Service) {
		s.checks[key] = check
	}
}

// WithDefaultImageModel sets the model used when replicate_model is unset.
func WithDefaultImageModel(model string) Option {
	return func(s *Service) {
		s.defaultImageModel = model
	}
}

// NewService builds a settings service.
func NewService(repo ports.SettingsRepository, size int, ttl time.Duration, logger *slog.Logger, opts ...Option) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cache, err := NewCache[lookup](size, ttl)
	if err != nil {
		return nil, err
	}
	s := &Service{
		repo:   repo,
		cache:  cache,
		checks: map[string]func(string) error{},
		logger: logger.With("component", "settings"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Lookup returns the stored value of key and whether it exists.
func (s *Service) Lookup(ctx context.Context, key string) (string, bool, error) {
	res, err := s.cache.GetOrRefresh(ctx, key, 0, func(ctx context.Context) (lookup, error) {
		value, found, err := s.repo.GetSetting(ctx, key)
		if err != nil {
			return lookup{}, fmt.Errorf("get setting %s: %w", key, err)
		}
		return lookup{value: value, found: found}, nil
	})
	if err != nil {
		return "", false, err
	}
	return res.value, res.found, nil
}

// Get returns the value of key, or fallback when it is unset, blank or
// cannot be read.
func (s *Service) Get(ctx context.Context, key, fallback string) string {
	value, found, err := s.Lookup(ctx, key)
	if err != nil {
		s.logger.Warn("setting unavailable, using default", "key", key, "error", err)
		return fallback
	}
	if !found || strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

// Set validates and stores value, then busts the cached entry.
func (s *Service) Set(ctx context.Context, key, value string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("%w: empty key", ErrInvalidSetting)
	}
	if check, ok := s.checks[key]; ok {
		if err := check(value); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidSetting, key, err)
		}
	}
	if err := s.repo.UpsertSetting(ctx, key, value); err != nil {
		return fmt.Errorf("upsert setting %s: %w", key, err)
	}
	s.cache.Invalidate(key)
	s.logger.Info("setting updated", "key", key)
	return nil
}

// List returns all stored settings, bypassing the cache.
func (s *Service) List(ctx context.Context) ([]domain.Setting, error) {
	items, err := s.repo.ListSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	return items, nil
}

// Invalidate forces the next read of key to hit the store.
func (s *Service) Invalidate(key string) {
	s.cache.Invalidate(key)
}

// ContentSystemPrompt returns the configured system prompt or "" for the default.
func (s *Service) ContentSystemPrompt(ctx context.Context) string {
	return s.Get(ctx, KeyContentSystemPrompt, "")
}

// ImageModel returns the configured image model.
func (s *Service) ImageModel(ctx context.Context) string {
	return s.Get(ctx, KeyImageModel, s.defaultImageModel)
}

// ImagePromptTemplate returns the configured image prompt template or "".
func (s *Service) ImagePromptTemplate(ctx context.Context) string {
	return s.Get(ctx, KeyImagePromptTemplate, "")
}

// ImageNegativePrompt returns the configured negative prompt or "".
func (s *Service) ImageNegativePrompt(ctx context.Context) string {
	return s.Get(ctx, KeyImageNegativePrompt, "")
}
