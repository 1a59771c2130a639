package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/teazle/autosocialai/internal/domain"
	"github.com/teazle/autosocialai/internal/metrics"
	"github.com/teazle/autosocialai/internal/pipeline"
	"github.com/teazle/autosocialai/internal/ports"
)

var (
	// ErrKillSwitch is returned while publishing is paused.
	ErrKillSwitch = errors.New("kill switch is enabled, auto-posting is paused")
	// ErrNoAccounts is returned when the client has no connected platform.
	ErrNoAccounts = errors.New("no social accounts connected")
	// ErrPublishFailed is returned when at least one platform rejected the post.
	ErrPublishFailed = errors.New("publish failed")
)

// RejectedError reports the verdict that blocked publishing.
type RejectedError struct {
	Status domain.ValidationStatus
	Score  int
	Issues []string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("content %s (score %d): %s", e.Status, e.Score, strings.Join(e.Issues, "; "))
}

func (e *RejectedError) Unwrap() error {
	return pipeline.ErrNotApproved
}

// KillSwitch reports whether publishing is paused.
type KillSwitch interface {
	KillSwitchEnabled() bool
}

// TokenDecrypter turns stored platform tokens into access tokens.
type TokenDecrypter interface {
	Decrypt(encoded string) (string, error)
}

// PublisherDeps wires the publishing use case.
type PublisherDeps struct {
	Pipeline    ports.PipelineRepository
	Clients     ports.ClientRepository
	Accounts    ports.AccountRepository
	Validator   ContentValidator
	Platforms   []ports.Publisher
	Tokens      TokenDecrypter
	Flags       KillSwitch
	Locker      ports.Locker
	Notifier    ports.Notifier
	Metrics     *metrics.Metrics
	RejectBelow int
	MaxFailures int
	DueBatch    int
	Logger      *slog.Logger
}

// PublishService posts approved items to every connected platform.
type PublishService struct {
	pipeline    ports.PipelineRepository
	clients     ports.ClientRepository
	accounts    ports.AccountRepository
	validator   ContentValidator
	platforms   map[domain.Platform]ports.Publisher
	tokens      TokenDecrypter
	flags       KillSwitch
	locker      ports.Locker
	notifier    ports.Notifier
	metrics     *metrics.Metrics
	rejectBelow int
	maxFailures int
	dueBatch    int
	logger      *slog.Logger
	now         func() time.Time
}

// NewPublishService constructs the publisher.
func NewPublishService(deps PublisherDeps) *PublishService {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	platforms := make(map[domain.Platform]ports.Publisher, len(deps.Platforms))
	for _, p := range deps.Platforms {
		platforms[p.Platform()] = p
	}
	maxFailures := deps.MaxFailures
	if maxFailures <= 0 {
		maxFailures = pipeline.DefaultMaxPublishFailures
	}
	batch := deps.DueBatch
	if batch <= 0 {
		batch = 20
	}
	rejectBelow := deps.RejectBelow
	if rejectBelow <= 0 {
		rejectBelow = DefaultPolicy().RejectBelow
	}
	return &PublishService{
		pipeline:    deps.Pipeline,
		clients:     deps.Clients,
		accounts:    deps.Accounts,
		validator:   deps.Validator,
		platforms:   platforms,
		tokens:      deps.Tokens,
		flags:       deps.Flags,
		locker:      deps.Locker,
		notifier:    deps.Notifier,
		metrics:     deps.Metrics,
		rejectBelow: rejectBelow,
		maxFailures: maxFailures,
		dueBatch:    batch,
		logger:      logger.With("component", "publisher"),
		now:         time.Now,
	}
}

// PublishResult describes one publish run.
type PublishResult struct {
	Item   domain.PipelineItem        `json:"post"`
	Refs   map[domain.Platform]string `json:"post_refs,omitempty"`
	Errors []string                   `json:"errors,omitempty"`
}

// DueReport summarises one due-post check.
type DueReport struct {
	Due       int `json:"due"`
	Published int `json:"published"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// PublishDue publishes every approved item whose time has come.
func (s *PublishService) PublishDue(ctx context.Context) (DueReport, error) {
	if s.pipeline == nil {
		return DueReport{}, nil
	}
	if s.paused() {
		s.logger.Debug("kill switch enabled, skipping due posts")
		return DueReport{}, nil
	}
	started := time.Now()
	defer func() { s.metrics.ObserveJob("due_posts", time.Since(started)) }()

	items, err := s.pipeline.ListDue(ctx, s.now(), s.dueBatch)
	if err != nil {
		return DueReport{}, fmt.Errorf("list due: %w", err)
	}
	report := DueReport{Due: len(items)}
	if len(items) == 0 {
		return report, nil
	}
	s.logger.Info("due posts found", "count", len(items))

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		_, err := s.Publish(ctx, item.ID)
		switch {
		case err == nil:
			report.Published++
		case errors.Is(err, ErrKillSwitch):
			report.Skipped += len(items) - report.Published - report.Failed - report.Skipped
			return report, nil
		case errors.Is(err, ErrPublishFailed), errors.Is(err, ErrNoAccounts):
			report.Failed++
		default:
			report.Skipped++
			s.logger.Warn("due post skipped", "item_id", item.ID, "error", err)
		}
	}
	return report, nil
}

// Publish re-validates an item and posts it to every connected platform.
// The item is only marked published when every platform succeeded.
func (s *PublishService) Publish(ctx context.Context, itemID string) (PublishResult, error) {
	if s.pipeline == nil || s.accounts == nil || s.clients == nil || s.validator == nil {
		return PublishResult{}, fmt.Errorf("publisher: missing collaborators")
	}
	if s.paused() {
		return PublishResult{}, ErrKillSwitch
	}

	unlock, err := s.lock(ctx, itemID)
	if err != nil {
		return PublishResult{}, err
	}
	defer unlock()

	item, err := s.pipeline.GetItem(ctx, itemID)
	if err != nil {
		return PublishResult{}, fmt.Errorf("load item: %w", err)
	}
	logger := s.logger.With("item_id", item.ID, "client_id", item.ClientID)

	if item.Status == domain.StatusFailed {
		requeue, err := pipeline.Requeue(item, s.maxFailures)
		if err != nil {
			return PublishResult{Item: item}, err
		}
		item.Apply(requeue)
	}
	if err := pipeline.CanTransition(item.Status, domain.StatusPublished); err != nil {
		return PublishResult{Item: item}, err
	}
	switch item.ValidationStatus {
	case domain.ValidationRejected, domain.ValidationManualReview:
		score := 0
		if item.ValidationResult != nil {
			score = item.ValidationResult.OverallScore
		}
		return PublishResult{Item: item}, &RejectedError{Status: item.ValidationStatus, Score: score, Issues: item.ValidationIssues}
	}

	profile, err := s.clients.GetClient(ctx, item.ClientID)
	if err != nil {
		return PublishResult{Item: item}, fmt.Errorf("load client: %w", err)
	}

	fresh, err := s.validator.Validate(ctx, item.Draft(), profile.Client.Name)
	if err != nil {
		return PublishResult{Item: item}, fmt.Errorf("pre-publish validation: %w", err)
	}
	if err := pipeline.CheckPublishable(item, fresh); err != nil {
		update := pipeline.Validated(fresh, s.rejectBelow, s.now())
		if uErr := s.pipeline.UpdateItem(ctx, item.ID, update); uErr != nil {
			logger.Error("record failed validation", "error", uErr)
		}
		item.Apply(update)
		logger.Warn("final validation blocked publishing", "score", fresh.Details.OverallScore)
		s.metrics.ObserveValidation(string(item.ValidationStatus), fresh.Details.OverallScore)
		return PublishResult{Item: item}, &RejectedError{
			Status: item.ValidationStatus,
			Score:  fresh.Details.OverallScore,
			Issues: fresh.IssueMessages(),
		}
	}

	accounts, err := s.accounts.ListAccounts(ctx, item.ClientID)
	if err != nil {
		return PublishResult{Item: item}, fmt.Errorf("list accounts: %w", err)
	}
	if len(accounts) == 0 {
		return s.recordFailure(ctx, item, nil, []string{ErrNoAccounts.Error()}, ErrNoAccounts)
	}

	draft := item.Draft()
	refs := make(map[domain.Platform]string, len(accounts))
	var failures []string
	for _, account := range accounts {
		postID, err := s.publishTo(ctx, account, draft)
		if err != nil {
			s.metrics.IncPublish(string(account.Platform), "error")
			logger.Warn("platform publish failed", "platform", account.Platform, "error", err)
			failures = append(failures, fmt.Sprintf("%s: %v", account.Platform, err))
			continue
		}
		s.metrics.IncPublish(string(account.Platform), "ok")
		refs[account.Platform] = postID
		log := domain.PostLog{PipelineID: item.ID, Platform: account.Platform, PostID: postID, PublishedAt: s.now()}
		if err := s.accounts.InsertPostLog(ctx, log); err != nil {
			logger.Error("post log not recorded", "platform", account.Platform, "error", err)
		}
	}

	if len(failures) > 0 {
		return s.recordFailure(ctx, item, refs, failures, ErrPublishFailed)
	}

	update, err := pipeline.Published(item, refs)
	if err != nil {
		return PublishResult{Item: item, Refs: refs}, err
	}
	if err := s.pipeline.UpdateItem(ctx, item.ID, update); err != nil {
		return PublishResult{Item: item, Refs: refs}, fmt.Errorf("mark published: %w", err)
	}
	item.Apply(update)
	logger.Info("item published", "platforms", len(refs))
	return PublishResult{Item: item, Refs: refs}, nil
}

func (s *PublishService) publishTo(ctx context.Context, account domain.SocialAccount, draft domain.ContentDraft) (string, error) {
	publisher, ok := s.platforms[account.Platform]
	if !ok {
		return "", fmt.Errorf("unknown platform %q", account.Platform)
	}
	token := account.AccessToken
	if token == "" {
		if s.tokens == nil {
			return "", fmt.Errorf("no token decrypter configured")
		}
		var err error
		token, err = s.tokens.Decrypt(account.TokenEncrypted)
		if err != nil {
			return "", fmt.Errorf("decrypt token: %w", err)
		}
	}
	account.AccessToken = token
	return publisher.Publish(ctx, account, draft.Caption(account.Platform), draft.ImageURL)
}

// recordFailure writes the failed status in one update. Refs of platforms
// that did succeed are kept.
func (s *PublishService) recordFailure(ctx context.Context, item domain.PipelineItem, refs map[domain.Platform]string, failures []string, cause error) (PublishResult, error) {
	joined := strings.Join(failures, "; ")
	update, exhausted := pipeline.Failed(item, errors.New(joined), s.maxFailures)
	update.PostRefs = refs
	if err := s.pipeline.UpdateItem(ctx, item.ID, update); err != nil {
		return PublishResult{Item: item, Refs: refs, Errors: failures}, fmt.Errorf("mark failed: %w", err)
	}
	item.Apply(update)

	logger := s.logger.With("item_id", item.ID, "retry_count", item.RetryCount)
	msg := fmt.Sprintf("Publishing post %s failed (attempt %d/%d): %s", item.ID, item.RetryCount, s.maxFailures, joined)
	if exhausted {
		logger.Error("publish retries exhausted", "error", joined)
		msg += "\nNo further automatic retries."
	} else {
		logger.Warn("publish failed", "error", joined)
	}
	s.notify(ctx, msg)

	err := cause
	if !errors.Is(cause, ErrNoAccounts) {
		err = fmt.Errorf("%w: %s", cause, joined)
	}
	return PublishResult{Item: item, Refs: refs, Errors: failures}, err
}

func (s *PublishService) paused() bool {
	return s.flags != nil && s.flags.KillSwitchEnabled()
}

func (s *PublishService) lock(ctx context.Context, itemID string) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	unlock, err := s.locker.Lock(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("lock item %s: %w", itemID, err)
	}
	return unlock, nil
}

func (s *PublishService) notify(ctx context.Context, msg string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, msg); err != nil {
		s.logger.Warn("notification failed", "error", err)
	}
}
