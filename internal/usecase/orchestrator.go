package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/teazle/autosocialai/internal/config"
	"github.com/teazle/autosocialai/internal/domain"
	"github.com/teazle/autosocialai/internal/metrics"
	"github.com/teazle/autosocialai/internal/pipeline"
	"github.com/teazle/autosocialai/internal/ports"
	"github.com/teazle/autosocialai/internal/upstream"
	"github.com/teazle/autosocialai/internal/validation"
)

// RegenerateMode selects which parts of an item are produced again.
type RegenerateMode string

const (
	ModeAll     RegenerateMode = "all"
	ModeContent RegenerateMode = "content"
	ModeImage   RegenerateMode = "image"
)

var (
	// ErrInvalidMode is returned for an unknown regeneration mode.
	ErrInvalidMode = errors.New("invalid regeneration mode")
	// ErrAlreadyPublished is returned when a published item would be rewritten.
	ErrAlreadyPublished = errors.New("item already published")
)

// ParseMode maps a request value to a mode. Empty means all.
func ParseMode(s string) (RegenerateMode, error) {
	switch RegenerateMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeAll:
		return ModeAll, nil
	case ModeContent:
		return ModeContent, nil
	case ModeImage:
		return ModeImage, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
}

// ContentValidator is what the orchestrator needs from validation.
type ContentValidator interface {
	Validate(ctx context.Context, draft domain.ContentDraft, brandName string) (domain.ValidationResult, error)
	ValidateTextOnly(ctx context.Context, draft domain.ContentDraft, brandName string) (domain.ValidationResult, error)
}

// PromptSource supplies the admin-editable system prompt.
type PromptSource interface {
	ContentSystemPrompt(ctx context.Context) string
}

// Policy holds the orchestrator's thresholds.
type Policy struct {
	MaxAttempts   int
	ApproveScore  int
	CriticalBelow int
	RejectBelow   int
	FallbackScore int
}

// DefaultPolicy mirrors the shipped validation defaults.
func DefaultPolicy() Policy {
	return PolicyFromConfig(config.DefaultValidation())
}

// PolicyFromConfig extracts the orchestrator's part of the validation config.
func PolicyFromConfig(cfg config.ValidationConfig) Policy {
	return Policy{
		MaxAttempts:   cfg.MaxAttempts,
		ApproveScore:  cfg.ApproveScore,
		CriticalBelow: cfg.CriticalBelow,
		RejectBelow:   cfg.RejectBelow,
		FallbackScore: cfg.FallbackScore,
	}
}

// OrchestratorDeps wires collaborators into the regeneration loop. Images,
// Store, Locker, Notifier, Prompts and Metrics are optional.
type OrchestratorDeps struct {
	Text      ports.TextGenerator
	Images    ports.ImageGenerator
	Validator ContentValidator
	Store     ports.ImageStore
	Pipeline  ports.PipelineRepository
	Clients   ports.ClientRepository
	Locker    ports.Locker
	Notifier  ports.Notifier
	Prompts   PromptSource
	Metrics   *metrics.Metrics
	Policy    Policy
	Logger    *slog.Logger
}

// Orchestrator generates, validates and regenerates post content until it
// is approved or the attempt budget runs out.
type Orchestrator struct {
	text      ports.TextGenerator
	images    ports.ImageGenerator
	validator ContentValidator
	store     ports.ImageStore
	pipeline  ports.PipelineRepository
	clients   ports.ClientRepository
	locker    ports.Locker
	notifier  ports.Notifier
	prompts   PromptSource
	metrics   *metrics.Metrics
	policy    Policy
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string
}

// NewOrchestrator constructs the orchestrator.
func NewOrchestrator(deps OrchestratorDeps) *Orchestrator {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	policy := deps.Policy
	if policy.MaxAttempts <= 0 {
		policy = DefaultPolicy()
	}
	return &Orchestrator{
		text:      deps.Text,
		images:    deps.Images,
		validator: deps.Validator,
		store:     deps.Store,
		pipeline:  deps.Pipeline,
		clients:   deps.Clients,
		locker:    deps.Locker,
		notifier:  deps.Notifier,
		prompts:   deps.Prompts,
		metrics:   deps.Metrics,
		policy:    policy,
		logger:    logger.With("component", "orchestrator"),
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Outcome describes what a generation run persisted.
type Outcome struct {
	Item     domain.PipelineItem
	Result   domain.ValidationResult
	Attempts int
	Warnings []string
}

type runSeed struct {
	mode          RegenerateMode
	base          domain.ContentDraft
	feedback      string
	imageFeedback []string
	previous      *domain.ContentDraft
}

type runState struct {
	draft    domain.ContentDraft
	result   domain.ValidationResult
	attempts int
	warnings []string
}

// Generate produces a new item for the client scheduled at scheduledAt and
// persists it with one insert. A run where no draft could be produced is
// still recorded, as a failed item that needs manual review.
func (o *Orchestrator) Generate(ctx context.Context, profile domain.ClientProfile, scheduledAt time.Time) (Outcome, error) {
	if o.text == nil || o.validator == nil || o.pipeline == nil {
		return Outcome{}, fmt.Errorf("orchestrator: missing collaborators")
	}

	id := o.newID()
	logger := o.logger.With("item_id", id, "client_id", profile.Client.ID)

	st, runErr := o.run(ctx, profile, runSeed{mode: ModeAll})
	if runErr != nil {
		if ctx.Err() != nil {
			return Outcome{}, runErr
		}
		item := o.failedItem(id, profile.Client.ID, scheduledAt, runErr)
		if err := o.pipeline.InsertItem(ctx, item); err != nil {
			return Outcome{}, fmt.Errorf("persist failed generation: %w", err)
		}
		logger.Error("generation failed", "error", runErr)
		o.notify(ctx, fmt.Sprintf("Generation failed for %s (post %s): %v", profile.Client.Name, id, runErr))
		return Outcome{Item: item, Attempts: st.attempts}, fmt.Errorf("generate content: %w", runErr)
	}

	draft := o.storeImage(ctx, st.draft, id, &st.warnings)
	now := o.now()
	item := domain.PipelineItem{
		ID:          id,
		ClientID:    profile.Client.ID,
		ScheduledAt: scheduledAt,
		Status:      domain.StatusGenerated,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	item.Apply(domain.DraftUpdate(draft))
	item.Apply(pipeline.Validated(st.result, o.policy.RejectBelow, now))
	if len(st.warnings) > 0 {
		item.ErrorLog = strings.Join(st.warnings, "; ")
	}

	if err := o.pipeline.InsertItem(ctx, item); err != nil {
		return Outcome{}, fmt.Errorf("persist item: %w", err)
	}

	o.metrics.ObserveValidation(string(item.ValidationStatus), st.result.Details.OverallScore)
	logger.Info("item generated",
		"validation_status", item.ValidationStatus,
		"score", st.result.Details.OverallScore,
		"attempts", st.attempts,
		"has_image", draft.HasImage())
	o.notifyReview(ctx, profile, item, st.result)

	return Outcome{Item: item, Result: st.result, Attempts: st.attempts, Warnings: st.warnings}, nil
}

// Regenerate rebuilds an existing item. The stored verdict and the editor's
// comments steer the first attempt. The item is updated with one statement.
func (o *Orchestrator) Regenerate(ctx context.Context, itemID string, mode RegenerateMode) (Outcome, error) {
	mode, err := ParseMode(string(mode))
	if err != nil {
		return Outcome{}, err
	}
	if o.text == nil || o.validator == nil || o.pipeline == nil || o.clients == nil {
		return Outcome{}, fmt.Errorf("orchestrator: missing collaborators")
	}

	unlock, err := o.lock(ctx, itemID)
	if err != nil {
		return Outcome{}, err
	}
	defer unlock()

	item, err := o.pipeline.GetItem(ctx, itemID)
	if err != nil {
		return Outcome{}, fmt.Errorf("load item: %w", err)
	}
	if item.Status == domain.StatusPublished {
		return Outcome{Item: item}, fmt.Errorf("regenerate %s: %w", itemID, ErrAlreadyPublished)
	}
	profile, err := o.clients.GetClient(ctx, item.ClientID)
	if err != nil {
		return Outcome{Item: item}, fmt.Errorf("load client: %w", err)
	}

	stored := domain.StoredResult(item)
	feedback := validation.Synthesize(stored)
	if comments := strings.TrimSpace(item.EditorComments); comments != "" {
		feedback = strings.TrimSpace(feedback + "\n\nEditor comments: " + comments)
	}
	previous := item.Draft()
	seed := runSeed{
		mode:          mode,
		base:          previous,
		feedback:      feedback,
		imageFeedback: validation.ExtractImageFeedback(stored.Issues),
		previous:      &previous,
	}

	st, err := o.run(ctx, profile, seed)
	if err != nil {
		return Outcome{Item: item, Attempts: st.attempts}, fmt.Errorf("regenerate %s: %w", itemID, err)
	}

	draft := st.draft
	if draft.ImageURL != previous.ImageURL {
		draft = o.storeImage(ctx, draft, item.ID, &st.warnings)
	}
	now := o.now()
	update := pipeline.Validated(st.result, o.policy.RejectBelow, now)
	content := domain.DraftUpdate(draft)
	update.Hook, update.CaptionIG, update.CaptionFB, update.CaptionTT = content.Hook, content.CaptionIG, content.CaptionFB, content.CaptionTT
	update.ImageURL, update.ImageModel, update.ClearImage = content.ImageURL, content.ImageModel, content.ClearImage
	if item.Status == domain.StatusPending {
		generated := domain.StatusGenerated
		update.Status = &generated
	}
	errorLog := strings.Join(st.warnings, "; ")
	update.ErrorLog = &errorLog

	if err := o.pipeline.UpdateItem(ctx, item.ID, update); err != nil {
		return Outcome{Item: item}, fmt.Errorf("update item: %w", err)
	}
	item.Apply(update)

	o.metrics.ObserveValidation(string(item.ValidationStatus), st.result.Details.OverallScore)
	o.logger.Info("item regenerated",
		"item_id", item.ID,
		"mode", mode,
		"validation_status", item.ValidationStatus,
		"score", st.result.Details.OverallScore,
		"attempts", st.attempts)
	o.notifyReview(ctx, profile, item, st.result)

	return Outcome{Item: item, Result: st.result, Attempts: st.attempts, Warnings: st.warnings}, nil
}

// Revalidate runs a fresh validation of the stored content and records it.
func (o *Orchestrator) Revalidate(ctx context.Context, itemID string) (Outcome, error) {
	if o.validator == nil || o.pipeline == nil || o.clients == nil {
		return Outcome{}, fmt.Errorf("orchestrator: missing collaborators")
	}
	unlock, err := o.lock(ctx, itemID)
	if err != nil {
		return Outcome{}, err
	}
	defer unlock()

	item, err := o.pipeline.GetItem(ctx, itemID)
	if err != nil {
		return Outcome{}, fmt.Errorf("load item: %w", err)
	}
	profile, err := o.clients.GetClient(ctx, item.ClientID)
	if err != nil {
		return Outcome{Item: item}, fmt.Errorf("load client: %w", err)
	}

	result := o.validate(ctx, item.Draft(), profile.Client.Name)
	update := pipeline.Validated(result, o.policy.RejectBelow, o.now())
	if err := o.pipeline.UpdateItem(ctx, item.ID, update); err != nil {
		return Outcome{Item: item}, fmt.Errorf("update item: %w", err)
	}
	item.Apply(update)

	o.metrics.ObserveValidation(string(item.ValidationStatus), result.Details.OverallScore)
	o.logger.Info("item revalidated", "item_id", item.ID, "validation_status", item.ValidationStatus, "score", result.Details.OverallScore)
	return Outcome{Item: item, Result: result, Attempts: 1}, nil
}

// run is the attempt loop. Attempts are strictly sequential and each one
// is steered only by the verdict of the attempt before it.
func (o *Orchestrator) run(ctx context.Context, profile domain.ClientProfile, seed runSeed) (runState, error) {
	var st runState
	feedback, imageFeedback, previous := seed.feedback, seed.imageFeedback, seed.previous
	remaining := o.policy.MaxAttempts

	for {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		st.attempts++
		logger := o.logger.With("client_id", profile.Client.ID, "attempt", st.attempts)

		draft, warnings, abort, err := o.produce(ctx, profile, seed, feedback, imageFeedback, previous)
		if err != nil {
			o.metrics.IncGenerationAttempt("error")
			if st.attempts > 1 {
				logger.Warn("regeneration failed, keeping previous attempt", "error", err)
				st.warnings = append(st.warnings, fmt.Sprintf("Regeneration attempt %d failed: %v", st.attempts, err))
				return st, nil
			}
			return st, err
		}
		// Only the kept draft's warnings are reported.
		st.warnings = warnings

		result := o.validate(ctx, draft, profile.Client.Name)
		st.draft, st.result = draft, result

		if result.Approved {
			o.metrics.IncGenerationAttempt("approved")
			logger.Info("attempt approved", "score", result.Details.OverallScore)
			return st, nil
		}
		if abort || !o.shouldRegenerate(result, remaining) {
			o.metrics.IncGenerationAttempt("final")
			logger.Info("attempt not approved, stopping",
				"score", result.Details.OverallScore,
				"issues", len(result.Issues),
				"aborted", abort)
			return st, nil
		}

		o.metrics.IncGenerationAttempt("regenerate")
		logger.Info("attempt not approved, regenerating", "score", result.Details.OverallScore, "issues", len(result.Issues))
		remaining--
		feedback = validation.Synthesize(result)
		imageFeedback = validation.ExtractImageFeedback(result.Issues)
		prev := draft
		previous = &prev
	}
}

// shouldRegenerate is the Validating -> Regenerating guard.
func (o *Orchestrator) shouldRegenerate(result domain.ValidationResult, remaining int) bool {
	if result.Approved || remaining <= 1 {
		return false
	}
	score := result.Details.OverallScore
	critical := score < o.policy.CriticalBelow
	for _, issue := range result.Issues {
		if issue.CriticalForRegeneration() {
			critical = true
			break
		}
	}
	return critical || score < o.policy.ApproveScore
}

// produce builds one draft. abort reports that no further attempt should be
// made after this one.
func (o *Orchestrator) produce(ctx context.Context, profile domain.ClientProfile, seed runSeed, feedback string, imageFeedback []string, previous *domain.ContentDraft) (domain.ContentDraft, []string, bool, error) {
	draft := seed.base
	if seed.mode == ModeAll {
		draft = draft.WithImage("", "")
	}

	if seed.mode != ModeImage {
		brief := profile.ContentBrief()
		if o.prompts != nil {
			brief.SystemPrompt = o.prompts.ContentSystemPrompt(ctx)
		}
		brief.Feedback = feedback
		brief.PreviousAttempt = previous

		text, err := o.text.GenerateText(ctx, brief)
		if err != nil {
			o.metrics.IncCollaboratorError("text", upstream.Kind(err))
			return domain.ContentDraft{}, nil, false, fmt.Errorf("generate text: %w", err)
		}
		draft.Hook, draft.CaptionIG, draft.CaptionFB, draft.CaptionTT = text.Hook, text.CaptionIG, text.CaptionFB, text.CaptionTT
	}

	if seed.mode == ModeContent {
		return draft, nil, false, nil
	}

	img, warning, abort := o.generateImage(ctx, profile, draft.Hook, imageFeedback)
	draft = draft.WithImage(img.URL, img.Model)
	if warning == "" {
		return draft, nil, abort, nil
	}
	return draft, []string{warning}, abort, nil
}

// generateImage never fails the attempt. Billing and quota failures drop
// the image; auth failures also stop further attempts.
func (o *Orchestrator) generateImage(ctx context.Context, profile domain.ClientProfile, hook string, imageFeedback []string) (domain.GeneratedImage, string, bool) {
	if o.images == nil {
		return domain.GeneratedImage{}, "Image generation is not configured; post saved without image", false
	}
	brief := profile.ImageBrief(hook)
	brief.ImageFeedback = imageFeedback

	img, err := o.images.GenerateImage(ctx, brief)
	if err == nil {
		return img, "", false
	}

	kind := upstream.Kind(err)
	o.metrics.IncCollaboratorError("image", kind)
	o.logger.Warn("image generation failed", "client_id", profile.Client.ID, "kind", kind, "error", err)

	switch {
	case upstream.IsUnauthorized(err):
		return domain.GeneratedImage{}, "Image generation unauthorized; check the Replicate API token. Post saved without image", true
	case upstream.IsPaymentRequired(err):
		return domain.GeneratedImage{}, "Image generation requires billing credits; post saved without image", false
	case errors.Is(err, upstream.ErrExhausted):
		return domain.GeneratedImage{}, "Image generation kept failing after retries; post saved without image", false
	default:
		return domain.GeneratedImage{}, fmt.Sprintf("Image generation failed (%s); post saved without image", kind), false
	}
}

// validate picks the image or text-only path and allows exactly one
// fallback call before recording a system error verdict.
func (o *Orchestrator) validate(ctx context.Context, draft domain.ContentDraft, brandName string) domain.ValidationResult {
	call := o.validator.Validate
	if !draft.HasImage() {
		call = o.validator.ValidateTextOnly
	}

	result, err := call(ctx, draft, brandName)
	if err == nil {
		return result
	}
	o.logger.Warn("validation failed, retrying once", "error", err)

	result, err = call(ctx, draft, brandName)
	if err == nil {
		return result
	}
	o.metrics.IncCollaboratorError("validator", upstream.Kind(err))
	o.logger.Error("validation fallback failed", "error", err)
	return validation.SystemErrorResult(o.policy.FallbackScore)
}

func (o *Orchestrator) storeImage(ctx context.Context, draft domain.ContentDraft, itemID string, warnings *[]string) domain.ContentDraft {
	if o.store == nil || !draft.HasImage() {
		return draft
	}
	url, err := o.store.Store(ctx, draft.ImageURL, itemID)
	if err != nil {
		o.metrics.IncCollaboratorError("storage", upstream.Kind(err))
		o.logger.Warn("image upload failed, keeping generator url", "item_id", itemID, "error", err)
		*warnings = append(*warnings, "Image could not be copied to storage; generator URL kept")
		return draft
	}
	return draft.WithImage(url, draft.ImageModel)
}

func (o *Orchestrator) failedItem(id, clientID string, scheduledAt time.Time, cause error) domain.PipelineItem {
	now := o.now()
	item := domain.PipelineItem{
		ID:          id,
		ClientID:    clientID,
		ScheduledAt: scheduledAt,
		Status:      domain.StatusFailed,
		ErrorLog:    cause.Error(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	result := validation.SystemErrorResult(o.policy.FallbackScore)
	item.Apply(pipeline.Validated(result, o.policy.RejectBelow, now))
	return item
}

func (o *Orchestrator) lock(ctx context.Context, itemID string) (func(), error) {
	if o.locker == nil {
		return func() {}, nil
	}
	unlock, err := o.locker.Lock(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("lock item %s: %w", itemID, err)
	}
	return unlock, nil
}

func (o *Orchestrator) notifyReview(ctx context.Context, profile domain.ClientProfile, item domain.PipelineItem, result domain.ValidationResult) {
	if result.Approved {
		return
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Post %s for %s is %s (score %d)", item.ID, profile.Client.Name, item.ValidationStatus, result.Details.OverallScore)
	for _, issue := range result.Issues {
		b.WriteString("\n- ")
		b.WriteString(issue.Message)
	}
	o.notify(ctx, b.String())
}

func (o *Orchestrator) notify(ctx context.Context, msg string) {
	if o.notifier == nil {
		return
	}
	if err := o.notifier.Notify(ctx, msg); err != nil {
		o.logger.Warn("notification failed", "error", err)
	}
}
