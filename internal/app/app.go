package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	gcs "cloud.google.com/go/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/teazle/autosocialai/internal/config"
	"github.com/teazle/autosocialai/internal/crypto"
	"github.com/teazle/autosocialai/internal/infrastructure/llm"
	"github.com/teazle/autosocialai/internal/infrastructure/lock"
	"github.com/teazle/autosocialai/internal/infrastructure/replicate"
	"github.com/teazle/autosocialai/internal/infrastructure/scheduler"
	"github.com/teazle/autosocialai/internal/infrastructure/social"
	"github.com/teazle/autosocialai/internal/infrastructure/storage"
	"github.com/teazle/autosocialai/internal/infrastructure/telegram"
	"github.com/teazle/autosocialai/internal/logging"
	"github.com/teazle/autosocialai/internal/metrics"
	"github.com/teazle/autosocialai/internal/ocr"
	"github.com/teazle/autosocialai/internal/ports"
	"github.com/teazle/autosocialai/internal/server"
	"github.com/teazle/autosocialai/internal/settings"
	"github.com/teazle/autosocialai/internal/upstream"
	"github.com/teazle/autosocialai/internal/usecase"
	"github.com/teazle/autosocialai/internal/validation"
)

const stopTimeout = 30 * time.Second

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg    config.Config
	logger *slog.Logger

	db    *sql.DB
	redis *redis.Client
	gcs   *gcs.Client

	repo     *storage.PostgresRepository
	registry *prometheus.Registry

	Settings     *settings.Service
	Flags        *settings.Flags
	Orchestrator *usecase.Orchestrator
	Planner      *usecase.Planner
	Publisher    *usecase.PublishService
}

// New connects every backing service and builds the use cases. Close must
// be called to release connections.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &Application{cfg: cfg, logger: baseLogger}
	if err := a.build(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *Application) build(ctx context.Context) error {
	cfg, logger := a.cfg, a.logger

	db, err := storage.Open(ctx, cfg.Database.DSN)
	if err != nil {
		return err
	}
	a.db = db
	a.repo = storage.NewPostgresRepository(db, cfg.Validation.MaxPublishFailures)

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.MustNew(a.registry)

	a.Settings, err = settings.NewService(a.repo, cfg.Settings.CacheSize, cfg.Settings.CacheTTL, logger,
		settings.WithDefaultImageModel(replicate.NormalizeModel(cfg.Replicate.DefaultModel)),
		settings.WithCheck(settings.KeyImageModel, checkImageModel),
	)
	if err != nil {
		return fmt.Errorf("settings: %w", err)
	}
	a.Flags = settings.NewFlags(a.Settings, logger)
	if err := a.Flags.Load(ctx); err != nil {
		logger.Warn("flags not loaded, kill switch off", "error", err)
	}

	llmClient := llm.NewClient(cfg.LLM)
	if !llmClient.Configured() {
		logger.Warn("llm api key missing, generation and scoring will fail")
	}
	replicateClient := replicate.NewClient(cfg.Replicate.BaseURL, cfg.Replicate.APIToken)
	if !replicateClient.Configured() {
		logger.Warn("replicate token missing, posts will be text-only")
	}

	backoff := upstream.DefaultBackoff()
	if cfg.Replicate.MaxRetries > 0 {
		backoff.MaxAttempts = cfg.Replicate.MaxRetries
	}
	images := replicate.NewImageGenerator(replicateClient, a.Settings, backoff, logger)

	validator, err := newValidator(cfg, llmClient, replicateClient, logger)
	if err != nil {
		return err
	}

	locker, err := a.newLocker(ctx)
	if err != nil {
		return err
	}
	store, err := a.newImageStore(ctx)
	if err != nil {
		return err
	}

	var notifier ports.Notifier
	if n := telegram.NewNotifier(cfg.Notifications.Telegram.BotToken, cfg.Notifications.Telegram.ChatID); n.Configured() {
		notifier = n
	}
	var tokens usecase.TokenDecrypter
	if cfg.Security.EncryptionKey != "" {
		tokens = crypto.New(cfg.Security.EncryptionKey)
	} else {
		logger.Warn("encryption key missing, only plain account tokens can be used")
	}

	policy := usecase.PolicyFromConfig(cfg.Validation)
	a.Orchestrator = usecase.NewOrchestrator(usecase.OrchestratorDeps{
		Text:      llm.NewContentGenerator(llmClient),
		Images:    images,
		Validator: validator,
		Store:     store,
		Pipeline:  a.repo,
		Clients:   a.repo,
		Locker:    locker,
		Notifier:  notifier,
		Prompts:   a.Settings,
		Metrics:   m,
		Policy:    policy,
		Logger:    logger,
	})
	a.Planner = usecase.NewPlanner(usecase.PlannerDeps{
		Clients:       a.repo,
		Pipeline:      a.repo,
		Generator:     a.Orchestrator,
		LookaheadDays: cfg.Worker.LookaheadDays,
		Metrics:       m,
		Logger:        logger,
	})
	a.Publisher = usecase.NewPublishService(usecase.PublisherDeps{
		Pipeline:  a.repo,
		Clients:   a.repo,
		Accounts:  a.repo,
		Validator: validator,
		Platforms: []ports.Publisher{
			social.NewFacebookPublisher(cfg.Social.MetaAPIBase),
			social.NewInstagramPublisher(cfg.Social.MetaAPIBase),
			social.NewTikTokPublisher(cfg.Social.TikTokAPIBase),
		},
		Tokens:      tokens,
		Flags:       a.Flags,
		Locker:      locker,
		Notifier:    notifier,
		Metrics:     m,
		RejectBelow: policy.RejectBelow,
		MaxFailures: cfg.Validation.MaxPublishFailures,
		DueBatch:    cfg.Worker.DueBatch,
		Logger:      logger,
	})
	return nil
}

func checkImageModel(value string) error {
	if replicate.NormalizeModel(value) != value {
		return fmt.Errorf("unsupported model %q, expected one of %v", value, replicate.ImageModels)
	}
	return nil
}

// newValidator builds the OCR chain and the scorer behind the content validator.
func newValidator(cfg config.Config, llmClient *llm.Client, replicateClient *replicate.Client, logger *slog.Logger) (*validation.Validator, error) {
	registry := ocr.NewRegistry()
	names := make([]string, 0, len(cfg.Replicate.OCR))
	for _, m := range cfg.Replicate.OCR {
		registry.Register(replicate.NewOCRStrategy(replicateClient, m.Name, m.Model, m.Prompt))
		names = append(names, m.Name)
	}
	chain, err := registry.Chain(names...)
	if err != nil {
		return nil, fmt.Errorf("ocr chain: %w", err)
	}

	opts := []validation.AnalyzerOption{validation.WithClassifier(llm.NewTextClassifier(llmClient))}
	if lr := cfg.Replicate.LastResort; lr != nil {
		opts = append(opts, validation.WithLastResort(replicate.NewOCRStrategy(replicateClient, lr.Name, lr.Model, lr.Prompt)))
	}

	var analyzer *validation.Analyzer
	if replicateClient.Configured() && chain.Len() > 0 {
		analyzer = validation.NewAnalyzer(chain, logger, opts...)
	}
	thresholds := thresholdsFromConfig(cfg.Validation)
	scorer := validation.NewScorer(llm.NewQualityModel(llmClient), thresholds)
	return validation.NewValidator(analyzer, scorer, thresholds, logger), nil
}

func thresholdsFromConfig(v config.ValidationConfig) validation.Thresholds {
	return validation.Thresholds{
		Approve:            v.ApproveScore,
		TextOnlyApprove:    v.TextOnlyApproveScore,
		TextOnlyNoCritical: v.TextOnlyNoCritical,
		ScorerApprove:      v.ScorerApproveScore,
		ScorerNoCritical:   v.ScorerNoCritical,
		DegradedFloor:      v.DegradedFloor,
		DegradedPenalty:    v.DegradedPenalty,
		SystemErrorScore:   v.SystemErrorScore,
		ShortCaptionWords:  v.ExtremeShortIGWords,
		LongCaptionWords:   v.ExtremeLongCaptionLen,
	}
}

func (a *Application) newLocker(ctx context.Context) (ports.Locker, error) {
	if a.cfg.Redis.Address == "" {
		a.logger.Info("redis not configured, using in-process locks")
		return lock.NewLocalLocker(), nil
	}
	rdb, err := lock.NewRedisClient(ctx, a.cfg.Redis.Address)
	if err != nil {
		return nil, err
	}
	a.redis = rdb
	return lock.NewRedisLocker(rdb, a.cfg.Redis.LockTTL, a.logger), nil
}

func (a *Application) newImageStore(ctx context.Context) (ports.ImageStore, error) {
	if a.cfg.Storage.Bucket == "" {
		a.logger.Info("storage bucket not configured, keeping generator image urls")
		return nil, nil
	}
	client, err := storage.NewGCSClient(ctx, a.cfg.Storage.CredentialsJSON)
	if err != nil {
		return nil, err
	}
	a.gcs = client
	return storage.NewGCSImageStore(client, a.cfg.Storage, a.logger), nil
}

// Migrate applies the database schema.
func (a *Application) Migrate(ctx context.Context) error {
	return a.repo.Migrate(ctx)
}

// Serve runs the HTTP API and, when withWorker is set, the background jobs
// until ctx is cancelled or one of them fails.
func (a *Application) Serve(ctx context.Context, withWorker bool) error {
	srv := server.New(a.cfg.Server.Addr, server.Deps{
		Planner:   a.Planner,
		Editor:    a.Orchestrator,
		Publisher: a.Publisher,
		Settings:  a.Settings,
		Flags:     a.Flags,
		Gatherer:  a.registry,
		Logger:    a.logger,
	})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(ctx) })
	if withWorker {
		g.Go(func() error { return a.Work(ctx) })
	}
	return g.Wait()
}

// Work runs the due-post and generation jobs until ctx is cancelled.
func (a *Application) Work(ctx context.Context) error {
	jobs := usecase.NewScheduler(a.logger,
		usecase.DueJob(scheduler.NewTicker("due_posts", a.cfg.Worker.DueInterval), a.Publisher),
		usecase.GenerationJob(scheduler.NewTicker("generation", a.cfg.Worker.GenerationInterval), a.Planner),
	)
	if err := jobs.Start(ctx); err != nil {
		return fmt.Errorf("start worker: %w", err)
	}
	a.logger.Info("worker started",
		"due_interval", a.cfg.Worker.DueInterval,
		"generation_interval", a.cfg.Worker.GenerationInterval,
	)
	<-ctx.Done()
	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), stopTimeout)
	defer cancel()
	return jobs.Stop(stopCtx)
}

// Close releases every connection opened by New.
func (a *Application) Close() error {
	var errs []error
	if a.gcs != nil {
		errs = append(errs, a.gcs.Close())
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	return errors.Join(errs...)
}
