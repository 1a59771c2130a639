// Package server exposes the admin HTTP API and the metrics endpoint.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/teazle/autosocialai/internal/domain"
	"github.com/teazle/autosocialai/internal/usecase"
)

const (
	shutdownTimeout = 10 * time.Second
	// manualHorizonDays is how far ahead POST /api/generate-posts plans.
	manualHorizonDays = 28
)

func init() {
	gin.SetMode(gin.ReleaseMode)
}

// Planner fills a client's calendar on demand.
type Planner interface {
	RunClient(ctx context.Context, clientID string, days int) (usecase.PlanReport, error)
}

// Editor regenerates and revalidates stored items.
type Editor interface {
	Regenerate(ctx context.Context, itemID string, mode usecase.RegenerateMode) (usecase.Outcome, error)
	Revalidate(ctx context.Context, itemID string) (usecase.Outcome, error)
}

// Publisher posts a stored item now.
type Publisher interface {
	Publish(ctx context.Context, itemID string) (usecase.PublishResult, error)
}

// Settings reads and writes system settings.
type Settings interface {
	List(ctx context.Context) ([]domain.Setting, error)
	Set(ctx context.Context, key, value string) error
}

// KillSwitch toggles automated publishing.
type KillSwitch interface {
	KillSwitchEnabled() bool
	SetKillSwitch(ctx context.Context, enabled bool) error
}

// Deps wires the HTTP handlers to the use cases.
type Deps struct {
	Planner   Planner
	Editor    Editor
	Publisher Publisher
	Settings  Settings
	Flags     KillSwitch
	Gatherer  prometheus.Gatherer
	Logger    *slog.Logger
}

// Server owns the gin engine and its http.Server.
type Server struct {
	engine *gin.Engine
	addr   string
	deps   Deps
	logger *slog.Logger
}

// New builds the router. Nil collaborators answer 503 on their routes.
func New(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(logger))

	s := &Server{engine: engine, addr: addr, deps: deps, logger: logger.With("component", "http")}
	s.routes()
	return s
}

// Handler returns the router for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() {
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	gatherer := s.deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	api := s.engine.Group("/api")
	api.POST("/generate-posts", s.generatePosts)

	admin := api.Group("/admin")
	admin.GET("/killswitch", s.getKillSwitch)
	admin.POST("/killswitch", s.setKillSwitch)
	admin.GET("/settings", s.listSettings)
	admin.POST("/settings", s.updateSetting)

	item := api.Group("/pipeline/:id")
	item.POST("/revalidate", s.revalidate)
	item.POST("/regenerate", s.regenerate(""))
	item.POST("/regenerate-content", s.regenerate(usecase.ModeContent))
	item.POST("/regenerate-image", s.regenerate(usecase.ModeImage))
	item.POST("/publish", s.publish)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info("http server stopped")
	return nil
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()
		if c.Request.URL.Path == "/healthz" || c.Request.URL.Path == "/metrics" {
			return
		}
		logger.Info("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"elapsed", time.Since(started),
		)
	}
}
