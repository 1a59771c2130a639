package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/teazle/autosocialai/internal/ports"
)

// Job is a recurring background task bound to its driver.
type Job struct {
	Name   string
	Driver ports.Scheduler
	Run    func(ctx context.Context) error
}

// Scheduler wires the interval drivers with the use cases. Jobs never run
// concurrently with each other.
type Scheduler struct {
	jobs    []Job
	logger  *slog.Logger
	running sync.Mutex
}

// NewScheduler returns a helper to start/stop recurring jobs.
func NewScheduler(logger *slog.Logger, jobs ...Job) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{jobs: jobs, logger: logger.With("component", "worker")}
}

// DueJob checks for due posts.
func DueJob(driver ports.Scheduler, publisher *PublishService) Job {
	return Job{Name: "due_posts", Driver: driver, Run: func(ctx context.Context) error {
		_, err := publisher.PublishDue(ctx)
		return err
	}}
}

// GenerationJob keeps client calendars filled.
func GenerationJob(driver ports.Scheduler, planner *Planner) Job {
	return Job{Name: "generation", Driver: driver, Run: func(ctx context.Context) error {
		_, err := planner.Run(ctx)
		return err
	}}
}

// Start registers every job with its driver.
func (s *Scheduler) Start(ctx context.Context) error {
	for _, job := range s.jobs {
		if job.Driver == nil || job.Run == nil {
			continue
		}
		job := job
		if err := job.Driver.Start(ctx, func(trigger time.Time) {
			s.run(ctx, job, trigger)
		}); err != nil {
			return err
		}
		s.logger.Info("job scheduled", "job", job.Name)
	}
	return nil
}

func (s *Scheduler) run(ctx context.Context, job Job, trigger time.Time) {
	s.running.Lock()
	defer s.running.Unlock()
	if ctx.Err() != nil {
		return
	}
	started := time.Now()
	if err := job.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("job failed", "job", job.Name, "trigger", trigger, "error", err)
		return
	}
	s.logger.Debug("job finished", "job", job.Name, "elapsed", time.Since(started))
}

// Stop gracefully tears down every driver.
func (s *Scheduler) Stop(ctx context.Context) error {
	var errs []error
	for _, job := range s.jobs {
		if job.Driver == nil {
			continue
		}
		if err := job.Driver.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
