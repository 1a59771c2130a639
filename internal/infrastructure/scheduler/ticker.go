package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/teazle/autosocialai/internal/ports"
)

// ErrRunning is returned by Start on a ticker that is already running.
var ErrRunning = errors.New("scheduler already running")

// Ticker runs a job immediately and then every interval. Ticks that arrive
// while the job is still running are dropped, so runs never overlap.
type Ticker struct {
	name     string
	interval time.Duration

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

var _ ports.Scheduler = (*Ticker)(nil)

// NewTicker builds a scheduler firing every interval.
func NewTicker(name string, interval time.Duration) *Ticker {
	return &Ticker{name: name, interval: interval}
}

// Name identifies the job in logs and metrics.
func (t *Ticker) Name() string {
	return t.name
}

// Start begins ticking in a goroutine.
func (t *Ticker) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return nil
	}
	if t.interval <= 0 {
		return errors.New("scheduler interval must be positive")
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stop != nil {
		return ErrRunning
	}
	t.stop = make(chan struct{})
	t.done = make(chan struct{})

	go t.loop(ctx, job, t.stop, t.done)
	return nil
}

func (t *Ticker) loop(ctx context.Context, job func(time.Time), stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	job(time.Now())
	for {
		select {
		case tick := <-ticker.C:
			job(tick)
		case <-ctx.Done():
			return
		case <-stop:
			return
		}
	}
}

// Stop halts the ticker and waits for a running job to return or ctx to end.
func (t *Ticker) Stop(ctx context.Context) error {
	t.mu.Lock()
	stop, done := t.stop, t.done
	t.stop, t.done = nil, nil
	t.mu.Unlock()

	if stop == nil {
		return nil
	}
	close(stop)
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
