package upstream

import (
	"context"
	"fmt"
	"time"
)

// Backoff configures exponential retries.
type Backoff struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// Sleep waits between attempts; tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultBackoff starts at 2s, doubles and caps at 10s.
func DefaultBackoff() Backoff {
	return Backoff{
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
		MaxDelay:    10 * time.Second,
	}
}

// Delay returns the wait before retry number attempt (0-based).
func (b Backoff) Delay(attempt int) time.Duration {
	delay := b.BaseDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= b.MaxDelay {
			return b.MaxDelay
		}
	}
	if delay > b.MaxDelay {
		return b.MaxDelay
	}
	return delay
}

// Do runs fn until it succeeds, returns a non-retryable error, or the
// attempt budget is spent. A spent budget is reported as ErrExhausted,
// which is itself not retryable.
func Do[T any](ctx context.Context, b Backoff, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	attempts := b.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := b.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !IsRetryable(err) {
			return zero, err
		}
		if attempt == attempts-1 {
			break
		}
		if err := sleep(ctx, b.Delay(attempt)); err != nil {
			return zero, fmt.Errorf("retry interrupted: %w", err)
		}
	}

	return zero, fmt.Errorf("%w after %d attempts: %w", ErrExhausted, attempts, lastErr)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
