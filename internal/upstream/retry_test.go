package upstream

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func recordingSleep(delays *[]time.Duration) func(context.Context, time.Duration) error {
	return func(_ context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
}

func TestBackoffDelayDoublesAndCaps(t *testing.T) {
	t.Parallel()

	b := DefaultBackoff()
	require.Equal(t, 2*time.Second, b.Delay(0))
	require.Equal(t, 4*time.Second, b.Delay(1))
	require.Equal(t, 8*time.Second, b.Delay(2))
	require.Equal(t, 10*time.Second, b.Delay(3))
	require.Equal(t, 10*time.Second, b.Delay(10))
}

func TestDoRetriesTransientFailures(t *testing.T) {
	t.Parallel()

	var delays []time.Duration
	b := DefaultBackoff()
	b.MaxAttempts = 4
	b.Sleep = recordingSleep(&delays)

	calls := 0
	got, err := Do(context.Background(), b, func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", NewStatusError("replicate", http.StatusServiceUnavailable, "")
		}
		return "ok", nil
	})

	require.NoError(t, err)
	require.Equal(t, "ok", got)
	require.Equal(t, 3, calls)
	require.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, delays)
}

func TestDoStopsOnNonRetryable(t *testing.T) {
	t.Parallel()

	for _, status := range []int{http.StatusPaymentRequired, http.StatusUnauthorized, http.StatusForbidden} {
		var delays []time.Duration
		b := DefaultBackoff()
		b.Sleep = recordingSleep(&delays)

		calls := 0
		_, err := Do(context.Background(), b, func(context.Context) (int, error) {
			calls++
			return 0, NewStatusError("replicate", status, "nope")
		})

		require.Error(t, err)
		require.Equal(t, 1, calls, "status %d", status)
		require.Empty(t, delays)
	}
}

func TestDoGivesUpAfterBudget(t *testing.T) {
	t.Parallel()

	var delays []time.Duration
	b := DefaultBackoff()
	b.Sleep = recordingSleep(&delays)

	calls := 0
	_, err := Do(context.Background(), b, func(context.Context) (int, error) {
		calls++
		return 0, NewStatusError("replicate", http.StatusTooManyRequests, "")
	})

	require.ErrorIs(t, err, ErrExhausted)
	require.False(t, IsRetryable(err))
	require.Equal(t, "exhausted", Kind(err))
	require.Equal(t, 3, calls)
	require.Len(t, delays, 2)
}

func TestClassification(t *testing.T) {
	t.Parallel()

	payment := NewStatusError("replicate", http.StatusPaymentRequired, "")
	require.True(t, IsPaymentRequired(payment))
	require.False(t, IsRetryable(payment))
	require.Equal(t, "payment_required", Kind(payment))

	auth := NewStatusError("groq", http.StatusForbidden, "")
	require.True(t, IsUnauthorized(auth))
	require.Equal(t, "unauthorized", Kind(auth))

	down := Unavailable("groq", errors.New("dial tcp: refused"))
	require.True(t, errors.Is(down, ErrUnavailable))
	require.True(t, IsRetryable(down))

	require.False(t, IsRetryable(context.Canceled))
	require.True(t, IsRetryable(context.DeadlineExceeded))
	require.Equal(t, "permanent", Kind(NewStatusError("groq", http.StatusBadRequest, "")))
}
