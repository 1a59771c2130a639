package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestTickerRunsImmediatelyAndRepeats(t *testing.T) {
	t.Parallel()

	var runs int32
	fired := make(chan struct{}, 10)
	tk := NewTicker("due_check", 5*time.Millisecond)
	if err := tk.Start(context.Background(), func(time.Time) {
		atomic.AddInt32(&runs, 1)
		select {
		case fired <- struct{}{}:
		default:
		}
	}); err != nil {
		t.Fatalf("start: %v", err)
	}

	for i := 0; i < 3; i++ {
		select {
		case <-fired:
		case <-time.After(2 * time.Second):
			t.Fatalf("job fired %d times, want at least 3", atomic.LoadInt32(&runs))
		}
	}

	if err := tk.Start(context.Background(), func(time.Time) {}); err != ErrRunning {
		t.Fatalf("second start: got %v, want ErrRunning", err)
	}

	if err := tk.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	after := atomic.LoadInt32(&runs)
	time.Sleep(20 * time.Millisecond)
	if got := atomic.LoadInt32(&runs); got != after {
		t.Fatalf("job ran after stop: %d -> %d", after, got)
	}
}

func TestTickerStopsWithContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	tk := NewTicker("gen", time.Hour)
	started := make(chan struct{})
	if err := tk.Start(ctx, func(time.Time) { close(started) }); err != nil {
		t.Fatalf("start: %v", err)
	}
	<-started
	cancel()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	if err := tk.Stop(stopCtx); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestTickerRejectsBadInterval(t *testing.T) {
	t.Parallel()

	if err := NewTicker("x", 0).Start(context.Background(), func(time.Time) {}); err == nil {
		t.Fatal("expected error for zero interval")
	}
	if err := NewTicker("x", time.Second).Stop(context.Background()); err != nil {
		t.Fatalf("stop before start: %v", err)
	}
}
