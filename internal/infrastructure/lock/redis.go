package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	"github.com/teazle/autosocialai/internal/ports"
)

const (
	defaultTTL = 2 * time.Minute
	keyPrefix  = "lock:pipeline:"
)

// ErrBusy is returned when another worker holds the lock.
var ErrBusy = errors.New("item is locked by another worker")

// RedisLocker serialises writers of one pipeline item across processes.
type RedisLocker struct {
	locker *redislock.Client
	ttl    time.Duration
	logger *slog.Logger
}

var _ ports.Locker = (*RedisLocker)(nil)

// NewRedisClient connects and pings Redis.
func NewRedisClient(ctx context.Context, addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, PoolSize: 20})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return rdb, nil
}

// NewRedisLocker wraps a redis client. ttl <= 0 uses two minutes.
func NewRedisLocker(rdb redis.UniversalClient, ttl time.Duration, logger *slog.Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisLocker{
		locker: redislock.New(rdb),
		ttl:    ttl,
		logger: logger.With("component", "locker"),
	}
}

// Lock obtains the lock for key without waiting.
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	lk, err := l.locker.Obtain(ctx, keyPrefix+key, l.ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("%s: %w", key, ErrBusy)
	}
	if err != nil {
		return nil, fmt.Errorf("obtain lock %s: %w", key, err)
	}
	return func() {
		// Release with a fresh context: the caller's may already be done.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := lk.Release(releaseCtx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			l.logger.Warn("release lock failed", "key", key, "error", err)
		}
	}, nil
}

// LocalLocker is an in-process Locker for single-instance deployments and tests.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

var _ ports.Locker = (*LocalLocker)(nil)

// NewLocalLocker builds an empty in-process locker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: map[string]struct{}{}}
}

// Lock obtains key or fails with ErrBusy.
func (l *LocalLocker) Lock(_ context.Context, key string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return nil, fmt.Errorf("%s: %w", key, ErrBusy)
	}
	l.held[key] = struct{}{}
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}, nil
}
