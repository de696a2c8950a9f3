package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

const lockPrefix = "reconcile:wallet:"

// Locker serializes reconciliations of the same wallet. Two concurrent runs
// (a sweep racing a manual trigger) must not interleave their metadata
// writes; everything else the engine touches is read-only.
type Locker interface {
	// Acquire takes the lock for key, returning a release function. It fails
	// with ErrWalletBusy when the lock is already held and cannot be obtained
	// within the implementation's patience.
	Acquire(ctx context.Context, key string) (func(), error)
}

// RedisLocker implements Locker on redislock, so mutual exclusion holds
// across processes.
type RedisLocker struct {
	client *redislock.Client
	ttl    time.Duration
}

// NewRedisLocker builds a Redis-backed locker. The TTL bounds how long a
// crashed run can keep a wallet locked.
func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	return &RedisLocker{client: redislock.New(client), ttl: ttl}
}

// Acquire obtains the per-wallet lock, retrying briefly before giving up.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	lock, err := l.client.Obtain(ctx, lockPrefix+key, l.ttl, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), 10),
	})
	if err != nil {
		if errors.Is(err, redislock.ErrNotObtained) {
			return nil, ErrWalletBusy
		}
		return nil, fmt.Errorf("obtain wallet lock: %w", err)
	}
	return func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = lock.Release(releaseCtx)
	}, nil
}

// MemoryLocker implements Locker with process-local semaphores. Used in
// tests and single-process deployments.
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

// NewMemoryLocker creates an empty in-process locker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{locks: make(map[string]chan struct{})}
}

// Acquire waits for the per-key slot, giving up with ErrWalletBusy when ctx
// expires first.
func (l *MemoryLocker) Acquire(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	slot, ok := l.locks[key]
	if !ok {
		slot = make(chan struct{}, 1)
		l.locks[key] = slot
	}
	l.mu.Unlock()

	select {
	case slot <- struct{}{}:
		return func() { <-slot }, nil
	case <-ctx.Done():
		return nil, ErrWalletBusy
	}
}
