package locks

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bsm/redislock"
	goredis "github.com/redis/go-redis/v9"

	"github.com/dealguardhq/dealguard-backend/pkg/config"
	pkgerrors "github.com/dealguardhq/dealguard-backend/pkg/errors"
)

const dealScope = "deal"

// ErrNotObtained is returned when the lock is held elsewhere and retries ran out.
var ErrNotObtained = errors.New("lock not obtained")

// Releaser frees a held lock.
type Releaser interface {
	Release(ctx context.Context) error
}

// DealLocker serializes budget-mutating work per deal. All ledger writes for
// one deal happen under this lock so concurrent gate calls see a consistent
// snapshot.
type DealLocker interface {
	AcquireDeal(ctx context.Context, dealID string) (Releaser, error)
}

type keyBuilder interface {
	LockKey(scope, id string) string
}

type redisLocker struct {
	client *redislock.Client
	keys   keyBuilder
	cfg    config.LocksConfig
}

// NewRedisLocker builds a DealLocker backed by redis.
func NewRedisLocker(raw *goredis.Client, keys keyBuilder, cfg config.LocksConfig) (DealLocker, error) {
	if raw == nil {
		return nil, errors.New("locks: redis client is required")
	}
	if keys == nil {
		return nil, errors.New("locks: key builder is required")
	}
	return &redisLocker{
		client: redislock.New(raw),
		keys:   keys,
		cfg:    cfg,
	}, nil
}

func (l *redisLocker) AcquireDeal(ctx context.Context, dealID string) (Releaser, error) {
	key := l.keys.LockKey(dealScope, dealID)
	opts := &redislock.Options{
		RetryStrategy: redislock.LimitRetry(
			redislock.LinearBackoff(l.cfg.RetryInterval),
			l.cfg.MaxRetries,
		),
	}
	lock, err := l.client.Obtain(ctx, key, l.cfg.TTL, opts)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStateConflict, ErrNotObtained, "deal is busy, retry shortly")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire deal lock")
	}
	return redisLease{lock: lock}, nil
}

type redisLease struct {
	lock *redislock.Lock
}

func (l redisLease) Release(ctx context.Context) error {
	err := l.lock.Release(ctx)
	if errors.Is(err, redislock.ErrLockNotHeld) {
		return nil
	}
	return err
}

// MemoryLocker is an in-process DealLocker for tests and single-node runs.
type MemoryLocker struct {
	mu      sync.Mutex
	slots   map[string]chan struct{}
	timeout time.Duration
}

// NewMemoryLocker builds a MemoryLocker that waits up to timeout per acquire.
func NewMemoryLocker(timeout time.Duration) *MemoryLocker {
	return &MemoryLocker{
		slots:   make(map[string]chan struct{}),
		timeout: timeout,
	}
}

func (m *MemoryLocker) slot(dealID string) chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	slot, ok := m.slots[dealID]
	if !ok {
		slot = make(chan struct{}, 1)
		slot <- struct{}{}
		m.slots[dealID] = slot
	}
	return slot
}

func (m *MemoryLocker) AcquireDeal(ctx context.Context, dealID string) (Releaser, error) {
	slot := m.slot(dealID)
	timer := time.NewTimer(m.timeout)
	defer timer.Stop()
	select {
	case <-slot:
		return memoryLease{slot: slot}, nil
	case <-timer.C:
		return nil, pkgerrors.Wrap(pkgerrors.CodeStateConflict, ErrNotObtained, "deal is busy, retry shortly")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type memoryLease struct {
	slot chan struct{}
}

func (l memoryLease) Release(context.Context) error {
	select {
	case l.slot <- struct{}{}:
	default:
	}
	return nil
}
