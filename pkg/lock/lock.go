package lock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/rs/zerolog"
)

// ErrNotObtained indicates the key is already held by another caller.
var ErrNotObtained = errors.New("lock is held by another caller")

const defaultTTL = 2 * time.Minute

// Lease is a held lock.
type Lease interface {
	Release(ctx context.Context) error
}

// Locker serialises work keyed by an identifier. Acquire never blocks waiting for a holder.
type Locker interface {
	Acquire(ctx context.Context, key string) (Lease, error)
}

// RedisLocker obtains distributed locks through redislock.
type RedisLocker struct {
	client *redislock.Client
	prefix string
	ttl    time.Duration
	logger zerolog.Logger
}

// NewRedisLocker builds a Redis backed locker. Keys are namespaced as "<prefix>:<key>".
func NewRedisLocker(client redislock.RedisClient, prefix string, ttl time.Duration, logger zerolog.Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisLocker{
		client: redislock.New(client),
		prefix: strings.TrimSuffix(prefix, ":"),
		ttl:    ttl,
		logger: logger.With().Str("component", "redis_locker").Logger(),
	}
}

// Acquire obtains the lock for key or returns ErrNotObtained.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (Lease, error) {
	fullKey := l.key(key)
	held, err := l.client.Obtain(ctx, fullKey, l.ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		l.logger.Debug().Str("key", fullKey).Msg("lock already held")
		return nil, ErrNotObtained
	}
	if err != nil {
		return nil, fmt.Errorf("obtain lock %s: %w", fullKey, err)
	}
	return &redisLease{lock: held, key: fullKey, logger: l.logger}, nil
}

func (l *RedisLocker) key(key string) string {
	if l.prefix == "" {
		return key
	}
	return l.prefix + ":" + key
}

type redisLease struct {
	lock   *redislock.Lock
	key    string
	logger zerolog.Logger
}

func (r *redisLease) Release(ctx context.Context) error {
	err := r.lock.Release(ctx)
	if errors.Is(err, redislock.ErrLockNotHeld) {
		// TTL elapsed before release; another caller may now own the key.
		r.logger.Warn().Str("key", r.key).Msg("lock expired before release")
		return nil
	}
	return err
}

// LocalLocker is an in-process keyed mutex for single-instance deployments.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewLocalLocker constructs an in-process locker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]struct{})}
}

// Acquire marks key as held or returns ErrNotObtained.
func (l *LocalLocker) Acquire(ctx context.Context, key string) (Lease, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.held[key]; ok {
		return nil, ErrNotObtained
	}
	l.held[key] = struct{}{}
	return &localLease{owner: l, key: key}, nil
}

type localLease struct {
	owner *LocalLocker
	key   string
	once  sync.Once
}

func (l *localLease) Release(ctx context.Context) error {
	l.once.Do(func() {
		l.owner.mu.Lock()
		delete(l.owner.held, l.key)
		l.owner.mu.Unlock()
	})
	return nil
}
