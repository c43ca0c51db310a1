// Package lease provides short-lived named leases so only one bot replica
// runs a periodic job at a time.
package lease

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotHeld is returned when releasing a lease held by someone else.
var ErrNotHeld = errors.New("lease not held")

// Locker grants exclusive leases by name.
type Locker interface {
	// TryAcquire takes the lease if it is free and returns the holder token.
	TryAcquire(ctx context.Context, name string, ttl time.Duration) (token string, ok bool, err error)
	// Release gives the lease back if token still holds it.
	Release(ctx context.Context, name, token string) error
}

// Run executes fn under the named lease. It reports false without calling
// fn when another holder has the lease.
func Run(ctx context.Context, l Locker, name string, ttl time.Duration, fn func(ctx context.Context) error) (bool, error) {
	token, ok, err := l.TryAcquire(ctx, name, ttl)
	if err != nil {
		return false, fmt.Errorf("failed to acquire lease %s: %w", name, err)
	}
	if !ok {
		return false, nil
	}
	defer func() { _ = l.Release(context.WithoutCancel(ctx), name, token) }()

	return true, fn(ctx)
}

// releaseScript deletes the key only when it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker keeps leases in Redis with SET NX PX.
type RedisLocker struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisLocker creates a RedisLocker. Keys are stored as prefix + name.
func NewRedisLocker(rdb *redis.Client, prefix string) *RedisLocker {
	return &RedisLocker{rdb: rdb, prefix: prefix}
}

func (l *RedisLocker) key(name string) string { return l.prefix + name }

// TryAcquire implements Locker.
func (l *RedisLocker) TryAcquire(ctx context.Context, name string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, l.key(name), token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// Release implements Locker.
func (l *RedisLocker) Release(ctx context.Context, name, token string) error {
	n, err := releaseScript.Run(ctx, l.rdb, []string{l.key(name)}, token).Int64()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotHeld
	}
	return nil
}

type localHold struct {
	token   string
	expires time.Time
}

// LocalLocker is an in-process Locker for single-replica deployments.
type LocalLocker struct {
	mu    sync.Mutex
	holds map[string]localHold
	now   func() time.Time
}

// NewLocalLocker creates a LocalLocker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{holds: make(map[string]localHold), now: time.Now}
}

// TryAcquire implements Locker.
func (l *LocalLocker) TryAcquire(_ context.Context, name string, ttl time.Duration) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if h, ok := l.holds[name]; ok && now.Before(h.expires) {
		return "", false, nil
	}
	token := uuid.NewString()
	l.holds[name] = localHold{token: token, expires: now.Add(ttl)}
	return token, true, nil
}

// Release implements Locker.
func (l *LocalLocker) Release(_ context.Context, name, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	h, ok := l.holds[name]
	if !ok || h.token != token {
		return ErrNotHeld
	}
	delete(l.holds, name)
	return nil
}
