// Package lock provides per-key in-process locking. The ladder keys it by
// game id so a player command and a scheduler sweep never interleave on the
// same game inside one process.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrLockTimeout is returned when a key stays busy past the wait limit.
var ErrLockTimeout = errors.New("timed out waiting for key lock")

// keyMutex wraps a mutex with the number of goroutines holding or waiting on it.
type keyMutex struct {
	mu   sync.Mutex
	refs int
}

// KeyLock hands out one mutex per int64 key. Entries are dropped once no
// goroutine holds or waits on them.
type KeyLock struct {
	mu      sync.Mutex
	entries map[int64]*keyMutex
	pool    sync.Pool
}

// NewKeyLock creates a new KeyLock instance.
func NewKeyLock() *KeyLock {
	return &KeyLock{
		entries: make(map[int64]*keyMutex),
		pool: sync.Pool{
			New: func() any {
				return &keyMutex{}
			},
		},
	}
}

// acquire returns the mutex for key with its reference taken.
func (kl *KeyLock) acquire(key int64) *keyMutex {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	km, ok := kl.entries[key]
	if !ok {
		km = kl.pool.Get().(*keyMutex)
		km.refs = 0
		kl.entries[key] = km
	}
	km.refs++
	return km
}

// release drops a reference and recycles the entry when it was the last one.
func (kl *KeyLock) release(key int64, km *keyMutex) {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	km.refs--
	if km.refs == 0 {
		delete(kl.entries, key)
		kl.pool.Put(km)
	}
}

// Lock blocks until the lock for key is held.
func (kl *KeyLock) Lock(key int64) {
	kl.acquire(key).mu.Lock()
}

// Unlock releases the lock for key. Unlocking a key that is not held is a no-op.
func (kl *KeyLock) Unlock(key int64) {
	kl.mu.Lock()
	km, ok := kl.entries[key]
	kl.mu.Unlock()
	if !ok {
		return
	}
	km.mu.Unlock()
	kl.release(key, km)
}

// TryLock attempts to acquire the lock without blocking.
func (kl *KeyLock) TryLock(key int64) bool {
	km := kl.acquire(key)
	if km.mu.TryLock() {
		return true
	}
	kl.release(key, km)
	return false
}

// LockWithTimeout waits up to timeout for the lock. It returns ErrLockTimeout
// on timeout and the context error if ctx ends first.
func (kl *KeyLock) LockWithTimeout(ctx context.Context, key int64, timeout time.Duration) error {
	km := kl.acquire(key)

	done := make(chan struct{})
	go func() {
		km.mu.Lock()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var err error
	select {
	case <-done:
		return nil
	case <-timer.C:
		err = ErrLockTimeout
	case <-ctx.Done():
		err = ctx.Err()
	}

	// the waiter still acquires eventually; hand the lock straight back
	go func() {
		<-done
		km.mu.Unlock()
		kl.release(key, km)
	}()
	return err
}

// WithLock executes fn while holding the lock for key.
func (kl *KeyLock) WithLock(key int64, fn func() error) error {
	kl.Lock(key)
	defer kl.Unlock(key)
	return fn()
}

// WithLockContext executes fn while holding the lock for key, giving up
// after timeout or when ctx is done.
func (kl *KeyLock) WithLockContext(ctx context.Context, key int64, timeout time.Duration, fn func() error) error {
	if err := kl.LockWithTimeout(ctx, key, timeout); err != nil {
		return err
	}
	defer kl.Unlock(key)

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn()
}

// IsLocked reports whether key is currently held.
// This is a point-in-time check and may change immediately after.
func (kl *KeyLock) IsLocked(key int64) bool {
	kl.mu.Lock()
	km, ok := kl.entries[key]
	kl.mu.Unlock()
	if !ok {
		return false
	}
	if km.mu.TryLock() {
		km.mu.Unlock()
		return false
	}
	return true
}

// Len returns the number of keys currently held or awaited.
func (kl *KeyLock) Len() int {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	return len(kl.entries)
}
