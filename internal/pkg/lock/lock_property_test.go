// Property-based tests for per-key locking.
package lock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// TestConcurrentRungUpdatesProperty checks serialization per key.
// *For any* set of concurrent read-modify-write operations on the same key,
// the final value SHALL equal sequential execution of all operations.
func TestConcurrentRungUpdatesProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		initial := rapid.IntRange(1, 12).Draw(t, "initial")
		numOps := rapid.IntRange(2, 30).Draw(t, "numOps")
		deltas := make([]int, numOps)
		expected := initial
		for i := range deltas {
			deltas[i] = rapid.IntRange(-2, 2).Draw(t, "delta")
			expected += deltas[i]
		}
		gameID := rapid.Int64Range(1, 1000000).Draw(t, "gameID")

		kl := NewKeyLock()
		value := initial

		var wg sync.WaitGroup
		wg.Add(numOps)
		for _, d := range deltas {
			go func(d int) {
				defer wg.Done()
				_ = kl.WithLock(gameID, func() error {
					value += d
					return nil
				})
			}(d)
		}
		wg.Wait()

		if value != expected {
			t.Fatalf("expected %d, got %d", expected, value)
		}
		if kl.Len() != 0 {
			t.Fatalf("leaked %d lock entries", kl.Len())
		}
	})
}

// TestIndependentKeysProperty checks that keys do not block each other.
// *For any* two distinct keys, holding one SHALL NOT prevent TryLock on the other.
func TestIndependentKeysProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := rapid.Int64Range(1, 1000).Draw(t, "a")
		b := rapid.Int64Range(1001, 2000).Draw(t, "b")

		kl := NewKeyLock()
		kl.Lock(a)
		defer kl.Unlock(a)

		if !kl.TryLock(b) {
			t.Fatalf("key %d blocked by key %d", b, a)
		}
		kl.Unlock(b)
		if kl.TryLock(a) {
			t.Fatalf("key %d acquired twice", a)
		}
	})
}

func TestLockWithTimeout(t *testing.T) {
	kl := NewKeyLock()
	kl.Lock(7)

	err := kl.LockWithTimeout(context.Background(), 7, 20*time.Millisecond)
	assert.ErrorIs(t, err, ErrLockTimeout)
	assert.True(t, kl.IsLocked(7))

	kl.Unlock(7)
	require.Eventually(t, func() bool { return kl.Len() == 0 }, time.Second, 5*time.Millisecond)

	require.NoError(t, kl.LockWithTimeout(context.Background(), 7, time.Second))
	kl.Unlock(7)
	assert.False(t, kl.IsLocked(7))
}

func TestWithLockContext_Cancelled(t *testing.T) {
	kl := NewKeyLock()
	kl.Lock(1)
	defer kl.Unlock(1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := kl.WithLockContext(ctx, 1, time.Second, func() error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}
