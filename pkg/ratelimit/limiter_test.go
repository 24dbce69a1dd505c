package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiterCountsThenRejects(t *testing.T) {
	store := NewMemoryStore()
	l := New(store, 10, 5*time.Minute)
	ctx := context.Background()

	for i := 1; i <= 10; i++ {
		res := l.Allow(ctx, "k")
		assert.True(t, res.Allowed, "request %d should pass", i)
	}
	res := l.Allow(ctx, "k")
	assert.False(t, res.Allowed, "11th request must be rejected")
	assert.Equal(t, 0, res.Remaining)
	assert.Greater(t, res.RetryAfter, time.Duration(0))
}

func TestLimiterWindowReset(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now()
	store.now = func() time.Time { return now }
	l := New(store, 2, time.Minute)
	ctx := context.Background()

	assert.True(t, l.Allow(ctx, "k").Allowed)
	assert.True(t, l.Allow(ctx, "k").Allowed)
	assert.False(t, l.Allow(ctx, "k").Allowed)

	// After the window elapses a fresh window starts.
	now = now.Add(time.Minute)
	assert.True(t, l.Allow(ctx, "k").Allowed)
}

func TestLimiterKeysAreIndependent(t *testing.T) {
	l := New(NewMemoryStore(), 1, time.Minute)
	ctx := context.Background()

	assert.True(t, l.Allow(ctx, "signup:1.2.3.4").Allowed)
	assert.False(t, l.Allow(ctx, "signup:1.2.3.4").Allowed)
	assert.True(t, l.Allow(ctx, "login:1.2.3.4").Allowed, "other route class keeps its own budget")
	assert.True(t, l.Allow(ctx, "signup:5.6.7.8").Allowed, "other client keeps its own budget")
}

func TestLimiterConcurrent(t *testing.T) {
	l := New(NewMemoryStore(), 10, 5*time.Minute)
	ctx := context.Background()

	const requests = 20
	var allowed int64
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if l.Allow(ctx, "hot").Allowed {
				atomic.AddInt64(&allowed, 1)
			}
		}()
	}
	close(start)
	wg.Wait()

	// Increment-and-compare is atomic per key: exactly the limit passes.
	assert.Equal(t, int64(10), allowed)
}

func TestLimiterFailsOpenOnStoreError(t *testing.T) {
	l := New(failingStore{}, 1, time.Minute)
	res := l.Allow(context.Background(), "k")
	assert.True(t, res.Allowed)
}

type failingStore struct{}

func (failingStore) Incr(context.Context, string, time.Duration) (int64, time.Duration, error) {
	return 0, 0, assert.AnError
}

func TestMemoryStoreRemaining(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now()
	store.now = func() time.Time { return now }

	count, remaining, err := store.Incr(context.Background(), "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, time.Minute, remaining)

	now = now.Add(40 * time.Second)
	count, remaining, err = store.Incr(context.Background(), "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
	assert.Equal(t, 20*time.Second, remaining)
}
