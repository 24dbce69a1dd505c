package ratelimit

import (
	"context"
	"sync"
	"time"
)

// CounterStore increments fixed-window counters. Implementations must make
// the increment atomic per key so two concurrent requests can never both
// observe a stale count.
type CounterStore interface {
	// Incr bumps the counter for key, starting a fresh window of the given
	// size if none is active, and returns the post-increment count together
	// with the time remaining in the window.
	Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

type memoryWindow struct {
	start time.Time
	count int64
}

// MemoryStore is an in-process CounterStore guarded by a mutex. It backs
// tests and single-instance deployments without Redis.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]*memoryWindow
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{windows: make(map[string]*memoryWindow), now: time.Now}
}

func (s *MemoryStore) Incr(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	w, ok := s.windows[key]
	if !ok || now.Sub(w.start) >= window {
		w = &memoryWindow{start: now}
		s.windows[key] = w
	}
	w.count++
	remaining := window - now.Sub(w.start)
	return w.count, remaining, nil
}
