// Package ratelimit implements fixed-window request counting over a
// pluggable store. The request that pushes a window past its limit is still
// counted before being rejected, so bursts at the window boundary cannot be
// undercounted.
package ratelimit

import (
	"context"
	"time"
)

// Result describes the outcome of a single Allow call.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Limiter bounds requests per key to Limit per Window.
type Limiter struct {
	store  CounterStore
	limit  int
	window time.Duration
}

func New(store CounterStore, limit int, window time.Duration) *Limiter {
	return &Limiter{store: store, limit: limit, window: window}
}

func (l *Limiter) Limit() int            { return l.limit }
func (l *Limiter) Window() time.Duration { return l.window }

// Allow increments the counter for key and compares afterwards. Store
// errors fail open: an unavailable counter backend must not take the auth
// service down with it.
func (l *Limiter) Allow(ctx context.Context, key string) Result {
	count, remaining, err := l.store.Incr(ctx, key, l.window)
	if err != nil {
		return Result{Allowed: true, Limit: l.limit, Remaining: l.limit}
	}
	left := l.limit - int(count)
	if left < 0 {
		left = 0
	}
	res := Result{
		Allowed:   count <= int64(l.limit),
		Limit:     l.limit,
		Remaining: left,
	}
	if !res.Allowed {
		res.RetryAfter = remaining
	}
	return res
}
