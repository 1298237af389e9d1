// Package ratelimit implements a fixed-window request counter.
//
// Each key owns a window that starts at its first hit. A hit arriving more
// than the window length after the start resets the counter lazily; there
// are no timers. Bursts straddling a window boundary can reach twice the
// limit.
package ratelimit

import (
	"context"
	"time"
)

// Window is the state of one key.
type Window struct {
	Count int64
	Start time.Time
}

// CounterStore increments the window of key at now, restarting it when
// now - start > window, and returns the updated state.
type CounterStore interface {
	Incr(ctx context.Context, key string, now time.Time, window time.Duration) (Window, error)
}

// Decision is the outcome of one CheckAndIncrement call.
type Decision struct {
	Exceeded   bool
	Count      int64
	Limit      int64
	ResetAt    time.Time
	RetryAfter time.Duration
}

// Remaining returns how many more hits the window allows.
func (d Decision) Remaining() int64 {
	if d.Count >= d.Limit {
		return 0
	}
	return d.Limit - d.Count
}

// Limiter applies fixed-window limits over a CounterStore.
type Limiter struct {
	store CounterStore
	clock func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock replaces time.Now.
func WithClock(clock func() time.Time) Option {
	return func(l *Limiter) { l.clock = clock }
}

// New creates a Limiter over store.
func New(store CounterStore, opts ...Option) *Limiter {
	l := &Limiter{store: store, clock: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// CheckAndIncrement counts a hit for key and reports whether it exceeds
// limit within the current window.
func (l *Limiter) CheckAndIncrement(ctx context.Context, key string, limit int64, window time.Duration) (Decision, error) {
	now := l.clock()
	w, err := l.store.Incr(ctx, key, now, window)
	if err != nil {
		return Decision{}, err
	}

	resetAt := w.Start.Add(window)
	d := Decision{
		Exceeded: w.Count > limit,
		Count:    w.Count,
		Limit:    limit,
		ResetAt:  resetAt,
	}
	if d.Exceeded {
		d.RetryAfter = resetAt.Sub(now)
		if d.RetryAfter < 0 {
			d.RetryAfter = 0
		}
	}
	return d, nil
}
