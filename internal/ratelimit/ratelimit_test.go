package ratelimit

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skshohagmiah/folio/internal/storage"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

const (
	testLimit  = 5
	testWindow = 60 * time.Second
)

// checkBoundary drives the limit=5, window=60s scenario. advance moves both
// the limiter clock and the backend's notion of time.
func checkBoundary(t *testing.T, l *Limiter, advance func(time.Duration)) {
	t.Helper()
	ctx := context.Background()

	for i := 1; i <= testLimit; i++ {
		d, err := l.CheckAndIncrement(ctx, "1.2.3.4", testLimit, testWindow)
		require.NoError(t, err)
		assert.False(t, d.Exceeded, "call %d", i)
		assert.Equal(t, int64(i), d.Count)
		assert.Equal(t, int64(testLimit-i), d.Remaining())
	}

	d, err := l.CheckAndIncrement(ctx, "1.2.3.4", testLimit, testWindow)
	require.NoError(t, err)
	assert.True(t, d.Exceeded, "6th call")
	assert.Greater(t, d.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, d.RetryAfter, testWindow)

	other, err := l.CheckAndIncrement(ctx, "5.6.7.8", testLimit, testWindow)
	require.NoError(t, err)
	assert.False(t, other.Exceeded, "keys are independent")

	advance(testWindow + time.Second)

	d, err = l.CheckAndIncrement(ctx, "1.2.3.4", testLimit, testWindow)
	require.NoError(t, err)
	assert.False(t, d.Exceeded, "after the window")
	assert.Equal(t, int64(1), d.Count)
}

func TestMemoryBoundary(t *testing.T) {
	clock := newClock()
	store := NewMemoryStore()
	checkBoundary(t, New(store, WithClock(clock.Now)), clock.Advance)

	w, ok := store.Snapshot("1.2.3.4")
	require.True(t, ok)
	assert.Equal(t, int64(1), w.Count)
	assert.Equal(t, clock.now, w.Start)
}

func TestMemoryResetIsStrictlyAfterWindow(t *testing.T) {
	clock := newClock()
	l := New(NewMemoryStore(), WithClock(clock.Now))
	ctx := context.Background()

	_, err := l.CheckAndIncrement(ctx, "k", 1, testWindow)
	require.NoError(t, err)

	clock.Advance(testWindow)
	d, err := l.CheckAndIncrement(ctx, "k", 1, testWindow)
	require.NoError(t, err)
	assert.True(t, d.Exceeded, "exactly one window later is still the same window")
	assert.Equal(t, time.Duration(0), d.RetryAfter)
}

func TestMemorySweep(t *testing.T) {
	clock := newClock()
	store := NewMemoryStore()
	l := New(store, WithClock(clock.Now))
	ctx := context.Background()

	_, err := l.CheckAndIncrement(ctx, "old", 5, time.Minute)
	require.NoError(t, err)
	clock.Advance(50 * time.Second)
	_, err = l.CheckAndIncrement(ctx, "new", 5, time.Minute)
	require.NoError(t, err)

	clock.Advance(20 * time.Second)
	assert.Equal(t, 1, store.Sweep(clock.now))
	assert.Equal(t, 1, store.Len())
	_, ok := store.Snapshot("old")
	assert.False(t, ok)
}

func TestBadgerBoundary(t *testing.T) {
	db, err := storage.Open(storage.Options{InMemory: true})
	require.NoError(t, err)
	defer db.Close()

	clock := newClock()
	store := NewBadgerStore(db)
	checkBoundary(t, New(store, WithClock(clock.Now)), clock.Advance)

	w, ok, err := store.Snapshot("1.2.3.4")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(1), w.Count)
	assert.True(t, clock.now.Equal(w.Start))
}

func TestBadgerConcurrentHitsAreCounted(t *testing.T) {
	db, err := storage.Open(storage.Options{InMemory: true})
	require.NoError(t, err)
	defer db.Close()

	const calls = 200
	store := NewBadgerStore(db)
	limiter := New(store)

	var wg sync.WaitGroup
	var failed, exceeded atomic.Int64
	for i := 0; i < calls; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := limiter.CheckAndIncrement(context.Background(), "login|1.2.3.4", 5, time.Minute)
			if err != nil {
				failed.Add(1)
				return
			}
			if d.Exceeded {
				exceeded.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Zero(t, failed.Load())
	assert.Equal(t, int64(calls-5), exceeded.Load())

	w, ok, err := store.Snapshot("login|1.2.3.4")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(calls), w.Count)
}

func TestRedisBoundary(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	clock := newClock()
	l := New(NewRedisStore(client), WithClock(clock.Now))
	checkBoundary(t, l, func(d time.Duration) {
		clock.Advance(d)
		mr.FastForward(d)
	})

	ttl := mr.TTL(redisKeyPrefix + "1.2.3.4")
	assert.Equal(t, testWindow, ttl)
}

func TestRedisErrorsPropagate(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	_, err := New(NewRedisStore(client)).CheckAndIncrement(context.Background(), "k", 1, time.Second)
	require.Error(t, err)
}

type failingStore struct{}

func (failingStore) Incr(context.Context, string, time.Time, time.Duration) (Window, error) {
	return Window{}, errors.New("backend down")
}

func TestLimiterReturnsStoreError(t *testing.T) {
	_, err := New(failingStore{}).CheckAndIncrement(context.Background(), "k", 1, time.Second)
	require.EqualError(t, err, "backend down")
}
