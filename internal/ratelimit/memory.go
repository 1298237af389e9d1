package ratelimit

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	Window
	length time.Duration
}

// MemoryStore keeps windows in process memory. State is not shared
// between processes.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]*memoryEntry
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{windows: make(map[string]*memoryEntry)}
}

// Incr implements CounterStore.
func (m *MemoryStore) Incr(_ context.Context, key string, now time.Time, window time.Duration) (Window, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.windows[key]
	if !ok || now.Sub(e.Start) > window {
		e = &memoryEntry{Window: Window{Start: now}}
		m.windows[key] = e
	}
	e.length = window
	e.Count++
	return e.Window, nil
}

// Snapshot returns the stored window of key.
func (m *MemoryStore) Snapshot(key string) (Window, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.windows[key]
	if !ok {
		return Window{}, false
	}
	return e.Window, true
}

// Len returns the number of tracked keys.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.windows)
}

// Sweep drops windows that have expired at now and returns how many were
// removed.
func (m *MemoryStore) Sweep(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for k, e := range m.windows {
		if now.Sub(e.Start) > e.length {
			delete(m.windows, k)
			removed++
		}
	}
	return removed
}

// RunSweeper sweeps every interval until ctx is done.
func (m *MemoryStore) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			m.Sweep(now)
		}
	}
}
