package ratelimit

import (
	"context"
	"time"

	"github.com/skshohagmiah/folio/internal/storage"
)

const badgerKeyPrefix = "ratelimit:"

// BadgerStore keeps windows in the embedded database, so counts survive a
// restart. Abandoned keys expire through badger TTLs.
type BadgerStore struct {
	db *storage.DB
}

// NewBadgerStore creates a store on db.
func NewBadgerStore(db *storage.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

// Incr implements CounterStore.
func (b *BadgerStore) Incr(ctx context.Context, key string, now time.Time, window time.Duration) (Window, error) {
	if err := ctx.Err(); err != nil {
		return Window{}, err
	}
	count, start, err := b.db.IncrWindow(badgerKeyPrefix+key, now, window)
	if err != nil {
		return Window{}, err
	}
	return Window{Count: count, Start: start}, nil
}

// Snapshot returns the stored window of key.
func (b *BadgerStore) Snapshot(key string) (Window, bool, error) {
	count, start, ok, err := b.db.ReadWindow(badgerKeyPrefix + key)
	return Window{Count: count, Start: start}, ok, err
}
