package storage

import (
	"encoding/binary"
	"errors"
	"hash/fnv"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// counterValueSize is 8 bytes of count followed by 8 bytes of window start
// in unix nanoseconds.
const counterValueSize = 16

// maxConflictRetries bounds retries when another writer commits the same key
// between our read and our commit.
const maxConflictRetries = 8

func (d *DB) counterLock(key string) func() {
	h := fnv.New32a()
	h.Write([]byte(key))
	m := &d.mu[h.Sum32()%counterShards]
	m.Lock()
	return m.Unlock
}

// IncrWindow increments the fixed-window counter stored at key. If the
// stored window started more than window ago (or nothing is stored) the
// counter restarts at now. The entry carries a TTL of twice the window so
// abandoned keys are collected by badger.
func (d *DB) IncrWindow(key string, now time.Time, window time.Duration) (int64, time.Time, error) {
	if key == "" {
		return 0, time.Time{}, ErrInvalidKey
	}

	unlock := d.counterLock(key)
	defer unlock()

	var count int64
	var start time.Time

	incr := func(txn *badger.Txn) error {
		count, start = 0, now

		raw, err := GetKey(txn, []byte(key))
		if err != nil && err != ErrKeyNotFound {
			return err
		}
		if err == nil && len(raw) == counterValueSize {
			storedCount := int64(binary.BigEndian.Uint64(raw[:8]))
			storedStart := time.Unix(0, int64(binary.BigEndian.Uint64(raw[8:])))
			if now.Sub(storedStart) <= window {
				count, start = storedCount, storedStart
			}
		}

		count++
		var buf [counterValueSize]byte
		binary.BigEndian.PutUint64(buf[:8], uint64(count))
		binary.BigEndian.PutUint64(buf[8:], uint64(start.UnixNano()))

		entry := badger.NewEntry([]byte(key), buf[:])
		if window > 0 {
			entry = entry.WithTTL(2 * window)
		}
		return txn.SetEntry(entry)
	}

	var err error
	for attempt := 0; attempt <= maxConflictRetries; attempt++ {
		err = d.db.Update(incr)
		if !errors.Is(err, badger.ErrConflict) {
			break
		}
	}
	if err != nil {
		return 0, time.Time{}, err
	}
	return count, start, nil
}

// ReadWindow returns the stored counter without modifying it.
func (d *DB) ReadWindow(key string) (int64, time.Time, bool, error) {
	var raw []byte
	err := d.db.View(func(txn *badger.Txn) error {
		var err error
		raw, err = GetKey(txn, []byte(key))
		return err
	})
	if err == ErrKeyNotFound {
		return 0, time.Time{}, false, nil
	}
	if err != nil {
		return 0, time.Time{}, false, err
	}
	if len(raw) != counterValueSize {
		return 0, time.Time{}, false, nil
	}
	return int64(binary.BigEndian.Uint64(raw[:8])),
		time.Unix(0, int64(binary.BigEndian.Uint64(raw[8:]))), true, nil
}
