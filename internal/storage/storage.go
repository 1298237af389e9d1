// Package storage owns the BadgerDB instance shared by the embedded document
// store and the persistent rate-limit counters.
package storage

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"
)

var (
	ErrKeyNotFound = errors.New("key not found")
	ErrInvalidKey  = errors.New("invalid key")
)

// Options configures Open.
type Options struct {
	// Path is the data directory. Ignored when InMemory is set.
	Path string
	// InMemory keeps everything in RAM; used by tests and throwaway runs.
	InMemory bool
	// SyncWrites fsyncs every commit.
	SyncWrites bool
}

// counterShards is the number of lock stripes guarding counter updates.
const counterShards = 64

// DB wraps a BadgerDB instance
type DB struct {
	db *badger.DB
	mu [counterShards]sync.Mutex
}

// Open opens (or creates) the database described by opts.
func Open(opts Options) (*DB, error) {
	var bopts badger.Options
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if opts.Path == "" {
			return nil, fmt.Errorf("storage: %w: empty path", ErrInvalidKey)
		}
		bopts = badger.DefaultOptions(opts.Path)
		bopts.NumVersionsToKeep = 1
		bopts.NumLevelZeroTables = 10
		bopts.NumLevelZeroTablesStall = 20
		bopts.ValueLogFileSize = 256 << 20
		bopts.NumCompactors = 4
		bopts.ValueThreshold = 1024
		bopts.BlockCacheSize = 256 << 20
		bopts.IndexCacheSize = 128 << 20
		bopts.MemTableSize = 64 << 20
	}
	bopts.Logger = nil
	bopts.SyncWrites = opts.SyncWrites

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB: %w", err)
	}
	return &DB{db: db}, nil
}

// Close closes the BadgerDB instance
func (d *DB) Close() error {
	return d.db.Close()
}

// Badger exposes the underlying handle for callers that need iterators.
func (d *DB) Badger() *badger.DB {
	return d.db
}
