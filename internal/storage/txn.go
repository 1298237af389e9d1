package storage

import (
	"errors"

	"github.com/dgraph-io/badger/v4"
)

// ReadTxn runs fn in a read-only transaction.
func (d *DB) ReadTxn(fn func(*badger.Txn) error) error {
	return d.db.View(fn)
}

// WriteTxn runs fn in a read-write transaction that commits if fn returns nil.
func (d *DB) WriteTxn(fn func(*badger.Txn) error) error {
	return d.db.Update(fn)
}

// GetKey returns a copy of key's value, or ErrKeyNotFound.
func GetKey(txn *badger.Txn, key []byte) ([]byte, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

// ExistsKey is a helper to check if a key exists
func ExistsKey(txn *badger.Txn, key []byte) (bool, error) {
	_, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ScanPrefix calls fn for every key with the given prefix in key order.
// Values passed to fn are copies and may be retained.
func ScanPrefix(txn *badger.Txn, prefix []byte, fn func(key, value []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		value, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if err := fn(item.KeyCopy(nil), value); err != nil {
			return err
		}
	}
	return nil
}

// CountPrefix returns the number of keys with the given prefix.
func CountPrefix(txn *badger.Txn, prefix []byte) int64 {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()

	var count int64
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		count++
	}
	return count
}
