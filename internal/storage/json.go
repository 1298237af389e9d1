package storage

import (
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// SetJSON stores a JSON-serializable value
func (d *DB) SetJSON(key string, value interface{}) error {
	if key == "" {
		return ErrInvalidKey
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return d.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
}

// GetJSON retrieves and unmarshals a JSON value. A missing key returns
// ErrKeyNotFound.
func (d *DB) GetJSON(key string, dest interface{}) error {
	if key == "" {
		return ErrInvalidKey
	}
	var data []byte
	err := d.db.View(func(txn *badger.Txn) error {
		var err error
		data, err = GetKey(txn, []byte(key))
		return err
	})
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}
