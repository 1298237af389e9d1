package storage

import (
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestOpen_OnDisk(t *testing.T) {
	db, err := Open(Options{Path: t.TempDir()})
	require.NoError(t, err)
	require.NoError(t, db.SetJSON("k", map[string]int{"a": 1}))
	require.NoError(t, db.Close())
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(Options{})
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestJSON(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, db.SetJSON("meta", []string{"a", "b"}))
	var got []string
	require.NoError(t, db.GetJSON("meta", &got))
	assert.Equal(t, []string{"a", "b"}, got)

	assert.ErrorIs(t, db.GetJSON("missing", &got), ErrKeyNotFound)
	assert.ErrorIs(t, db.SetJSON("", 1), ErrInvalidKey)
}

func TestScanAndCountPrefix(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, db.WriteTxn(func(txn *badger.Txn) error {
		for _, k := range []string{"doc:a:1", "doc:a:2", "doc:b:1"} {
			if err := txn.Set([]byte(k), []byte(k)); err != nil {
				return err
			}
		}
		return nil
	}))

	var keys []string
	require.NoError(t, db.ReadTxn(func(txn *badger.Txn) error {
		assert.Equal(t, int64(2), CountPrefix(txn, []byte("doc:a:")))
		return ScanPrefix(txn, []byte("doc:a:"), func(key, value []byte) error {
			keys = append(keys, string(key))
			assert.Equal(t, key, value)
			return nil
		})
	}))
	assert.Equal(t, []string{"doc:a:1", "doc:a:2"}, keys)

	require.NoError(t, db.ReadTxn(func(txn *badger.Txn) error {
		ok, err := ExistsKey(txn, []byte("doc:b:1"))
		assert.True(t, ok)
		assert.NoError(t, err)
		_, err = GetKey(txn, []byte("doc:c:1"))
		assert.ErrorIs(t, err, ErrKeyNotFound)
		return nil
	}))
}

func TestIncrWindow(t *testing.T) {
	db := openTestDB(t)
	start := time.Unix(1_700_000_000, 0)
	window := time.Minute

	for i := int64(1); i <= 3; i++ {
		count, ws, err := db.IncrWindow("rl:k", start.Add(time.Duration(i)*time.Second), window)
		require.NoError(t, err)
		assert.Equal(t, i, count)
		assert.True(t, ws.Equal(start.Add(time.Second)))
	}

	later := start.Add(time.Second + window + time.Millisecond)
	count, ws, err := db.IncrWindow("rl:k", later, window)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.True(t, ws.Equal(later))

	c, ws2, ok, err := db.ReadWindow("rl:k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(1), c)
	assert.True(t, ws2.Equal(later))

	_, _, ok, err = db.ReadWindow("rl:none")
	require.NoError(t, err)
	assert.False(t, ok)
}
