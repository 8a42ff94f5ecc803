// ABOUTME: Tests for the Charm KV board cache
// ABOUTME: Stands in for the charm server with an in-memory BadgerDB that counts syncs
package board

import (
	"testing"

	"github.com/dgraph-io/badger/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testKV mirrors charm's kv store on a local in-memory BadgerDB.
type testKV struct {
	db    *badger.DB
	syncs int
}

func newTestKV(t *testing.T) *testKV {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return &testKV{db: db}
}

func (t *testKV) Get(key []byte) ([]byte, error) {
	var result []byte
	err := t.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		result, err = item.ValueCopy(nil)
		return err
	})
	return result, err
}

func (t *testKV) Set(key, value []byte) error {
	return t.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

func (t *testKV) Delete(key []byte) error {
	return t.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

func (t *testKV) Keys() ([][]byte, error) {
	var keys [][]byte
	err := t.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	return keys, err
}

func (t *testKV) Sync() error {
	t.syncs++
	return nil
}

func TestCharmCache(t *testing.T) {
	store := newTestKV(t)
	exerciseCache(t, NewCharmCache(store, true))
	assert.Equal(t, 5, store.syncs)
}

func TestCharmCacheWithoutAutoSync(t *testing.T) {
	store := newTestKV(t)
	c := NewCharmCache(store, false)

	require.NoError(t, c.Set("pipeline:a", []byte(`[]`)))
	assert.Zero(t, store.syncs)

	require.NoError(t, c.Sync())
	assert.Equal(t, 1, store.syncs)
	assert.NoError(t, c.Close())
}
