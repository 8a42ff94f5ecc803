// ABOUTME: BadgerDB-backed board cache that survives process restarts
// ABOUTME: Uses prefix iteration for key listing and runs in memory when no directory is given
package board

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v3"
)

type BadgerCache struct {
	db *badger.DB
}

// OpenBadgerCache opens a cache in dir. An empty dir keeps everything in memory.
func OpenBadgerCache(dir string) (*BadgerCache, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}

	database, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open board cache: %w", err)
	}
	return &BadgerCache{db: database}, nil
}

func (b *BadgerCache) Keys(prefix string) ([]string, error) {
	var keys []string
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	return keys, err
}

func (b *BadgerCache) Get(key string) ([]byte, error) {
	var value []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrMiss
	}
	return value, err
}

func (b *BadgerCache) Set(key string, value []byte) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
}

func (b *BadgerCache) Delete(key string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

func (b *BadgerCache) Close() error {
	return b.db.Close()
}
