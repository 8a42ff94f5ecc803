// ABOUTME: Board cache on Charm KV so cached boards follow the organizer across machines
// ABOUTME: Wraps the charm key-value store and syncs with the charm server after writes
package board

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	gosync "sync"

	"github.com/charmbracelet/charm/kv"
	"github.com/dgraph-io/badger/v3"
)

// CharmAppName names the charm KV database.
const CharmAppName = "sponsordesk-board"

// KV is the part of charm's kv store the cache uses.
type KV interface {
	Get(key []byte) ([]byte, error)
	Set(key, value []byte) error
	Delete(key []byte) error
	Keys() ([][]byte, error)
	Sync() error
}

// CharmCache is a Cache backed by Charm KV.
type CharmCache struct {
	mu       gosync.RWMutex
	kv       KV
	autoSync bool
}

// OpenCharmCache opens the charm KV database against host. When autoSync is
// set, remote changes are pulled now and every write is pushed.
func OpenCharmCache(host string, autoSync bool) (*CharmCache, error) {
	if host != "" {
		_ = os.Setenv("CHARM_HOST", host)
	}

	db, err := kv.OpenWithDefaults(CharmAppName)
	if err != nil {
		return nil, fmt.Errorf("failed to open charm kv: %w", err)
	}

	if autoSync {
		_ = db.Sync()
	}
	return NewCharmCache(db, autoSync), nil
}

func NewCharmCache(store KV, autoSync bool) *CharmCache {
	return &CharmCache{kv: store, autoSync: autoSync}
}

func (c *CharmCache) Keys(prefix string) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	all, err := c.kv.Keys()
	if err != nil {
		return nil, err
	}
	var keys []string
	for _, k := range all {
		if strings.HasPrefix(string(k), prefix) {
			keys = append(keys, string(k))
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (c *CharmCache) Get(key string) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	v, err := c.kv.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrMiss
	}
	return v, err
}

func (c *CharmCache) Set(key string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.kv.Set([]byte(key), value); err != nil {
		return err
	}
	if c.autoSync {
		_ = c.kv.Sync()
	}
	return nil
}

func (c *CharmCache) Delete(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.kv.Delete([]byte(key)); err != nil {
		return err
	}
	if c.autoSync {
		_ = c.kv.Sync()
	}
	return nil
}

// Sync pushes and pulls changes with the charm server.
func (c *CharmCache) Sync() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.kv.Sync()
}

// Close releases the local charm database when the store holds one.
func (c *CharmCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if closer, ok := c.kv.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}
