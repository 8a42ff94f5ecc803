// ABOUTME: Client-side board cache holding the cards of each conference pipeline
// ABOUTME: Provides an in-memory cache and the key layout shared by every implementation
package board

import (
	"errors"
	"sort"
	"strings"
	gosync "sync"

	"github.com/google/uuid"
	"github.com/harperreed/sponsordesk/db"
)

// KeyPrefix starts every board cache key.
const KeyPrefix = "pipeline:"

// ErrMiss is returned by Get when the key is not cached.
var ErrMiss = errors.New("board cache miss")

// Card is one pipeline record as drawn on the board.
type Card = db.BoardCard

// Cache stores serialized card lists by key.
type Cache interface {
	Keys(prefix string) ([]string, error)
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Delete(key string) error
}

// Key returns the cache key for a conference board.
func Key(conferenceID uuid.UUID) string {
	return KeyPrefix + conferenceID.String()
}

// ConferenceID parses a board key back into its conference id.
func ConferenceID(key string) (uuid.UUID, error) {
	return uuid.Parse(strings.TrimPrefix(key, KeyPrefix))
}

type MemoryCache struct {
	mu      gosync.RWMutex
	entries map[string][]byte
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: map[string][]byte{}}
}

func (m *MemoryCache) Keys(prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var keys []string
	for k := range m.entries {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *MemoryCache) Get(key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.entries[key]
	if !ok {
		return nil, ErrMiss
	}
	return append([]byte(nil), v...), nil
}

func (m *MemoryCache) Set(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryCache) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}
