// Package memstore provides an in-memory implementation of storage.Store.
// It backs unit tests and single-process deployments where durability across
// restarts is not required.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/rudrakanya/Simhasth-X8/errors"
	"github.com/rudrakanya/Simhasth-X8/storage"
)

// Store is a thread-safe in-memory key-value store.
type Store struct {
	mu    sync.RWMutex
	items map[string][]byte
}

var _ storage.Store = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{items: make(map[string][]byte)}
}

// Put stores data at key, overwriting any existing value.
func (s *Store) Put(_ context.Context, key string, data []byte) error {
	if key == "" {
		return errors.WrapInvalid(errors.ErrInvalidData, "memstore", "Put", "empty key")
	}

	// Copy so callers can't mutate stored data afterwards.
	buf := make([]byte, len(data))
	copy(buf, data)

	s.mu.Lock()
	s.items[key] = buf
	s.mu.Unlock()
	return nil
}

// Get retrieves the data for key.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	data, ok := s.items[key]
	s.mu.RUnlock()

	if !ok {
		return nil, errors.ErrEntryNotFound
	}

	buf := make([]byte, len(data))
	copy(buf, data)
	return buf, nil
}

// List returns all keys with the given prefix in lexicographic order.
func (s *Store) List(_ context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	keys := make([]string, 0, len(s.items))
	for key := range s.items {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	s.mu.RUnlock()

	sort.Strings(keys)
	return keys, nil
}

// Delete removes key. Deleting a missing key is a no-op.
func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.items, key)
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
