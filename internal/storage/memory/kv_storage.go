// Package memory is a process-local KeyValueStorage. Nothing survives a
// restart.
package memory

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"github.com/bobmcallan/folio-portal/internal/interfaces"
)

// KVStorage is a map guarded by a RWMutex.
type KVStorage struct {
	mu    sync.RWMutex
	items map[string]string
}

// NewKVStorage returns an empty store.
func NewKVStorage() *KVStorage {
	return &KVStorage{items: make(map[string]string)}
}

// Get retrieves a value by key. A missing key wraps interfaces.ErrNotFound.
func (s *KVStorage) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.items[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", interfaces.ErrNotFound, key)
	}
	return v, nil
}

// Set stores a key-value pair.
func (s *KVStorage) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = value
	return nil
}

// Delete removes a key-value pair.
func (s *KVStorage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key)
	return nil
}

// GetAll returns a copy of every pair.
func (s *KVStorage) GetAll(_ context.Context) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.items), nil
}

// Manager implements interfaces.StorageManager in memory.
type Manager struct {
	kv *KVStorage
}

// NewManager returns a manager over a fresh in-memory store.
func NewManager() *Manager { return &Manager{kv: NewKVStorage()} }

// KeyValueStorage returns the KeyValue storage interface.
func (m *Manager) KeyValueStorage() interfaces.KeyValueStorage { return m.kv }

// Backend names the storage backend.
func (m *Manager) Backend() string { return "memory" }

// Close is a no-op.
func (m *Manager) Close() error { return nil }
