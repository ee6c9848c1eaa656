package memory

import (
	"context"
	"sync"

	"github.com/luciancaetano/arenanet/internal/storage"
)

// Store is an in-process KV. Nothing survives the process; it backs tests and
// clients started without a storage path.
type Store struct {
	mu     sync.RWMutex
	values map[string]string
	closed bool
}

var _ storage.KV = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{values: make(map[string]string)}
}

// Get returns the value stored under key.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return "", false, storage.ErrClosed
	}
	v, ok := s.values[key]
	return v, ok, nil
}

// Set stores value under key.
func (s *Store) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return storage.ErrClosed
	}
	s.values[key] = value
	return nil
}

// Delete removes key.
func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return storage.ErrClosed
	}
	delete(s.values, key)
	return nil
}

// Close marks the store closed. Further calls return storage.ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}
