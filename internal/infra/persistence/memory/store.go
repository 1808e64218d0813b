// Package memory keeps state buckets in process memory. Nothing survives a
// restart; it backs tests and ephemeral sessions.
package memory

import (
	"context"
	"sync"
)

// Store is an in-memory bucket store.
type Store struct {
	mu      sync.RWMutex
	buckets map[string][]byte
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{buckets: make(map[string][]byte)}
}

// Load returns a copy of the bucket payload.
func (s *Store) Load(_ context.Context, bucket string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	payload, ok := s.buckets[bucket]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), payload...), true, nil
}

// Save replaces the bucket payload.
func (s *Store) Save(_ context.Context, bucket string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buckets[bucket] = append([]byte(nil), payload...)
	return nil
}

func (s *Store) Close() error { return nil }

func (s *Store) Driver() string { return "memory" }
