// Package store keeps small pieces of client state, such as the id of the
// most recently started research job, across runs.
package store

import (
	"context"
	"errors"
	"sync"
)

// KeyCurrentJobID holds the most recently started research job id.
const KeyCurrentJobID = "currentResearchJobId"

// ErrNotFound is returned by Get for keys that were never set.
var ErrNotFound = errors.New("key not found")

// KeyValueStore is a durable string map without expiry
type KeyValueStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// MemoryStore keeps values in process memory
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (s *MemoryStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}
