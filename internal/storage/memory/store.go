package memory

import (
	"context"
	"sync"

	"lodge_finder/internal/adapters/observability"
)

// Store is a process-local KVStore; contents vanish on restart.
type Store struct {
	mu sync.RWMutex
	m  map[string][]byte
}

func New() *Store { return &Store{m: map[string][]byte{}} }

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	observability.ObserveStore("memory", "get", nil)
	v, ok := s.m[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	observability.ObserveStore("memory", "put", nil)
	s.m[key] = append([]byte(nil), value...)
	return nil
}
