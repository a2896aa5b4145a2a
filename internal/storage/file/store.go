package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"lodge_finder/internal/adapters/observability"
)

// Store keeps every key in one JSON object on disk. Writes go through a
// temp file and rename so a crash never leaves a half-written file.
type Store struct {
	path string
	mu   sync.Mutex
}

func New(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &Store{path: path}, nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.load()
	observability.ObserveStore("file", "get", err)
	if err != nil {
		return nil, false, err
	}
	v, ok := m[key]
	if !ok {
		return nil, false, nil
	}
	return []byte(v), true, nil
}

func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.put(key, value)
	observability.ObserveStore("file", "put", err)
	return err
}

func (s *Store) put(key string, value []byte) error {
	m, err := s.load()
	if err != nil {
		return err
	}
	m[key] = string(value)

	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".store-*.json")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

// load returns an empty map for a missing file.
func (s *Store) load() (map[string]string, error) {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}
	m := map[string]string{}
	if len(b) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.path, err)
	}
	return m, nil
}
