package redisad

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"lodge_finder/internal/adapters/observability"
)

// Store keeps collections as plain string values without expiry.
type Store struct {
	c      *redis.Client
	prefix string
}

func NewStore(c *redis.Client, prefix string) *Store { return &Store{c: c, prefix: prefix} }

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := s.c.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		observability.ObserveStore("redis", "get", nil)
		return nil, false, nil
	}
	observability.ObserveStore("redis", "get", err)
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	err := s.c.Set(ctx, s.prefix+key, value, 0).Err()
	observability.ObserveStore("redis", "put", err)
	return err
}
