package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"lodge_finder/internal/domain"
)

const (
	lodgesKey      = "lodges"
	bookmarksKey   = "bookmarks"
	lodgesCacheKey = "lodges:all"
)

// errNoChange lets an update callback skip the write entirely.
var errNoChange = errors.New("no change")

// RecordStore keeps the lodge and bookmark collections as two JSON blobs in a
// KVStore. It is the only writer of those keys.
type RecordStore struct {
	kv       domain.KVStore
	maxBytes int
	seed     []domain.Lodge

	cache    domain.Cache
	cacheTTL time.Duration

	mu sync.Mutex // serializes read-modify-write within this process
}

// NewRecordStore wraps kv. maxBytes <= 0 disables the capacity check.
func NewRecordStore(kv domain.KVStore, maxBytes int) *RecordStore {
	return &RecordStore{kv: kv, maxBytes: maxBytes, seed: SeedLodges()}
}

// WithCache adds a read-through cache for the lodge collection.
func (s *RecordStore) WithCache(c domain.Cache, ttl time.Duration) *RecordStore {
	s.cache = c
	s.cacheTTL = ttl
	return s
}

// WithSeed replaces the first-run example lodges.
func (s *RecordStore) WithSeed(ls []domain.Lodge) *RecordStore {
	s.seed = ls
	return s
}

// GetLodges never fails: unreadable or corrupt data reads as empty.
// Cache misses refill under mu so a refill can never land after a newer save.
func (s *RecordStore) GetLodges(ctx context.Context) []domain.Lodge {
	if s.cache != nil {
		var cached []domain.Lodge
		if ok, _ := s.cache.Get(ctx, lodgesCacheKey, &cached); ok {
			return cached
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		ls, err := s.lodgesLocked(ctx)
		if err != nil {
			return []domain.Lodge{}
		}
		_ = s.cache.Set(ctx, lodgesCacheKey, ls, int(s.cacheTTL.Seconds()))
		return ls
	}

	ls, ok, err := s.loadLodges(ctx)
	if err != nil {
		return []domain.Lodge{}
	}
	if ok {
		return ls
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ls, err = s.lodgesLocked(ctx)
	if err != nil {
		return []domain.Lodge{}
	}
	return ls
}

// loadLodges reads the collection straight from kv.
func (s *RecordStore) loadLodges(ctx context.Context) ([]domain.Lodge, bool, error) {
	raw, ok, err := s.kv.Get(ctx, lodgesKey)
	if err != nil {
		log.Warn().Err(err).Str("key", lodgesKey).Msg("store read failed")
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	var ls []domain.Lodge
	if err := json.Unmarshal(raw, &ls); err != nil {
		log.Warn().Err(err).Str("key", lodgesKey).Msg("corrupt collection treated as empty")
		return []domain.Lodge{}, true, nil
	}
	if ls == nil {
		ls = []domain.Lodge{}
	}
	return ls, true, nil
}

// lodgesLocked reads kv and seeds when the key is still absent. Caller holds mu.
func (s *RecordStore) lodgesLocked(ctx context.Context) ([]domain.Lodge, error) {
	ls, ok, err := s.loadLodges(ctx)
	if err != nil {
		return nil, err
	}
	if ok {
		return ls, nil
	}
	// seed the example lodges the first time the key is missing; once
	// anything has been written the key exists and this never runs again
	seed := cloneLodges(s.seed)
	if err := s.saveLodgesLocked(ctx, seed); err != nil {
		log.Warn().Err(err).Msg("seeding lodges failed")
	} else {
		log.Info().Int("count", len(seed)).Msg("lodge collection seeded")
	}
	return seed, nil
}

func (s *RecordStore) SaveLodges(ctx context.Context, ls []domain.Lodge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLodgesLocked(ctx, ls)
}

func (s *RecordStore) saveLodgesLocked(ctx context.Context, ls []domain.Lodge) error {
	if ls == nil {
		ls = []domain.Lodge{}
	}
	if err := s.put(ctx, lodgesKey, ls); err != nil {
		return err
	}
	if s.cache != nil {
		_ = s.cache.Del(ctx, lodgesCacheKey)
	}
	return nil
}

func (s *RecordStore) GetBookmarks(ctx context.Context) []domain.Bookmark {
	bs, err := s.loadBookmarks(ctx)
	if err != nil {
		return []domain.Bookmark{}
	}
	return bs
}

func (s *RecordStore) loadBookmarks(ctx context.Context) ([]domain.Bookmark, error) {
	raw, ok, err := s.kv.Get(ctx, bookmarksKey)
	if err != nil {
		log.Warn().Err(err).Str("key", bookmarksKey).Msg("store read failed")
		return nil, err
	}
	if !ok {
		return []domain.Bookmark{}, nil
	}
	var bs []domain.Bookmark
	if err := json.Unmarshal(raw, &bs); err != nil || bs == nil {
		if err != nil {
			log.Warn().Err(err).Str("key", bookmarksKey).Msg("corrupt collection treated as empty")
		}
		return []domain.Bookmark{}, nil
	}
	return bs, nil
}

func (s *RecordStore) SaveBookmarks(ctx context.Context, bs []domain.Bookmark) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveBookmarksLocked(ctx, bs)
}

func (s *RecordStore) saveBookmarksLocked(ctx context.Context, bs []domain.Bookmark) error {
	if bs == nil {
		bs = []domain.Bookmark{}
	}
	return s.put(ctx, bookmarksKey, bs)
}

// UpdateLodges runs fn on the collection as stored in kv, never the cache,
// and saves its result. Returning errNoChange from fn skips the write; a
// failed read aborts instead of overwriting what it could not see.
func (s *RecordStore) UpdateLodges(ctx context.Context, fn func([]domain.Lodge) ([]domain.Lodge, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.lodgesLocked(ctx)
	if err != nil {
		return fmt.Errorf("read %s: %w", lodgesKey, err)
	}
	out, err := fn(cur)
	if errors.Is(err, errNoChange) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.saveLodgesLocked(ctx, out)
}

func (s *RecordStore) UpdateBookmarks(ctx context.Context, fn func([]domain.Bookmark) ([]domain.Bookmark, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.loadBookmarks(ctx)
	if err != nil {
		return fmt.Errorf("read %s: %w", bookmarksKey, err)
	}
	out, err := fn(cur)
	if errors.Is(err, errNoChange) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.saveBookmarksLocked(ctx, out)
}

func (s *RecordStore) put(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if s.maxBytes > 0 && len(b) > s.maxBytes {
		return fmt.Errorf("%w: %s needs %d bytes, capacity is %d", domain.ErrQuotaExceeded, key, len(b), s.maxBytes)
	}
	if err := s.kv.Put(ctx, key, b); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

func cloneLodges(in []domain.Lodge) []domain.Lodge {
	out := make([]domain.Lodge, len(in))
	copy(out, in)
	for i := range out {
		out[i].Gallery = append([]domain.ImageRef{}, in[i].Gallery...)
		out[i].Amenities = append([]string{}, in[i].Amenities...)
	}
	return out
}
