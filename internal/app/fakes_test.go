package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"

	"lodge_finder/internal/domain"
)

// ---- fakes ----

type fakeKV struct {
	mu     sync.Mutex
	data   map[string][]byte
	puts   int
	getErr error
}

func newKV() *fakeKV { return &fakeKV{data: map[string][]byte{}} }

func (f *fakeKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, false, f.getErr
	}
	v, ok := f.data[key]
	return v, ok, nil
}

func (f *fakeKV) Put(ctx context.Context, key string, v []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts++
	f.data[key] = append([]byte(nil), v...)
	return nil
}

type fakeCache struct {
	mu    sync.Mutex
	store map[string][]byte
	dels  int
}

func (c *fakeCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	b, ok := c.store[key]
	c.mu.Unlock()
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (c *fakeCache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store == nil {
		c.store = map[string][]byte{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.store[key] = b
	return nil
}

func (c *fakeCache) Del(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dels++
	delete(c.store, key)
	return nil
}

// gatedKV stalls the first armed read of key after it has hit the store,
// so a test can interleave a writer between a reader's Get and its use.
type gatedKV struct {
	*fakeKV
	key     string
	armed   atomic.Bool
	reached chan struct{}
	release chan struct{}
}

func newGatedKV(kv *fakeKV, key string) *gatedKV {
	return &gatedKV{fakeKV: kv, key: key, reached: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, ok, err := g.fakeKV.Get(ctx, key)
	if key == g.key && g.armed.CompareAndSwap(true, false) {
		close(g.reached)
		<-g.release
	}
	return v, ok, err
}

type fakeMailer struct {
	configured bool
	failTo     map[string]bool

	mu   sync.Mutex
	sent []domain.Message
}

func (m *fakeMailer) Configured() bool { return m.configured }

func (m *fakeMailer) Send(ctx context.Context, msg domain.Message) error {
	if m.failTo[msg.To] {
		return errors.New("smtp: 550 mailbox unavailable")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

func (m *fakeMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type fakeLocator struct {
	c   domain.Coords
	err error
}

func (l fakeLocator) Locate(ctx context.Context, ip string) (domain.Coords, error) {
	return l.c, l.err
}

func ptr[T any](v T) *T { return &v }
