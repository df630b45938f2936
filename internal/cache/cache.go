package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Cache stores opaque values with an expiry. A miss is reported as ok=false,
// never as an error.
type Cache interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeleteByPrefix(ctx context.Context, prefix string) error
}

type item struct {
	value   []byte
	expires time.Time
}

// Memory is an in-process Cache. Expired entries are dropped lazily on read
// and on Sweep.
type Memory struct {
	mu    sync.RWMutex
	items map[string]item
	now   func() time.Time
}

var _ Cache = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{items: make(map[string]item), now: time.Now}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	it, ok := m.items[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !it.expires.IsZero() && !m.now().Before(it.expires) {
		m.mu.Lock()
		delete(m.items, key)
		m.mu.Unlock()
		return nil, false, nil
	}
	return it.value, true, nil
}

// Set stores value; a non-positive ttl keeps it until deleted.
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	it := item{value: append([]byte(nil), value...)}
	if ttl > 0 {
		it.expires = m.now().Add(ttl)
	}
	m.mu.Lock()
	m.items[key] = it
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.items, key)
	m.mu.Unlock()
	return nil
}

func (m *Memory) DeleteByPrefix(_ context.Context, prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.items {
		if strings.HasPrefix(key, prefix) {
			delete(m.items, key)
		}
	}
	return nil
}

// Sweep removes every expired entry and returns how many were dropped.
func (m *Memory) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	n := 0
	for key, it := range m.items {
		if !it.expires.IsZero() && !now.Before(it.expires) {
			delete(m.items, key)
			n++
		}
	}
	return n
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}
