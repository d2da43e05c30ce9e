package cache

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrInvalidTTL = errors.New("cache: ttl must be positive")

type item struct {
	value     string
	expiresAt time.Time
}

// Memory is the default in-process driver. Expiry is lazy on read; the app
// runs PurgeExpired on its housekeeping interval so abandoned keys don't
// accumulate forever.
type Memory struct {
	mu    sync.RWMutex
	items map[string]item
	now   func() time.Time
}

type MemoryOption func(*Memory)

// WithClock overrides the time source, for TTL tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) { m.now = now }
}

func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		items: make(map[string]item),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	it, ok := m.items[key]
	m.mu.RUnlock()

	if !ok {
		return "", false, nil
	}

	now := m.now()
	if now.Before(it.expiresAt) {
		return it.value, true, nil
	}

	// The snapshot is expired, but a writer may have refreshed the key
	// between the two lock acquisitions. Re-check under the write lock and
	// only drop an entry that is still expired.
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.items[key]
	if !ok {
		return "", false, nil
	}
	if now.Before(cur.expiresAt) {
		return cur.value, true, nil
	}
	delete(m.items, key)
	return "", false, nil
}

func (m *Memory) Set(_ context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}

	m.mu.Lock()
	m.items[key] = item{value: value, expiresAt: m.now().Add(ttl)}
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.items, key)
	m.mu.Unlock()
	return nil
}

// PurgeExpired drops every expired entry and reports how many were removed.
func (m *Memory) PurgeExpired() int {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, it := range m.items {
		if !now.Before(it.expiresAt) {
			delete(m.items, key)
			removed++
		}
	}
	return removed
}

// Len reports the number of stored entries, expired or not.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}
