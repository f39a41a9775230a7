package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryStore is a map-backed Store used in unit tests. It supports forced
// failures so callers can exercise the cache-unavailable degradation paths.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	err     error
	nowFn   func() time.Time
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

// NewMemoryStore instantiates an empty in-memory cache.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		nowFn:   time.Now,
	}
}

// WithError forces every subsequent call to fail with err. Passing nil
// restores normal behaviour.
func (m *MemoryStore) WithError(err error) *MemoryStore {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// WithNow overrides the clock used for TTL expiry checks.
func (m *MemoryStore) WithNow(nowFn func() time.Time) *MemoryStore {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nowFn = nowFn
	return m
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return nil, m.err
	}

	entry, ok := m.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	if !entry.expiresAt.IsZero() && m.nowFn().After(entry.expiresAt) {
		delete(m.entries, key)
		return nil, ErrNotFound
	}
	return append([]byte(nil), entry.value...), nil
}

func (m *MemoryStore) SetWithTTL(_ context.Context, key string, value []byte, ttlSeconds int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return m.err
	}

	entry := memoryEntry{value: append([]byte(nil), value...)}
	if ttlSeconds > 0 {
		entry.expiresAt = m.nowFn().Add(time.Duration(ttlSeconds) * time.Second)
	}
	m.entries[key] = entry
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return m.err
	}
	delete(m.entries, key)
	return nil
}

func (m *MemoryStore) DeletePrefix(_ context.Context, prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return m.err
	}
	for key := range m.entries {
		if strings.HasPrefix(key, prefix) {
			delete(m.entries, key)
		}
	}
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}

// Len reports the number of live entries, for test assertions.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
