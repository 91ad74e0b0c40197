package cache

import (
	"context"
	"sync"
	"time"

	"github.com/gobwas/glob"
)

type (
	memoryEntry struct {
		value     string
		expiresAt time.Time
	}

	// MemoryBackend is an in-process Backend. Expired keys are dropped lazily.
	MemoryBackend struct {
		mu      sync.RWMutex
		entries map[string]memoryEntry
		now     func() time.Time
	}
)

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

func (m *MemoryBackend) lookup(key string) (memoryEntry, bool) {
	entry, ok := m.entries[key]
	if !ok || entry.expired(m.now()) {
		return memoryEntry{}, false
	}

	return entry, true
}

func (m *MemoryBackend) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.lookup(key)
	if !ok {
		return "", ErrCacheMiss
	}

	return entry.value, nil
}

func (m *MemoryBackend) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry := memoryEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = m.now().Add(ttl)
	}

	m.entries[key] = entry

	return nil
}

func (m *MemoryBackend) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, key := range keys {
		delete(m.entries, key)
	}

	return nil
}

func (m *MemoryBackend) Exists(_ context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.lookup(key)

	return ok, nil
}

func (m *MemoryBackend) TTL(_ context.Context, key string) (time.Duration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.lookup(key)
	if !ok || entry.expiresAt.IsZero() {
		return NoExpiry, nil
	}

	return entry.expiresAt.Sub(m.now()), nil
}

// Keys matches like redis KEYS: '*' spans any character, '/' included.
func (m *MemoryBackend) Keys(_ context.Context, pattern string) ([]string, error) {
	matcher, err := glob.Compile(pattern)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	keys := make([]string, 0, len(m.entries))

	for key, entry := range m.entries {
		if entry.expired(now) {
			delete(m.entries, key)
			continue
		}

		if matcher.Match(key) {
			keys = append(keys, key)
		}
	}

	return keys, nil
}
