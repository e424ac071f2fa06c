package blobcache

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is a process-local Cache guarded by a RWMutex.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryStore creates an empty store whose entries expire after ttl.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]Entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (m *MemoryStore) Get(_ context.Context, key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[key]
	if !ok || !fresh(e, m.ttl, m.now()) {
		return "", false
	}
	return e.URL, true
}

func (m *MemoryStore) Set(_ context.Context, key, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = Entry{Key: key, URL: url, InsertedAt: m.now()}
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, key)
	return nil
}

func (m *MemoryStore) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = make(map[string]Entry)
	return nil
}

func (m *MemoryStore) Stats(_ context.Context) (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := m.now()
	stats := Stats{
		Count:      len(m.entries),
		Keys:       make([]string, 0, len(m.entries)),
		Entries:    make([]EntryStat, 0, len(m.entries)),
		TTLSeconds: m.ttl.Seconds(),
	}
	for key := range m.entries {
		stats.Keys = append(stats.Keys, key)
	}
	sort.Strings(stats.Keys)
	for _, key := range stats.Keys {
		e := m.entries[key]
		stats.Entries = append(stats.Entries, EntryStat{
			Key:        key,
			AgeSeconds: now.Sub(e.InsertedAt).Seconds(),
			Expired:    !fresh(e, m.ttl, now),
		})
	}
	return stats, nil
}
