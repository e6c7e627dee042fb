package tmdb

import (
	"sort"
	"sync"
	"time"
)

const defaultCacheMaxEntries = 256

type cachedBody struct {
	body      []byte
	updatedAt time.Time
	expiresAt time.Time
}

// memoryCache keeps raw catalog bodies in process when Redis is not configured.
type memoryCache struct {
	mu         sync.Mutex
	entries    map[string]cachedBody
	ttl        time.Duration
	maxEntries int
}

func newMemoryCache(ttl time.Duration, maxEntries int) *memoryCache {
	if maxEntries <= 0 {
		maxEntries = defaultCacheMaxEntries
	}
	return &memoryCache{
		entries:    make(map[string]cachedBody),
		ttl:        ttl,
		maxEntries: maxEntries,
	}
}

func (m *memoryCache) get(key string, now time.Time) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	if !now.Before(entry.expiresAt) {
		delete(m.entries, key)
		return nil, false
	}
	return entry.body, true
}

func (m *memoryCache) set(key string, body []byte, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = cachedBody{
		body:      append([]byte(nil), body...),
		updatedAt: now,
		expiresAt: now.Add(m.ttl),
	}
	m.trimLocked(now)
}

func (m *memoryCache) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *memoryCache) trimLocked(now time.Time) {
	for key, entry := range m.entries {
		if !now.Before(entry.expiresAt) {
			delete(m.entries, key)
		}
	}
	if len(m.entries) <= m.maxEntries {
		return
	}

	type pair struct {
		key       string
		updatedAt time.Time
	}
	items := make([]pair, 0, len(m.entries))
	for key, entry := range m.entries {
		items = append(items, pair{key: key, updatedAt: entry.updatedAt})
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].updatedAt.Before(items[j].updatedAt)
	})
	for i := 0; i < len(items)-m.maxEntries; i++ {
		delete(m.entries, items[i].key)
	}
}
