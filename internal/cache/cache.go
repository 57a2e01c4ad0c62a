package cache

import (
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// Manager memoizes read-side aggregates (trending topics, statistics). Every
// write to the corpus calls Invalidate so a reader never gets a result older
// than the last committed write.
type Manager struct {
	cache      *cache.Cache
	mu         sync.RWMutex
	generation uint64
}

func NewManager(defaultTTL time.Duration) *Manager {
	return &Manager{
		cache: cache.New(defaultTTL, 10*time.Minute),
	}
}

func (m *Manager) Get(key string) (interface{}, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cache.Get(key)
}

func (m *Manager) Set(key string, value interface{}, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache.Set(key, value, ttl)
}

func (m *Manager) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache.Delete(key)
}

func (m *Manager) Flush() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache.Flush()
}

// Invalidate drops every entry and discards loads that started before it.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generation++
	m.cache.Flush()
}

// ItemCount returns the number of cached entries, expired ones included.
func (m *Manager) ItemCount() int {
	return m.cache.ItemCount()
}

// GetOrLoad returns the cached value for key or calls load and caches its
// result. A result is not cached when Invalidate ran while it was loading.
func (m *Manager) GetOrLoad(key string, ttl time.Duration, load func() (interface{}, error)) (interface{}, error) {
	m.mu.RLock()
	if v, ok := m.cache.Get(key); ok {
		m.mu.RUnlock()
		return v, nil
	}
	gen := m.generation
	m.mu.RUnlock()

	v, err := load()
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if m.generation == gen {
		m.cache.Set(key, v, ttl)
	}
	m.mu.Unlock()
	return v, nil
}
