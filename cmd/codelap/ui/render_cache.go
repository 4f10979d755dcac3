package ui

import (
	"hash/fnv"
	"sync"
)

// renderCache memoizes rendered markdown. Entries are evicted oldest first
// once maxSize is reached.
type renderCache struct {
	mu      sync.Mutex
	entries map[uint64]string
	order   []uint64
	maxSize int
	hits    int
}

func newRenderCache(maxSize int) *renderCache {
	return &renderCache{entries: make(map[uint64]string), maxSize: maxSize}
}

// cacheKey hashes the inputs with FNV-1a.
func cacheKey(parts ...string) uint64 {
	h := fnv.New64a()
	for _, p := range parts {
		_, _ = h.Write([]byte(p))
		_, _ = h.Write([]byte{0})
	}
	return h.Sum64()
}

func (c *renderCache) get(key uint64) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out, ok := c.entries[key]
	if ok {
		c.hits++
	}
	return out, ok
}

func (c *renderCache) set(key uint64, content string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; ok {
		c.entries[key] = content
		return
	}
	if c.maxSize > 0 && len(c.order) >= c.maxSize {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
	c.entries[key] = content
	c.order = append(c.order, key)
}

// getOrCompute returns the cached value for key or stores compute's result.
func (c *renderCache) getOrCompute(key uint64, compute func() string) string {
	if out, ok := c.get(key); ok {
		return out
	}
	out := compute()
	c.set(key, out)
	return out
}

func (c *renderCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
