package cache

import "sync"

// Guarded serializes access to one Cache. The map and the LRU list are
// always updated together under mu.
type Guarded struct {
	mu    sync.Mutex
	cache *Cache
}

func NewGuarded(c *Cache) *Guarded {
	return &Guarded{cache: c}
}

// Do runs fn with exclusive access to the cache. Values read from the cache
// must not be retained after fn returns.
func (g *Guarded) Do(fn func(c *Cache)) {
	g.mu.Lock()
	defer g.mu.Unlock()

	fn(g.cache)
}

func (g *Guarded) Stats() Stats {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.cache.Stats()
}
