package cache

import (
	"errors"
	"fmt"
	"time"

	"github.com/catatsuy/kioku/internal/model"
)

var ErrInvalidCapacity = errors.New("capacity must be at least 1")

// Cache is a bounded key/value store with LRU eviction. It holds no lock of
// its own; callers share it through Guarded.
type Cache struct {
	capacity int

	items map[string]*entry
	lru   *linkedList[string]

	stats Stats
}

var nowUnix = func() int64 { return time.Now().Unix() }

func NewCache(capacity int) (*Cache, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidCapacity, capacity)
	}

	return &Cache{
		capacity: capacity,
		items:    make(map[string]*entry, capacity),
		lru:      newLinkedList[string](),
	}, nil
}

// NowUnix is the clock used for expiry decisions.
func (c *Cache) NowUnix() int64 {
	return nowUnix()
}

// Get returns a live item and promotes it. Expired items are reported as a
// miss but left in place until they are overwritten or evicted.
func (c *Cache) Get(key string) (model.Item, bool) {
	e, ok := c.items[key]
	if !ok {
		c.stats.Misses++
		return model.Item{}, false
	}
	if e.item.Expired(nowUnix()) {
		c.stats.Misses++
		c.stats.ExpiredMisses++
		return model.Item{}, false
	}
	c.lru.MoveToFront(e.node)
	c.stats.Hits++

	return e.item, true
}

// Peek reports whether key is stored, expired or not. It does not promote.
func (c *Cache) Peek(key string) (model.Item, bool) {
	e, ok := c.items[key]
	if !ok {
		return model.Item{}, false
	}
	return e.item, true
}

// InsertOrReplace stores item under key at the most-recently-used position.
// When the cache is full and key is new, the least-recently-used entry is
// evicted first and its key returned.
func (c *Cache) InsertOrReplace(key string, item model.Item) (evicted string, ok bool) {
	if e, exists := c.items[key]; exists {
		e.item = item
		c.lru.MoveToFront(e.node)
		return "", false
	}

	if len(c.items) >= c.capacity {
		evicted, ok = c.evictLocked()
	}

	node := c.lru.PushFront(key)
	c.items[key] = &entry{item: item, node: node}
	return evicted, ok
}

// UpdateValue swaps the value of an existing entry in place. LRU position,
// flags and expiry are left alone.
func (c *Cache) UpdateValue(key string, value []byte, size int) bool {
	e, ok := c.items[key]
	if !ok {
		return false
	}
	e.item.Value = value
	e.item.Size = size
	return true
}

func (c *Cache) Len() int {
	return len(c.items)
}

func (c *Cache) Capacity() int {
	return c.capacity
}

// Keys lists stored keys from most to least recently used.
func (c *Cache) Keys() []string {
	keys := make([]string, 0, c.lru.Len())
	for i := c.lru.Front(); i != nilIndex; i = c.lru.Next(i) {
		k, _ := c.lru.Value(i)
		keys = append(keys, k)
	}
	return keys
}

func (c *Cache) Stats() Stats {
	s := c.stats
	s.Items = int64(len(c.items))
	s.Capacity = int64(c.capacity)
	return s
}

func (c *Cache) evictLocked() (string, bool) {
	victim := c.lru.Back()
	key, ok := c.lru.Remove(victim)
	if !ok {
		return "", false
	}
	delete(c.items, key)
	c.stats.Evictions++
	return key, true
}
