package cache

import "github.com/catatsuy/kioku/internal/model"

// entry is the map value. node is the key's slot in the LRU list.
type entry struct {
	item model.Item
	node int
}

// Stats is a point-in-time snapshot of engine counters.
type Stats struct {
	Hits          int64
	Misses        int64
	ExpiredMisses int64
	Evictions     int64
	Items         int64
	Capacity      int64
}
