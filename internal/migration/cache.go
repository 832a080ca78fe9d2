package migration

import (
	"container/list"
	"sync"
	"time"

	"github.com/fieldrow/companyfix/internal/docstore"
)

// CacheStats is an observability snapshot of the read-through cache. The
// efficiency figure never gates any decision.
type CacheStats struct {
	Hits       uint64  `json:"hits"`
	Misses     uint64  `json:"misses"`
	Size       int     `json:"size"`
	Capacity   int     `json:"capacity"`
	Evictions  uint64  `json:"evictions"`
	Efficiency float64 `json:"efficiency"`
}

type cacheEntry struct {
	key            string
	value          docstore.Document
	insertedAt     time.Time
	lastAccessedAt time.Time
}

// ReadThroughCache is a bounded, time-boxed cache fronting point lookups of
// reference records. Eviction is strict LRU when capacity is exceeded; an
// entry older than the TTL is treated as absent on lookup even if not yet
// physically purged. A mutex guards the table because the operator API reads
// cache stats while the engine loop is running.
type ReadThroughCache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration

	entries map[string]*list.Element
	lru     *list.List // front = most recently used

	hits      uint64
	misses    uint64
	evictions uint64

	now func() time.Time
}

// NewReadThroughCache creates a cache bounded by capacity entries and ttl age.
func NewReadThroughCache(capacity int, ttl time.Duration) *ReadThroughCache {
	return &ReadThroughCache{
		capacity: capacity,
		ttl:      ttl,
		entries:  make(map[string]*list.Element, capacity),
		lru:      list.New(),
		now:      time.Now,
	}
}

// Get returns the cached document for key. A stale entry is lazily evicted
// and reported as a miss.
func (c *ReadThroughCache) Get(key string) (docstore.Document, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		c.misses++
		return docstore.Document{}, false
	}

	entry := elem.Value.(*cacheEntry)
	if c.now().Sub(entry.insertedAt) > c.ttl {
		c.removeElement(elem)
		c.evictions++
		c.misses++
		return docstore.Document{}, false
	}

	entry.lastAccessedAt = c.now()
	c.lru.MoveToFront(elem)
	c.hits++
	return entry.value, true
}

// Set stores value under key, evicting the least recently used entry first
// when the cache is at capacity.
func (c *ReadThroughCache) Set(key string, value docstore.Document) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		entry := elem.Value.(*cacheEntry)
		entry.value = value
		entry.insertedAt = c.now()
		entry.lastAccessedAt = c.now()
		c.lru.MoveToFront(elem)
		return
	}

	if c.lru.Len() >= c.capacity {
		if oldest := c.lru.Back(); oldest != nil {
			c.removeElement(oldest)
			c.evictions++
		}
	}

	entry := &cacheEntry{
		key:            key,
		value:          value,
		insertedAt:     c.now(),
		lastAccessedAt: c.now(),
	}
	c.entries[key] = c.lru.PushFront(entry)
}

// Clear empties the cache. Counters are kept, they describe the whole run.
func (c *ReadThroughCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*list.Element, c.capacity)
	c.lru.Init()
}

// Cleanup sweeps the table removing all TTL-expired entries. It is invocable
// by the operator and may also run on a timer. Returns the number removed.
func (c *ReadThroughCache) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	now := c.now()
	for elem := c.lru.Back(); elem != nil; {
		prev := elem.Prev()
		entry := elem.Value.(*cacheEntry)
		if now.Sub(entry.insertedAt) > c.ttl {
			c.removeElement(elem)
			c.evictions++
			removed++
		}
		elem = prev
	}
	return removed
}

// Stats returns a point-in-time snapshot of cache counters.
func (c *ReadThroughCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := CacheStats{
		Hits:      c.hits,
		Misses:    c.misses,
		Size:      c.lru.Len(),
		Capacity:  c.capacity,
		Evictions: c.evictions,
	}
	if total := c.hits + c.misses; total > 0 {
		stats.Efficiency = float64(c.hits) / float64(total) * 100
	}
	return stats
}

func (c *ReadThroughCache) removeElement(elem *list.Element) {
	entry := elem.Value.(*cacheEntry)
	delete(c.entries, entry.key)
	c.lru.Remove(elem)
}
