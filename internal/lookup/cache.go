package lookup

import (
	"fmt"
	"sync"
	"time"

	"github.com/sells-group/roadcheck/internal/model"
)

// Cache is a concurrent-safe LRU cache of TagSets keyed by coordinate,
// with TTL expiration. Coordinates are rounded to five decimal places
// (about one meter), so repeated passes over the same road share entries.
type Cache struct {
	mu         sync.Mutex
	entries    map[string]*cacheEntry
	order      []string // LRU order: front=oldest, back=newest
	maxEntries int
	ttl        time.Duration
	now        func() time.Time
}

type cacheEntry struct {
	tags      model.TagSet
	createdAt time.Time
}

// NewCache creates a Cache holding at most maxEntries sets for ttl.
func NewCache(maxEntries int, ttl time.Duration) *Cache {
	if maxEntries < 1 {
		maxEntries = 1
	}
	return &Cache{
		entries:    make(map[string]*cacheEntry),
		maxEntries: maxEntries,
		ttl:        ttl,
		now:        time.Now,
	}
}

func coordKey(lat, lon float64) string {
	return fmt.Sprintf("%.5f,%.5f", lat, lon)
}

// Get returns a copy of the cached TagSet, or false on miss or expiry.
func (c *Cache) Get(lat, lon float64) (model.TagSet, bool) {
	key := coordKey(lat, lon)

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}

	if c.now().Sub(entry.createdAt) > c.ttl {
		delete(c.entries, key)
		c.removeFromOrder(key)
		return nil, false
	}

	c.removeFromOrder(key)
	c.order = append(c.order, key)
	return entry.tags.Clone(), true
}

// Put stores a copy of tags, evicting the least recently used entry when
// full.
func (c *Cache) Put(lat, lon float64, tags model.TagSet) {
	key := coordKey(lat, lon)
	entry := &cacheEntry{tags: tags.Clone(), createdAt: c.now()}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; ok {
		c.entries[key] = entry
		c.removeFromOrder(key)
		c.order = append(c.order, key)
		return
	}

	for len(c.entries) >= c.maxEntries && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}

	c.entries[key] = entry
	c.order = append(c.order, key)
}

func (c *Cache) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}
