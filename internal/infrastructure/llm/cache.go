package llm

import (
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"testgen/internal/domain/entity"
)

// Cache is the bounded in-process generation cache. Entries are evicted
// least-recently-used once size is reached, and after ttl regardless of use.
type Cache struct {
	lru    *expirable.LRU[entity.CacheKey, string]
	hits   atomic.Int64
	misses atomic.Int64
}

// CacheStats is what the metrics view reports about the cache.
type CacheStats struct {
	Size   int   `json:"size"`
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
}

// NewCache creates a cache holding at most size entries for ttl. A zero ttl
// disables age-based eviction.
func NewCache(size int, ttl time.Duration) *Cache {
	if size <= 0 {
		size = 1
	}
	return &Cache{lru: expirable.NewLRU[entity.CacheKey, string](size, nil, ttl)}
}

func (c *Cache) Get(key entity.CacheKey) (string, bool) {
	v, ok := c.lru.Get(key)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return v, ok
}

// Put stores value under key; identical-key races resolve last writer wins.
func (c *Cache) Put(key entity.CacheKey, value string) {
	c.lru.Add(key, value)
}

func (c *Cache) Len() int {
	return c.lru.Len()
}

func (c *Cache) Purge() {
	c.lru.Purge()
}

func (c *Cache) Stats() CacheStats {
	return CacheStats{
		Size:   c.lru.Len(),
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
	}
}
