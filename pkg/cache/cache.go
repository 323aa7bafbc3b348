// Package cache provides a bounded in-memory cache whose entries expire
// after a fixed lifetime.
package cache

import (
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync"
)

type entry[V any] struct {
	value     V
	expiredAt time.Time
}

type Cache[V any] struct {
	size int
	ttl  time.Duration
	now  func() time.Time

	items *xsync.MapOf[string, entry[V]]

	// evictMutex serializes evictions so the size bound holds under
	// concurrent inserts.
	evictMutex sync.Mutex
}

func New[V any](size int, ttl time.Duration) *Cache[V] {
	if size <= 0 {
		size = 1
	}

	return &Cache[V]{
		size:  size,
		ttl:   ttl,
		now:   time.Now,
		items: xsync.NewMapOf[entry[V]](),
	}
}

func (c *Cache[V]) Get(key string) (V, bool) {
	e, ok := c.items.Load(key)
	if !ok {
		var zero V
		return zero, false
	}

	if !c.now().Before(e.expiredAt) {
		c.items.Delete(key)
		var zero V
		return zero, false
	}

	return e.value, true
}

func (c *Cache[V]) Set(key string, value V) {
	c.evictMutex.Lock()
	defer c.evictMutex.Unlock()

	if _, ok := c.items.Load(key); !ok && c.items.Size() >= c.size {
		c.evict()
	}

	c.items.Store(key, entry[V]{value: value, expiredAt: c.now().Add(c.ttl)})
}

// GetOrCreate returns the live value of key, or stores and returns create().
// Either way the entry lives for another ttl.
func (c *Cache[V]) GetOrCreate(key string, create func() V) V {
	c.evictMutex.Lock()
	defer c.evictMutex.Unlock()

	now := c.now()
	e, ok := c.items.Load(key)
	if !ok || !now.Before(e.expiredAt) {
		if !ok && c.items.Size() >= c.size {
			c.evict()
		}
		e.value = create()
	}

	e.expiredAt = now.Add(c.ttl)
	c.items.Store(key, e)
	return e.value
}

func (c *Cache[V]) Delete(key string) {
	c.items.Delete(key)
}

func (c *Cache[V]) Len() int {
	return c.items.Size()
}

// evict drops every expired entry. If none expired, the entry closest to
// expiry is dropped.
func (c *Cache[V]) evict() {
	now := c.now()
	oldestKey := ""
	var oldest time.Time
	removed := false

	c.items.Range(func(key string, e entry[V]) bool {
		if !now.Before(e.expiredAt) {
			c.items.Delete(key)
			removed = true
			return true
		}

		if oldestKey == "" || e.expiredAt.Before(oldest) {
			oldestKey, oldest = key, e.expiredAt
		}

		return true
	})

	if !removed && oldestKey != "" {
		c.items.Delete(oldestKey)
	}
}
