package cache

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Stats holds cache statistics.
type Stats struct {
	Hits      int64
	Misses    int64
	Size      int
	Capacity  int
	Evictions int64
	Expired   int64
}

// Cache is a threadsafe LRU for immutable byte payloads, with TTL support.
// Values are copied on the way in and out, so callers may mutate their
// slices freely.
type Cache struct {
	mu          sync.RWMutex
	ll          *list.List
	items       map[string]*list.Element
	capacity    int
	ttl         time.Duration
	stats       Stats
	cleanupStop context.CancelFunc
	cleanupDone chan struct{}
}

type entry struct {
	key    string
	data   []byte
	expire time.Time
}

// New returns a cache with given capacity and ttl.
// If ttl > 0, starts a background goroutine to periodically clean expired entries.
func New(capacity int, ttl time.Duration) *Cache {
	if capacity <= 0 {
		capacity = 1024
	}
	c := &Cache{
		ll:       list.New(),
		items:    make(map[string]*list.Element),
		capacity: capacity,
		ttl:      ttl,
	}
	if ttl > 0 {
		c.cleanupDone = make(chan struct{})
		ctx, cancel := context.WithCancel(context.Background())
		c.cleanupStop = cancel
		go c.cleanupExpired(ctx, ttl)
	}
	return c
}

// Get retrieves a payload if present and not expired.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ele, ok := c.items[key]; ok {
		ent := ele.Value.(*entry)
		if c.ttl > 0 && time.Now().After(ent.expire) {
			c.removeElement(ele)
			atomic.AddInt64(&c.stats.Expired, 1)
			atomic.AddInt64(&c.stats.Misses, 1)
			return nil, false
		}
		c.ll.MoveToFront(ele)
		atomic.AddInt64(&c.stats.Hits, 1)
		return append([]byte(nil), ent.data...), true
	}
	atomic.AddInt64(&c.stats.Misses, 1)
	return nil, false
}

// Set inserts or updates a cache entry.
func (c *Cache) Set(key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	copied := append([]byte(nil), data...)
	if ele, ok := c.items[key]; ok {
		c.ll.MoveToFront(ele)
		ent := ele.Value.(*entry)
		ent.data = copied
		if c.ttl > 0 {
			ent.expire = time.Now().Add(c.ttl)
		}
		return
	}
	if c.ll.Len() >= c.capacity {
		c.evictOldest()
	}
	ent := &entry{key: key, data: copied}
	if c.ttl > 0 {
		ent.expire = time.Now().Add(c.ttl)
	}
	ele := c.ll.PushFront(ent)
	c.items[key] = ele
}

// Delete removes a key if present.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ele, ok := c.items[key]; ok {
		c.removeElement(ele)
	}
}

func (c *Cache) evictOldest() {
	ele := c.ll.Back()
	if ele != nil {
		c.removeElement(ele)
		atomic.AddInt64(&c.stats.Evictions, 1)
	}
}

func (c *Cache) removeElement(ele *list.Element) {
	c.ll.Remove(ele)
	ent := ele.Value.(*entry)
	delete(c.items, ent.key)
}

// Stats returns current cache statistics.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{
		Hits:      atomic.LoadInt64(&c.stats.Hits),
		Misses:    atomic.LoadInt64(&c.stats.Misses),
		Size:      c.ll.Len(),
		Capacity:  c.capacity,
		Evictions: atomic.LoadInt64(&c.stats.Evictions),
		Expired:   atomic.LoadInt64(&c.stats.Expired),
	}
}

// Size returns the current number of entries in the cache.
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ll.Len()
}

// cleanupExpired periodically removes expired entries.
func (c *Cache) cleanupExpired(ctx context.Context, interval time.Duration) {
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	defer close(c.cleanupDone)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.cleanupOnce()
		}
	}
}

func (c *Cache) cleanupOnce() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ttl <= 0 {
		return
	}
	now := time.Now()
	var expired []*list.Element
	for _, ele := range c.items {
		ent := ele.Value.(*entry)
		if now.After(ent.expire) {
			expired = append(expired, ele)
		}
	}
	for _, ele := range expired {
		c.removeElement(ele)
		atomic.AddInt64(&c.stats.Expired, 1)
	}
}

// Close stops the background cleanup goroutine and waits for it to finish.
// It's safe to call Close multiple times.
func (c *Cache) Close() error {
	if c.cleanupStop != nil {
		c.cleanupStop()
		c.cleanupStop = nil
		if c.cleanupDone != nil {
			<-c.cleanupDone
		}
	}
	return nil
}
