package utils

import (
	"sync"
	"time"
)

// CacheItem represents a cached item with expiration
type CacheItem struct {
	Value      interface{}
	Expiration time.Time
}

// MemoryCache is a process-local cache with sliding expiration. Nothing in it
// survives a restart.
type MemoryCache struct {
	items     map[string]*CacheItem
	mu        sync.RWMutex
	ttl       time.Duration
	onEvict   func(key string, value interface{})
	stop      chan struct{}
	closeOnce sync.Once
}

// NewMemoryCache creates a cache whose entries expire ttl after their last
// access. A sweeper goroutine runs every interval until Close.
func NewMemoryCache(ttl, interval time.Duration) *MemoryCache {
	cache := &MemoryCache{
		items: make(map[string]*CacheItem),
		ttl:   ttl,
		stop:  make(chan struct{}),
	}

	if interval > 0 {
		go cache.cleanupLoop(interval)
	}

	return cache
}

// OnEvict registers a callback run for entries removed by expiry or Delete.
func (c *MemoryCache) OnEvict(fn func(key string, value interface{})) {
	c.mu.Lock()
	c.onEvict = fn
	c.mu.Unlock()
}

// Set stores a value
func (c *MemoryCache) Set(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = &CacheItem{
		Value:      value,
		Expiration: time.Now().Add(c.ttl),
	}
}

// Get retrieves a value and extends its lifetime
func (c *MemoryCache) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	item, exists := c.items[key]
	if !exists {
		c.mu.Unlock()
		return nil, false
	}
	now := time.Now()
	if now.After(item.Expiration) {
		delete(c.items, key)
		evict := c.onEvict
		c.mu.Unlock()
		if evict != nil {
			evict(key, item.Value)
		}
		return nil, false
	}
	item.Expiration = now.Add(c.ttl)
	c.mu.Unlock()

	return item.Value, true
}

// GetOrCreate returns the value under key, storing the result of create when
// there is none. create runs under the cache lock and must not call back into
// the cache.
func (c *MemoryCache) GetOrCreate(key string, create func() interface{}) interface{} {
	if v, ok := c.Get(key); ok {
		return v
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if item, ok := c.items[key]; ok {
		return item.Value
	}
	v := create()
	c.items[key] = &CacheItem{Value: v, Expiration: time.Now().Add(c.ttl)}
	return v
}

// Delete removes an item from cache
func (c *MemoryCache) Delete(key string) {
	c.mu.Lock()
	item, exists := c.items[key]
	delete(c.items, key)
	evict := c.onEvict
	c.mu.Unlock()

	if exists && evict != nil {
		evict(key, item.Value)
	}
}

// Clear removes all items from cache without running the evict callback
func (c *MemoryCache) Clear() {
	c.mu.Lock()
	c.items = make(map[string]*CacheItem)
	c.mu.Unlock()
}

// Size returns the number of items in cache
func (c *MemoryCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.items)
}

// Close stops the sweeper goroutine
func (c *MemoryCache) Close() {
	c.closeOnce.Do(func() { close(c.stop) })
}

func (c *MemoryCache) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.cleanup(time.Now())
		case <-c.stop:
			return
		}
	}
}

// cleanup removes expired items
func (c *MemoryCache) cleanup(now time.Time) {
	c.mu.Lock()
	var expired []*CacheItem
	var keys []string
	for key, item := range c.items {
		if now.After(item.Expiration) {
			delete(c.items, key)
			keys = append(keys, key)
			expired = append(expired, item)
		}
	}
	evict := c.onEvict
	c.mu.Unlock()

	if evict != nil {
		for i, key := range keys {
			evict(key, expired[i].Value)
		}
	}
}
