package leads

import (
	"time"

	"leadsdash/utils"
)

// Registry keeps one Controller per browser session in memory
type Registry struct {
	cache   *utils.MemoryCache
	svc     Service
	limit   int
	onStale func()
}

// NewRegistry creates controllers backed by svc with page size limit. Idle
// controllers are dropped after ttl.
func NewRegistry(svc Service, limit int, ttl time.Duration) *Registry {
	return &Registry{
		cache: utils.NewMemoryCache(ttl, time.Minute),
		svc:   svc,
		limit: limit,
	}
}

// OnStale is installed on every controller created afterwards
func (r *Registry) OnStale(fn func()) {
	r.onStale = fn
}

// Get returns the controller of sessionID, creating it on first use
func (r *Registry) Get(sessionID string) *Controller {
	v := r.cache.GetOrCreate(sessionID, func() interface{} {
		c := NewController(r.svc, r.limit)
		if r.onStale != nil {
			c.OnStale(r.onStale)
		}
		return c
	})
	return v.(*Controller)
}

// Drop forgets the controller of sessionID
func (r *Registry) Drop(sessionID string) {
	r.cache.Delete(sessionID)
}

// Size is the number of live controllers
func (r *Registry) Size() int {
	return r.cache.Size()
}

// Close stops the cache sweeper
func (r *Registry) Close() {
	r.cache.Close()
}
