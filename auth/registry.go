package auth

import (
	"time"

	"leadsdash/utils"
)

// SessionSource hands out the durable token slot of a browser session
type SessionSource interface {
	For(sessionID string) TokenStorage
}

// SourceFunc adapts a function to SessionSource
type SourceFunc func(sessionID string) TokenStorage

// For implements SessionSource
func (f SourceFunc) For(sessionID string) TokenStorage {
	return f(sessionID)
}

// Registry keeps one Session per browser session id in process memory.
type Registry struct {
	cache    *utils.MemoryCache
	source   SessionSource
	onLogout func(sessionID, reason string)
}

// NewRegistry keeps idle sessions in memory for ttl
func NewRegistry(source SessionSource, ttl time.Duration) *Registry {
	return &Registry{
		cache:  utils.NewMemoryCache(ttl, time.Minute),
		source: source,
	}
}

// OnLogout registers a hook run whenever any session logs out
func (r *Registry) OnLogout(fn func(sessionID, reason string)) {
	r.onLogout = fn
}

// Get returns the session for id, creating it from durable storage on first
// use.
func (r *Registry) Get(id string) *Session {
	v := r.cache.GetOrCreate(id, func() interface{} {
		s := NewSession(r.source.For(id))
		s.log = utils.Log.WithField("session", shortID(id))
		if r.onLogout != nil {
			s.OnLogout(func(reason string) { r.onLogout(id, reason) })
		}
		return s
	})
	return v.(*Session)
}

// Forget drops the in-memory session for id
func (r *Registry) Forget(id string) {
	r.cache.Delete(id)
}

// Close stops the cache sweeper
func (r *Registry) Close() {
	r.cache.Close()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
