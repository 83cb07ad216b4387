package storage

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

const tokenKeyPrefix = "token:"

// TokenStore keeps one bearer token per browser session in durable storage
type TokenStore struct {
	storage fiber.Storage
	ttl     time.Duration
}

// NewTokenStore stores tokens in storage with the given lifetime
func NewTokenStore(storage fiber.Storage, ttl time.Duration) *TokenStore {
	return &TokenStore{storage: storage, ttl: ttl}
}

// For binds the store to one session id
func (s *TokenStore) For(sessionID string) *BoundToken {
	return &BoundToken{store: s, key: tokenKeyPrefix + sessionID}
}

// BoundToken is the token slot of a single session
type BoundToken struct {
	store *TokenStore
	key   string
}

// LoadToken returns "" when no token is stored
func (b *BoundToken) LoadToken() (string, error) {
	raw, err := b.store.storage.Get(b.key)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// SaveToken replaces the stored token
func (b *BoundToken) SaveToken(token string) error {
	if token == "" {
		return b.DeleteToken()
	}
	return b.store.storage.Set(b.key, []byte(token), b.store.ttl)
}

// DeleteToken removes the stored token
func (b *BoundToken) DeleteToken() error {
	return b.store.storage.Delete(b.key)
}
