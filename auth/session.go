// Package auth holds the per-browser session: the bearer token issued by the
// leads API and the user it belongs to.
package auth

import (
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"leadsdash/models"
	"leadsdash/utils"
)

// TokenStorage is the durable home of a session token
type TokenStorage interface {
	LoadToken() (string, error)
	SaveToken(token string) error
	DeleteToken() error
}

// Session holds the current token and user of one browser session. The token
// is mirrored to durable storage; the user lives in memory only, so after a
// restart a session has a token but no user.
type Session struct {
	mu      sync.RWMutex
	token   string
	user    *models.User
	storage TokenStorage
	log     *utils.Logger

	onLogout func(reason string)
}

// NewSession reads the token from storage once and returns the session.
// A storage read error leaves the session unauthenticated.
func NewSession(storage TokenStorage) *Session {
	s := &Session{storage: storage, log: utils.Log}

	token, err := storage.LoadToken()
	if err != nil {
		s.log.Warn("failed to load session token: %v", err)
		token = ""
	}
	s.token = token

	return s
}

// OnLogout registers a hook run after every logout with its reason
// ("user", "expired", "rejected").
func (s *Session) OnLogout(fn func(reason string)) {
	s.mu.Lock()
	s.onLogout = fn
	s.mu.Unlock()
}

// Login stores token durably and in memory and keeps user in memory. The
// token format is not checked here.
func (s *Session) Login(token string, user *models.User) error {
	if err := s.storage.SaveToken(token); err != nil {
		return err
	}

	s.mu.Lock()
	s.token = token
	s.user = user
	s.mu.Unlock()
	return nil
}

// Logout clears the token from storage and memory and forgets the user
func (s *Session) Logout() error {
	return s.logout("user")
}

func (s *Session) logout(reason string) error {
	s.mu.Lock()
	s.token = ""
	s.user = nil
	hook := s.onLogout
	s.mu.Unlock()

	err := s.storage.DeleteToken()
	if hook != nil {
		hook(reason)
	}
	return err
}

// Reject logs the session out because the API refused its token
func (s *Session) Reject() error {
	return s.logout("rejected")
}

// Token returns the current token or ""
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// User returns the logged in user, nil when unknown
func (s *Session) User() *models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// IsAuthenticated reports whether a token is present
func (s *Session) IsAuthenticated() bool {
	return s.Token() != ""
}

// EnforceExpiry logs the session out when its token carries an exp claim at
// or before now, and reports whether it did. Tokens without a readable expiry
// are left alone.
func (s *Session) EnforceExpiry(now time.Time) bool {
	token := s.Token()
	if token == "" {
		return false
	}

	exp, ok := DecodeExpiry(token)
	if !ok || now.Before(exp) {
		return false
	}

	s.mu.Lock()
	// a concurrent login may have replaced the token meanwhile
	if s.token != token {
		s.mu.Unlock()
		return false
	}
	s.mu.Unlock()

	s.log.Info("session token expired at %s", exp.Format(time.RFC3339))
	if err := s.logout("expired"); err != nil {
		s.log.Warn("failed to clear expired token: %v", err)
	}
	return true
}

// DecodeExpiry reads the exp claim of a JWT without verifying its signature.
// It reports false for malformed tokens and tokens without exp.
func DecodeExpiry(token string) (time.Time, bool) {
	if token == "" {
		return time.Time{}, false
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		utils.Log.Debug("cannot decode token payload: %v", err)
		return time.Time{}, false
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		utils.Log.Debug("cannot read token expiry: %v", err)
		return time.Time{}, false
	}
	if exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
