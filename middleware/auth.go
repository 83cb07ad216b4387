package middleware

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"

	"leadsdash/auth"
	"leadsdash/storage"
	"leadsdash/utils"
)

const (
	sessionIDKey = "session_id"
	authKey      = "auth"
)

// IsAPIRequest reports whether the caller expects JSON instead of a page
func IsAPIRequest(c *fiber.Ctx) bool {
	if c == nil {
		return false
	}
	if c.Get("HX-Request") != "" {
		return true
	}
	return strings.HasPrefix(c.Path(), "/api")
}

// SessionLoader attaches the browser session and its auth.Session to the
// request. A fresh session is saved so the cookie reaches the browser.
// cookieName is the cookie the store reads the session id from; a stored
// session that no longer decrypts under it is discarded and replaced.
func SessionLoader(store *session.Store, registry *auth.Registry, cookieName string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := store.Get(c)
		if errors.Is(err, storage.ErrDecrypt) {
			utils.Log.WithField("ip", c.IP()).Warn("discarding unreadable session: %v", err)
			if derr := store.Delete(c.Cookies(cookieName)); derr != nil {
				return utils.InternalServerError("error_500", derr)
			}
			sess, err = store.Get(c)
		}
		if err != nil {
			return utils.InternalServerError("error_500", err)
		}

		// Save hands the session back to fiber's pool, so read the id first.
		id := sess.ID()
		if sess.Fresh() {
			sess.Set("created_at", time.Now().Unix())
			if err := sess.Save(); err != nil {
				return utils.InternalServerError("error_500", err)
			}
		}

		c.Locals(sessionIDKey, id)
		c.Locals(authKey, registry.Get(id))

		return c.Next()
	}
}

// SessionID returns the browser session id of the request
func SessionID(c *fiber.Ctx) string {
	id, _ := c.Locals(sessionIDKey).(string)
	return id
}

// CurrentSession returns the auth session of the request. It is nil when
// SessionLoader did not run.
func CurrentSession(c *fiber.Ctx) *auth.Session {
	s, _ := c.Locals(authKey).(*auth.Session)
	return s
}

// RequireAuth logs out expired tokens and turns away anonymous callers:
// pages are redirected to /login, API callers get 401.
func RequireAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		s := CurrentSession(c)
		if s != nil {
			s.EnforceExpiry(time.Now())
		}

		if s == nil || !s.IsAuthenticated() {
			if IsAPIRequest(c) {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"error": utils.T(Localizer(c), "error_not_authenticated"),
				})
			}
			return c.Redirect("/login")
		}

		return c.Next()
	}
}

// RedirectIfAuthenticated sends signed-in users away from the login and
// registration screens
func RedirectIfAuthenticated() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if s := CurrentSession(c); s != nil && s.IsAuthenticated() {
			return c.Redirect("/")
		}
		return c.Next()
	}
}
