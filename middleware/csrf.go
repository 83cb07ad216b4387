package middleware

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"

	"github.com/gofiber/fiber/v2"

	"leadsdash/utils"
)

type CSRFConfig struct {
	TokenLength  int
	CookieName   string
	HeaderName   string
	FormField    string // hidden input carrying the token in HTML forms
	ContextKey   string
	CookieMaxAge int
	CookieSecure bool
}

func DefaultCSRFConfig() CSRFConfig {
	return CSRFConfig{
		TokenLength:  32,
		CookieName:   "csrf_token",
		HeaderName:   "X-CSRF-Token",
		FormField:    "_csrf",
		ContextKey:   "csrf",
		CookieMaxAge: 24 * 3600,
	}
}

// CSRFProtection issues a double-submit token on every request and checks it
// on unsafe methods. The token may come back in the header or, for plain
// HTML forms, in a hidden form field.
func CSRFProtection(config ...CSRFConfig) fiber.Handler {
	cfg := DefaultCSRFConfig()
	if len(config) > 0 {
		cfg = config[0]
	}

	return func(c *fiber.Ctx) error {
		stored := c.Cookies(cfg.CookieName)
		if stored == "" {
			c.Locals(cfg.ContextKey, issueCSRFToken(c, cfg))
		} else {
			c.Locals(cfg.ContextKey, stored)
		}

		if isSafeMethod(c.Method()) {
			return c.Next()
		}
		if !verifyCSRF(c, cfg, stored) {
			utils.Log.WithField("ip", c.IP()).Warn("CSRF check failed for %s %s", c.Method(), c.Path())
			return utils.ForbiddenError("error_csrf", nil)
		}
		return c.Next()
	}
}

func isSafeMethod(method string) bool {
	return method == fiber.MethodGet || method == fiber.MethodHead || method == fiber.MethodOptions
}

// verifyCSRF compares the submitted token against the one the browser holds
// in its cookie. A request without the cookie never passes.
func verifyCSRF(c *fiber.Ctx, cfg CSRFConfig, stored string) bool {
	if stored == "" {
		return false
	}
	sent := c.Get(cfg.HeaderName)
	if sent == "" {
		sent = c.FormValue(cfg.FormField)
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(sent)) == 1
}

func issueCSRFToken(c *fiber.Ctx, cfg CSRFConfig) string {
	token := generateToken(cfg.TokenLength)
	c.Cookie(&fiber.Cookie{
		Name:     cfg.CookieName,
		Value:    token,
		MaxAge:   cfg.CookieMaxAge,
		HTTPOnly: true,
		SameSite: "Strict",
		Secure:   cfg.CookieSecure,
	})
	return token
}

// CSRFToken returns the token to embed in forms rendered for this request.
func CSRFToken(c *fiber.Ctx) string {
	token, _ := c.Locals("csrf").(string)
	return token
}

func generateToken(length int) string {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
