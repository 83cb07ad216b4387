package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadsdash/auth"
	"leadsdash/locales"
	"leadsdash/metrics"
	"leadsdash/storage"
	"leadsdash/utils"
)

func TestMain(m *testing.M) {
	if err := utils.InitI18n(locales.FS); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

type memoryTokens struct{ token string }

func (m *memoryTokens) LoadToken() (string, error) { return m.token, nil }
func (m *memoryTokens) SaveToken(t string) error  { m.token = t; return nil }
func (m *memoryTokens) DeleteToken() error        { m.token = ""; return nil }

func newApp() *fiber.App {
	return fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if appErr, ok := utils.AsAppError(err); ok {
				code = appErr.Code
			}
			return c.Status(code).SendString(err.Error())
		},
	})
}

func body(t *testing.T, resp *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func cookieValue(resp *http.Response, name string) string {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

func TestCSRFProtection(t *testing.T) {
	app := newApp()
	app.Use(CSRFProtection())
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString(CSRFToken(c)) })
	app.Post("/", func(c *fiber.Ctx) error { return c.SendString("ok") })

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	token := cookieValue(resp, "csrf_token")
	require.NotEmpty(t, token)
	assert.Equal(t, token, body(t, resp))

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader("_csrf="+token))
	req.Header.Set("Content-Type", fiber.MIMEApplicationForm)
	req.AddCookie(&http.Cookie{Name: "csrf_token", Value: token})
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	req = httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("X-CSRF-Token", "wrong")
	req.AddCookie(&http.Cookie{Name: "csrf_token", Value: token})
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestLocaleMiddleware(t *testing.T) {
	app := newApp()
	app.Use(LocaleMiddleware("es"))
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(Lang(c) + ":" + utils.T(Localizer(c), "login_button"))
	})

	tests := []struct {
		name   string
		query  string
		cookie string
		accept string
		want   string
	}{
		{name: "default", want: "es:Iniciar sesión"},
		{name: "query", query: "?lang=en", want: "en:"},
		{name: "cookie", cookie: "en", want: "en:"},
		{name: "accept language", accept: "en-US,en;q=0.9", want: "en:"},
		{name: "unsupported falls back", query: "?lang=ja", accept: "ja", want: "es:"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/"+tt.query, nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: "lang", Value: tt.cookie})
			}
			if tt.accept != "" {
				req.Header.Set("Accept-Language", tt.accept)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(body(t, resp), tt.want))
		})
	}
}

func TestRateLimiter(t *testing.T) {
	limiter := NewRateLimiter(2, time.Minute)
	t.Cleanup(limiter.Close)
	app := newApp()
	app.Use(limiter.Handler())
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString("ok") })

	for i := 0; i < 2; i++ {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	}

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
	assert.Contains(t, body(t, resp), "error_rate_limited")
	assert.Equal(t, 1, limiter.Clients())
}

func TestRateLimiterDisabledAndClose(t *testing.T) {
	off := NewRateLimiter(0, time.Minute)
	app := newApp()
	app.Use(off.Handler())
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString("ok") })

	for i := 0; i < 5; i++ {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	}
	assert.Zero(t, off.Clients())
	assert.NotPanics(t, off.Close)

	on := NewRateLimiter(1, time.Minute)
	on.Close()
	assert.NotPanics(t, on.Close, "closing twice is harmless")
}

func newAuthApp(t *testing.T) *fiber.App {
	t.Helper()
	registry := auth.NewRegistry(auth.SourceFunc(func(string) auth.TokenStorage {
		return &memoryTokens{}
	}), time.Hour)
	t.Cleanup(registry.Close)

	app := newApp()
	app.Use(LocaleMiddleware("es"))
	app.Use(SessionLoader(session.New(), registry, "session_id"))
	app.Post("/signin", func(c *fiber.Ctx) error {
		return CurrentSession(c).Login("opaque", nil)
	})
	app.Get("/login", RedirectIfAuthenticated(), func(c *fiber.Ctx) error {
		return c.SendString("login page")
	})
	app.Get("/", RequireAuth(), func(c *fiber.Ctx) error {
		return c.SendString("dashboard " + SessionID(c))
	})
	app.Get("/api/leads", RequireAuth(), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{})
	})
	return app
}

func TestRequireAuth(t *testing.T) {
	app := newAuthApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))
	sid := cookieValue(resp, "session_id")
	require.NotEmpty(t, sid)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/leads", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, body(t, resp), "No estás autenticado.")

	withSession := func(method, target string) *http.Request {
		req := httptest.NewRequest(method, target, nil)
		req.AddCookie(&http.Cookie{Name: "session_id", Value: sid})
		return req
	}

	resp, err = app.Test(withSession(http.MethodPost, "/signin"))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = app.Test(withSession(http.MethodGet, "/"))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "dashboard "+sid, body(t, resp))

	resp, err = app.Test(withSession(http.MethodGet, "/login"))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))
}

// sealedStore fails to open the values listed in unreadable, the way an
// encrypted store does after its key changed.
type sealedStore struct {
	mu         sync.Mutex
	data       map[string][]byte
	unreadable map[string]bool
}

func (s *sealedStore) Get(key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unreadable[key] {
		return nil, storage.ErrDecrypt
	}
	return s.data[key], nil
}

func (s *sealedStore) Set(key string, val []byte, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = val
	return nil
}

func (s *sealedStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	delete(s.unreadable, key)
	return nil
}

func (s *sealedStore) Reset() error { return nil }
func (s *sealedStore) Close() error { return nil }

func TestSessionLoaderReplacesUnreadableSession(t *testing.T) {
	store := &sealedStore{
		data:       map[string][]byte{"stale": []byte("garbage")},
		unreadable: map[string]bool{"stale": true},
	}
	registry := auth.NewRegistry(auth.SourceFunc(func(string) auth.TokenStorage {
		return &memoryTokens{}
	}), time.Hour)
	t.Cleanup(registry.Close)

	app := newApp()
	app.Use(SessionLoader(session.New(session.Config{Storage: store}), registry, "session_id"))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString(SessionID(c)) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "stale"})
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	fresh := body(t, resp)
	assert.NotEqual(t, "stale", fresh)
	assert.Equal(t, fresh, cookieValue(resp, "session_id"))

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.NotContains(t, store.data, "stale")
	assert.Contains(t, store.data, fresh)
}

func TestIsAPIRequest(t *testing.T) {
	app := newApp()
	app.Get("/*", func(c *fiber.Ctx) error {
		if IsAPIRequest(c) {
			return c.SendString("api")
		}
		return c.SendString("page")
	})

	resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/api/x", nil))
	assert.Equal(t, "api", body(t, resp))

	req := httptest.NewRequest(http.MethodGet, "/leads", nil)
	req.Header.Set("HX-Request", "true")
	resp, _ = app.Test(req)
	assert.Equal(t, "api", body(t, resp))

	resp, _ = app.Test(httptest.NewRequest(http.MethodGet, "/leads", nil))
	assert.Equal(t, "page", body(t, resp))
}

func TestRequestMetrics(t *testing.T) {
	m := metrics.New()
	app := newApp()
	app.Use(RequestMetrics(m))
	app.Get("/leads/:id", func(c *fiber.Ctx) error { return c.SendString("ok") })

	_, err := app.Test(httptest.NewRequest(http.MethodGet, "/leads/1", nil))
	require.NoError(t, err)
	_, err = app.Test(httptest.NewRequest(http.MethodGet, "/leads/2", nil))
	require.NoError(t, err)

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	found := false
	for _, f := range families {
		if f.GetName() != "leadsdash_http_requests_total" {
			continue
		}
		for _, metric := range f.GetMetric() {
			for _, l := range metric.GetLabel() {
				if l.GetName() == "route" && l.GetValue() == "/leads/:id" {
					found = true
					assert.Equal(t, float64(2), metric.GetCounter().GetValue())
				}
			}
		}
	}
	assert.True(t, found)
}
