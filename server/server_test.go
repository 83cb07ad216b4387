package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadsdash/config"
	"leadsdash/locales"
	"leadsdash/metrics"
	"leadsdash/utils"
)

func TestMain(m *testing.M) {
	if err := utils.InitI18n(locales.FS); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

// fakeAPI stands in for the remote leads API
type fakeAPI struct {
	mu         sync.Mutex
	token      string
	rejectList bool
	failSave   bool
	listCalls  int
	leads      []map[string]interface{}
}

func newFakeAPI(t *testing.T) (*fakeAPI, *httptest.Server) {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "ana",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	f := &fakeAPI{
		token: tok,
		leads: []map[string]interface{}{
			{"id": "5491100", "name": "Ana", "is_active": true, "status": "contacted", "created_at": "2024-03-05T12:00:00Z",
				"collected_data": map[string]interface{}{"identification": "20123456789"}},
			{"id": "5491101", "name": "Bruno", "is_active": false, "status": "quoted", "created_at": "2024-03-06T12:00:00Z",
				"collected_data": nil},
		},
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")

		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/token":
			_ = r.ParseForm()
			if r.PostForm.Get("username") != "ana" || r.PostForm.Get("password") != "secret" {
				w.WriteHeader(http.StatusUnauthorized)
				io.WriteString(w, `{"detail":"Incorrect username or password"}`)
				return
			}
			json.NewEncoder(w).Encode(map[string]interface{}{
				"access_token": f.token,
				"token_type":   "bearer",
				"user":         map[string]interface{}{"id": 1, "username": "ana"},
			})
		case r.Method == http.MethodPost && r.URL.Path == "/register":
			w.WriteHeader(http.StatusCreated)
			io.WriteString(w, `{}`)
		case r.Method == http.MethodGet && r.URL.Path == "/leads":
			f.listCalls++
			if f.rejectList || r.Header.Get("Authorization") != "Bearer "+f.token {
				w.WriteHeader(http.StatusUnauthorized)
				io.WriteString(w, `{"detail":"Could not validate credentials"}`)
				return
			}
			json.NewEncoder(w).Encode(map[string]interface{}{"leads": f.leads, "total": len(f.leads)})
		case r.Method == http.MethodPut && strings.HasPrefix(r.URL.Path, "/leads/"):
			if f.failSave {
				w.WriteHeader(http.StatusInternalServerError)
				io.WriteString(w, `{"detail":"database unavailable"}`)
				return
			}
			var body map[string]interface{}
			_ = json.NewDecoder(r.Body).Decode(&body)
			id := strings.TrimPrefix(r.URL.Path, "/leads/")
			for _, l := range f.leads {
				if l["id"] == id {
					l["name"] = body["name"].(string) + " (saved)"
					l["is_active"] = body["is_active"]
					l["status"] = body["status"]
					json.NewEncoder(w).Encode(l)
					return
				}
			}
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeAPI) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls
}

// browser keeps cookies between requests to the app
type browser struct {
	t       *testing.T
	srv     *Server
	cookies map[string]string
}

func (b *browser) do(method, target string, form url.Values) *http.Response {
	b.t.Helper()
	var body io.Reader
	if form != nil {
		form.Set("_csrf", b.cookies["csrf_token"])
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for name, value := range b.cookies {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}

	resp, err := b.srv.App.Test(req, -1)
	require.NoError(b.t, err)
	for _, c := range resp.Cookies() {
		if c.MaxAge < 0 || c.Value == "" || (!c.Expires.IsZero() && c.Expires.Before(time.Now())) {
			delete(b.cookies, c.Name)
			continue
		}
		b.cookies[c.Name] = c.Value
	}
	return resp
}

func (b *browser) text(resp *http.Response) string {
	b.t.Helper()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(b.t, err)
	return string(raw)
}

func testConfig(t *testing.T, apiURL string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.API.BaseURL = apiURL
	cfg.Session.DataDir = t.TempDir()
	cfg.Session.EncryptionKey = strings.Repeat("ab", 32)
	cfg.RateLimit.Requests = 100
	return cfg
}

func newTestServer(t *testing.T) (*Server, *fakeAPI, *metrics.Metrics) {
	t.Helper()
	fake, upstream := newFakeAPI(t)
	cfg := testConfig(t, upstream.URL)

	store, err := OpenStorage(cfg)
	require.NoError(t, err)

	m := metrics.New()
	srv := New(cfg, store, m)
	t.Cleanup(func() { srv.Shutdown() })
	return srv, fake, m
}

func login(t *testing.T, b *browser) {
	t.Helper()
	resp := b.do(http.MethodGet, "/login", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = b.do(http.MethodPost, "/login", url.Values{"username": {"ana"}, "password": {"secret"}})
	require.Equal(t, http.StatusFound, resp.StatusCode)
	require.Equal(t, "/", resp.Header.Get("Location"))
}

func TestAnonymousIsSentToLogin(t *testing.T) {
	srv, fake, _ := newTestServer(t)
	b := &browser{t: t, srv: srv, cookies: map[string]string{}}

	resp := b.do(http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))

	resp = b.do(http.MethodGet, "/api/leads", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, 0, fake.calls())
}

func TestLoginFailureShowsMessage(t *testing.T) {
	srv, _, _ := newTestServer(t)
	b := &browser{t: t, srv: srv, cookies: map[string]string{}}
	b.do(http.MethodGet, "/login", nil)

	resp := b.do(http.MethodPost, "/login", url.Values{"username": {"ana"}, "password": {"nope"}})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, b.text(resp), "Usuario o contraseña incorrectos.")

	resp = b.do(http.MethodPost, "/login", url.Values{"username": {""}, "password": {""}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, b.text(resp), "El usuario es requerido")
}

func TestLoginWithoutCSRFTokenIsRejected(t *testing.T) {
	srv, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader("username=ana&password=secret"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := srv.App.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestRegister(t *testing.T) {
	srv, _, _ := newTestServer(t)
	b := &browser{t: t, srv: srv, cookies: map[string]string{}}
	b.do(http.MethodGet, "/register", nil)

	resp := b.do(http.MethodPost, "/register", url.Values{"username": {"new"}, "password": {"pw"}})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, b.text(resp), "¡Registro Exitoso!")
}

func TestDashboardFlow(t *testing.T) {
	srv, fake, _ := newTestServer(t)
	b := &browser{t: t, srv: srv, cookies: map[string]string{}}
	login(t, b)

	resp := b.do(http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	page := b.text(resp)
	assert.Contains(t, page, "Ana")
	assert.Contains(t, page, "Contactado 👋")
	assert.Contains(t, page, "Cotizado 🤞🏼")
	assert.Equal(t, 1, fake.calls())

	// unchanged inputs do not refetch
	b.do(http.MethodGet, "/", nil)
	assert.Equal(t, 1, fake.calls())

	resp = b.do(http.MethodGet, "/leads/5491100/summary", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	summary := b.text(resp)
	assert.True(t, strings.HasPrefix(summary, "📞 Teléfono: 5491100\n👤Nombre: Ana\n🤖 Bot: 🟢\n"))
	assert.Contains(t, summary, "🪪 DNI/CUIT/CUIL: 20123456789")

	resp = b.do(http.MethodGet, "/leads/5491100/edit", nil)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Contains(t, b.text(b.do(http.MethodGet, "/", nil)), "Editar Lead")

	resp = b.do(http.MethodPost, "/leads/5491100", url.Values{"name": {"Ana María"}, "status": {"completed"}})
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	page = b.text(b.do(http.MethodGet, "/", nil))
	assert.Contains(t, page, "Ana María (saved)")
	assert.NotContains(t, page, "Editar Lead")
	assert.Equal(t, 1, fake.calls(), "save replaces the row without a refetch")

	resp = b.do(http.MethodPost, "/leads/filters", url.Values{"name": {"Bru"}, "is_active": {"false"}})
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	b.do(http.MethodGet, "/", nil)
	assert.Equal(t, 2, fake.calls())
}

func TestRejectedTokenLogsOut(t *testing.T) {
	srv, fake, m := newTestServer(t)
	b := &browser{t: t, srv: srv, cookies: map[string]string{}}
	login(t, b)

	fake.mu.Lock()
	fake.rejectList = true
	fake.mu.Unlock()

	resp := b.do(http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))

	resp = b.do(http.MethodGet, "/", nil)
	assert.Equal(t, "/login", resp.Header.Get("Location"))

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	var rejected float64
	for _, f := range families {
		if f.GetName() == "leadsdash_logouts_total" {
			for _, metric := range f.GetMetric() {
				rejected += metric.GetCounter().GetValue()
			}
		}
	}
	assert.Equal(t, 1.0, rejected)
}

func TestLogout(t *testing.T) {
	srv, _, _ := newTestServer(t)
	b := &browser{t: t, srv: srv, cookies: map[string]string{}}
	login(t, b)

	resp := b.do(http.MethodPost, "/logout", url.Values{})
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))

	resp = b.do(http.MethodGet, "/", nil)
	assert.Equal(t, "/login", resp.Header.Get("Location"))
}

func TestLogoutRequiresPost(t *testing.T) {
	srv, _, _ := newTestServer(t)
	b := &browser{t: t, srv: srv, cookies: map[string]string{}}
	login(t, b)

	resp := b.do(http.MethodGet, "/logout", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = b.do(http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode, "still signed in")
}

func TestSessionFromOldKeyStartsOver(t *testing.T) {
	_, upstream := newFakeAPI(t)
	cfg := testConfig(t, upstream.URL)

	store, err := OpenStorage(cfg)
	require.NoError(t, err)
	first := New(cfg, store, metrics.New())
	b := &browser{t: t, srv: first, cookies: map[string]string{}}
	login(t, b)
	first.Shutdown()

	cfg.Session.EncryptionKey = strings.Repeat("cd", 32)
	store, err = OpenStorage(cfg)
	require.NoError(t, err)
	second := New(cfg, store, metrics.New())
	t.Cleanup(func() { second.Shutdown() })
	b.srv = second

	resp := b.do(http.MethodGet, "/login", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = b.do(http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))

	login(t, b)
	resp = b.do(http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSaveFailureKeepsEditModal(t *testing.T) {
	srv, fake, _ := newTestServer(t)
	b := &browser{t: t, srv: srv, cookies: map[string]string{}}
	login(t, b)
	b.do(http.MethodGet, "/", nil)

	resp := b.do(http.MethodGet, "/leads/5491101/edit", nil)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	fake.mu.Lock()
	fake.failSave = true
	fake.mu.Unlock()

	resp = b.do(http.MethodPost, "/leads/5491101", url.Values{"name": {"Bruno Nuevo"}, "status": {"quoted"}})
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)

	page := b.text(b.do(http.MethodGet, "/", nil))
	assert.Contains(t, page, "Error al guardar el lead")
	assert.Contains(t, page, "Editar Lead")
	assert.Contains(t, page, `value="Bruno Nuevo"`)
	assert.Contains(t, page, "<td>Bruno</td>", "row unchanged")
}

func TestUnknownStatusSurvivesNameEdit(t *testing.T) {
	srv, fake, _ := newTestServer(t)
	fake.mu.Lock()
	fake.leads[1]["status"] = "archived"
	fake.leads[1]["name"] = "Bruno <b@mail.com>"
	fake.mu.Unlock()
	b := &browser{t: t, srv: srv, cookies: map[string]string{}}
	login(t, b)

	page := b.text(b.do(http.MethodGet, "/", nil))
	assert.Contains(t, page, "Bruno &lt;b@mail.com&gt;")

	resp := b.do(http.MethodGet, "/leads/5491101/summary", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, b.text(resp), "👤Nombre: Bruno <b@mail.com>\n")

	b.do(http.MethodGet, "/leads/5491101/edit", nil)
	page = b.text(b.do(http.MethodGet, "/", nil))
	assert.Contains(t, page, `<option value="archived" selected>archived</option>`)

	resp = b.do(http.MethodPost, "/leads/5491101", url.Values{"name": {"Bruno B"}, "status": {"archived"}})
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)

	fake.mu.Lock()
	status := fake.leads[1]["status"]
	fake.mu.Unlock()
	assert.Equal(t, "archived", status)
	assert.Contains(t, b.text(b.do(http.MethodGet, "/", nil)), "Bruno B (saved)")
}

func TestJSONAPI(t *testing.T) {
	srv, _, _ := newTestServer(t)
	b := &browser{t: t, srv: srv, cookies: map[string]string{}}
	login(t, b)

	resp := b.do(http.MethodGet, "/api/leads?limit=5&name=Ana", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var page struct {
		Leads []map[string]interface{} `json:"leads"`
		Total int                      `json:"total"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&page))
	assert.Equal(t, 2, page.Total)

	resp = b.do(http.MethodGet, "/api/leads?limit=0", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = b.do(http.MethodGet, "/api/i18n/en", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var strs map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&strs))
	assert.NotEmpty(t, strs["copied"])
}

func TestOpsEndpointsAndNotFound(t *testing.T) {
	srv, _, _ := newTestServer(t)
	b := &browser{t: t, srv: srv, cookies: map[string]string{}}

	resp := b.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, b.text(resp), `"status":"ok"`)

	b.do(http.MethodGet, "/login", nil)
	resp = b.do(http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, b.text(resp), "leadsdash_http_requests_total")

	resp = b.do(http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, b.text(resp), "404 - Página no encontrada")
}
