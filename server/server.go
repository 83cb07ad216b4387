// Package server assembles the Fiber application of the dashboard.
package server

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/google/uuid"

	"leadsdash/auth"
	"leadsdash/config"
	"leadsdash/handlers/api"
	"leadsdash/handlers/web"
	"leadsdash/leads"
	"leadsdash/metrics"
	"leadsdash/middleware"
	"leadsdash/storage"
	"leadsdash/templates"
	"leadsdash/utils"
)

// Server is the configured dashboard
type Server struct {
	App *fiber.App

	cfg      *config.Config
	storage  fiber.Storage
	metrics  *metrics.Metrics
	sessions *auth.Registry
	leads    *leads.Registry
	limiter  *middleware.RateLimiter
}

// New wires the handlers over store, which keeps browser sessions and their
// tokens
func New(cfg *config.Config, store fiber.Storage, m *metrics.Metrics) *Server {
	if m == nil {
		m = metrics.New()
	}
	loc := cfg.Location()
	ttl := cfg.Session.Expiration.Duration

	client := api.NewClient(cfg.API.BaseURL, cfg.API.Timeout.Duration, m)

	tokens := storage.NewTokenStore(store, ttl)
	sessions := auth.NewRegistry(auth.SourceFunc(func(id string) auth.TokenStorage {
		return tokens.For(id)
	}), ttl)
	leadRegistry := leads.NewRegistry(client, cfg.Server.PageSize, ttl)

	leadRegistry.OnStale(m.ObserveStale)
	sessions.OnLogout(func(id, reason string) {
		m.ObserveLogout(reason)
		leadRegistry.Drop(id)
		utils.Log.WithField("reason", reason).Info("session logged out")
	})

	sessionStore := session.New(session.Config{
		Storage:        store,
		Expiration:     ttl,
		KeyLookup:      "cookie:" + cfg.Session.CookieName,
		CookieSecure:   cfg.Session.CookieSecure,
		CookieHTTPOnly: true,
		CookieSameSite: "Lax",
		KeyGenerator:   uuid.NewString,
	})

	app := fiber.New(fiber.Config{
		Views:                 templates.NewEngine(loc),
		ViewsLayout:           "layouts/main",
		ReadTimeout:           cfg.Server.ReadTimeout.Duration,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})

	s := &Server{
		App:      app,
		cfg:      cfg,
		storage:  store,
		metrics:  m,
		sessions: sessions,
		leads:    leadRegistry,
	}

	app.Use(recover.New())
	app.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))
	app.Use(logger.New(logger.Config{
		Format: "${time} ${locals:requestid} ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(helmet.New(helmet.Config{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "SAMEORIGIN",
		ReferrerPolicy:        "no-referrer",
		ContentSecurityPolicy: "default-src 'self'; script-src 'self' 'unsafe-inline'; style-src 'self' 'unsafe-inline';",
	}))
	app.Use(compress.New())
	app.Use(middleware.RequestMetrics(m))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(m.Handler()))

	app.Use(middleware.LocaleMiddleware(cfg.Server.DefaultLanguage))
	app.Use(middleware.CSRFProtection(middleware.CSRFConfig{
		TokenLength:  32,
		CookieName:   "csrf_token",
		HeaderName:   "X-CSRF-Token",
		FormField:    "_csrf",
		ContextKey:   "csrf",
		CookieMaxAge: int(ttl / time.Second),
		CookieSecure: cfg.Session.CookieSecure,
	}))
	app.Use(middleware.SessionLoader(sessionStore, sessions, cfg.Session.CookieName))

	authHandler := web.NewAuthHandler(sessionStore, client, sessions)
	leadsHandler := web.NewLeadsHandler(leadRegistry, loc)
	apiLeads := api.NewLeadsHandler(client, leadRegistry, cfg.Server.PageSize, loc)
	i18nHandler := &api.I18nHandler{}

	s.limiter = middleware.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window.Duration)
	limiter := s.limiter.Handler()

	// Public routes
	guest := middleware.RedirectIfAuthenticated()
	app.Get("/login", guest, authHandler.ShowLogin)
	app.Post("/login", guest, limiter, authHandler.HandleLogin)
	app.Get("/register", guest, authHandler.ShowRegister)
	app.Post("/register", guest, limiter, authHandler.HandleRegister)
	app.Post("/logout", authHandler.HandleLogout)
	app.Get("/api/i18n/:lang", i18nHandler.GetTranslations)

	// Protected routes
	requireAuth := middleware.RequireAuth()
	app.Get("/", requireAuth, leadsHandler.Dashboard)

	leadRoutes := app.Group("/leads", requireAuth)
	leadRoutes.Post("/filters", leadsHandler.ApplyFilters)
	leadRoutes.Post("/filters/clear", leadsHandler.ClearFilters)
	leadRoutes.Post("/page/next", leadsHandler.NextPage)
	leadRoutes.Post("/page/prev", leadsHandler.PrevPage)
	leadRoutes.Post("/refresh", leadsHandler.Refresh)
	leadRoutes.Post("/edit/cancel", leadsHandler.CancelEdit)
	leadRoutes.Post("/:id/toggle", leadsHandler.ToggleRow)
	leadRoutes.Get("/:id/edit", leadsHandler.Edit)
	leadRoutes.Get("/:id/summary", leadsHandler.Summary)
	leadRoutes.Post("/:id", leadsHandler.Save)

	apiRoutes := app.Group("/api", requireAuth)
	apiRoutes.Get("/leads", apiLeads.ListLeads)
	apiRoutes.Put("/leads/:id", apiLeads.UpdateLead)
	apiRoutes.Get("/leads/:id/summary", apiLeads.Summary)

	// 404 Handler for undefined routes
	app.Use(func(c *fiber.Ctx) error {
		return utils.NotFoundError("error_404", nil)
	})

	return s
}

// Listen serves on the configured port until Shutdown
func (s *Server) Listen() error {
	addr := fmt.Sprintf(":%d", s.cfg.Server.Port)
	utils.Log.Info("Starting server on %s, leads API at %s", addr, s.cfg.API.BaseURL)
	return s.App.Listen(addr)
}

// Shutdown stops the listener and releases the registries and storage
func (s *Server) Shutdown() error {
	err := s.App.Shutdown()
	s.sessions.Close()
	s.leads.Close()
	s.limiter.Close()
	if cerr := s.storage.Close(); err == nil {
		err = cerr
	}
	return err
}
