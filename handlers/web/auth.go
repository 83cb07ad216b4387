package web

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"

	"leadsdash/auth"
	"leadsdash/forms"
	"leadsdash/handlers/api"
	"leadsdash/middleware"
	"leadsdash/models"
	"leadsdash/utils"
)

// Authenticator is the part of the leads API the auth screens use
type Authenticator interface {
	Authenticate(ctx context.Context, creds models.Credentials) (*api.TokenResponse, error)
	Register(ctx context.Context, creds models.Credentials) error
}

// AuthHandler serves the login, registration and logout screens
type AuthHandler struct {
	store    *session.Store
	client   Authenticator
	sessions *auth.Registry
}

// NewAuthHandler creates a new instance of AuthHandler
func NewAuthHandler(store *session.Store, client Authenticator, sessions *auth.Registry) *AuthHandler {
	return &AuthHandler{
		store:    store,
		client:   client,
		sessions: sessions,
	}
}

// ShowLogin renders the login page
func (h *AuthHandler) ShowLogin(c *fiber.Ctx) error {
	return render(c, fiber.StatusOK, "login", fiber.Map{
		"Form": forms.NewLoginForm(),
	})
}

// HandleLogin exchanges the submitted credentials for a token
func (h *AuthHandler) HandleLogin(c *fiber.Ctx) error {
	form := forms.NewLoginForm()
	form.Bind(formValues(c))
	if !form.Validate(middleware.Localizer(c)) {
		return render(c, fiber.StatusBadRequest, "login", fiber.Map{"Form": form})
	}

	creds := models.Credentials{Username: form.Value("username"), Password: form.Value("password")}
	resp, err := h.client.Authenticate(c.UserContext(), creds)
	if err != nil {
		status, msg := loginFailure(err)
		utils.Log.WithField("username", creds.Username).Warn("login failed: %v", err)
		return render(c, status, "login", fiber.Map{"Form": form, "Error": msg})
	}

	if err := middleware.CurrentSession(c).Login(resp.AccessToken, resp.User); err != nil {
		return utils.InternalServerError("error_500", err)
	}

	utils.Log.WithField("username", creds.Username).Info("user logged in")
	return c.Redirect("/")
}

// loginFailure maps an authentication error to a status and message id.
// Rejected credentials and unreachable servers get different messages.
func loginFailure(err error) (int, string) {
	var apiErr *api.APIError
	if errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500 {
		return fiber.StatusUnauthorized, "error_login_failed"
	}
	return fiber.StatusBadGateway, "error_login_unavailable"
}

// ShowRegister renders the registration page
func (h *AuthHandler) ShowRegister(c *fiber.Ctx) error {
	return render(c, fiber.StatusOK, "register", fiber.Map{
		"Form": forms.NewRegisterForm(),
	})
}

// HandleRegister creates an account that an administrator still has to
// activate
func (h *AuthHandler) HandleRegister(c *fiber.Ctx) error {
	form := forms.NewRegisterForm()
	form.Bind(formValues(c))
	if !form.Validate(middleware.Localizer(c)) {
		return render(c, fiber.StatusBadRequest, "register", fiber.Map{"Form": form})
	}

	creds := models.Credentials{Username: form.Value("username"), Password: form.Value("password")}
	if err := h.client.Register(c.UserContext(), creds); err != nil {
		utils.Log.WithField("username", creds.Username).Warn("registration failed: %v", err)

		var apiErr *api.APIError
		if errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500 {
			return render(c, fiber.StatusBadRequest, "register", fiber.Map{"Form": form, "Error": "error_register_failed"})
		}
		return render(c, fiber.StatusBadGateway, "register", fiber.Map{"Form": form, "Error": "error_register_unavailable"})
	}

	utils.Log.WithField("username", creds.Username).Info("user registered")
	return render(c, fiber.StatusOK, "register", fiber.Map{"Success": true})
}

// HandleLogout ends the session and sends the browser to the login page
func (h *AuthHandler) HandleLogout(c *fiber.Ctx) error {
	id := middleware.SessionID(c)
	if s := middleware.CurrentSession(c); s != nil {
		if err := s.Logout(); err != nil {
			utils.Log.Warn("failed to clear session token: %v", err)
		}
	}
	h.sessions.Forget(id)

	sess, err := h.store.Get(c)
	if err == nil {
		if err := sess.Destroy(); err != nil {
			utils.Log.Warn("failed to destroy session: %v", err)
		}
	}

	return c.Redirect("/login")
}
