package web

import (
	"github.com/gofiber/fiber/v2"

	"leadsdash/middleware"
)

// pageData merges data with the values every layout needs
func pageData(c *fiber.Ctx, data fiber.Map) fiber.Map {
	out := fiber.Map{
		"Loc":  middleware.Localizer(c),
		"Lang": middleware.Lang(c),
		"CSRF": middleware.CSRFToken(c),
	}
	if s := middleware.CurrentSession(c); s != nil {
		out["Authenticated"] = s.IsAuthenticated()
		if u := s.User(); u != nil {
			out["User"] = u
		}
	}
	for k, v := range data {
		out[k] = v
	}
	return out
}

func render(c *fiber.Ctx, status int, view string, data fiber.Map) error {
	return c.Status(status).Render(view, pageData(c, data))
}

// formValues adapts the request form to forms.Form.Bind
func formValues(c *fiber.Ctx) func(string) string {
	return func(key string) string {
		return c.FormValue(key)
	}
}
