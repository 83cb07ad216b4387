package server

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"leadsdash/middleware"
	"leadsdash/utils"
)

// errorHandler renders failures as the error page, or as JSON for API and
// htmx callers. AppError messages are message ids.
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "error_500"

	var fe *fiber.Error
	if appErr, ok := utils.AsAppError(err); ok {
		code = appErr.Code
		message = appErr.Message
	} else if errors.As(err, &fe) {
		code = fe.Code
		message = fe.Message
		if code == fiber.StatusNotFound {
			message = "error_404"
		}
	}

	log := utils.Log.WithField("path", c.Path())
	if rid, ok := c.Locals("requestid").(string); ok {
		log = log.WithField("request_id", rid)
	}
	if code >= fiber.StatusInternalServerError {
		log.Error("Application error: %v", err)
	} else {
		log.Debug("Request failed with %d: %v", code, err)
	}

	localizer := middleware.Localizer(c)
	text := utils.TOr(localizer, message, message)

	if middleware.IsAPIRequest(c) {
		return c.Status(code).JSON(fiber.Map{
			"error": text,
		})
	}

	return c.Status(code).Render("error", fiber.Map{
		"Loc":   localizer,
		"Lang":  middleware.Lang(c),
		"CSRF":  middleware.CSRFToken(c),
		"Error": text,
		"Code":  code,
	})
}
