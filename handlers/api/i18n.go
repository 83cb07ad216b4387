package api

import (
	"github.com/gofiber/fiber/v2"

	"leadsdash/utils"
)

// clientMessages are the strings the dashboard script needs
var clientMessages = []string{
	"copy",
	"copied",
	"loading",
	"error_load_failed",
	"error_save_failed",
	"error_not_authenticated",
	"error_404",
	"error_500",
}

// I18nHandler handles i18n-related requests
type I18nHandler struct{}

// GetTranslations returns translations for the client-side JavaScript
func (h *I18nHandler) GetTranslations(c *fiber.Ctx) error {
	lang := c.Params("lang")
	if !utils.IsSupportedLanguage(lang) {
		lang = utils.SupportedLanguages[0]
	}

	localizer := utils.GetLocalizer(lang)

	translations := make(map[string]string, len(clientMessages))
	for _, id := range clientMessages {
		translations[id] = utils.T(localizer, id)
	}

	return c.JSON(translations)
}
