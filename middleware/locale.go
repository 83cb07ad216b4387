package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"

	"leadsdash/utils"
)

var languageMatcher = language.NewMatcher([]language.Tag{
	language.Spanish,
	language.English,
})

// LocaleMiddleware picks the language from the lang query parameter, the lang
// cookie or Accept-Language, in that order, falling back to defaultLang.
func LocaleMiddleware(defaultLang string) fiber.Handler {
	if !utils.IsSupportedLanguage(defaultLang) {
		defaultLang = utils.SupportedLanguages[0]
	}

	return func(c *fiber.Ctx) error {
		lang := c.Query("lang")
		if utils.IsSupportedLanguage(lang) {
			c.Cookie(&fiber.Cookie{
				Name:     "lang",
				Value:    lang,
				Expires:  time.Now().Add(365 * 24 * time.Hour),
				SameSite: "Lax",
			})
		} else {
			lang = c.Cookies("lang")
		}

		if !utils.IsSupportedLanguage(lang) {
			lang = defaultLang
			if accept := c.Get(fiber.HeaderAcceptLanguage); accept != "" {
				tag, _ := language.MatchStrings(languageMatcher, accept)
				if base, conf := tag.Base(); conf != language.No && utils.IsSupportedLanguage(base.String()) {
					lang = base.String()
				}
			}
		}

		c.Locals("localizer", utils.GetLocalizer(lang))
		c.Locals("lang", lang)

		utils.Log.Debug("Locale detected: %s for path: %s", lang, c.Path())

		return c.Next()
	}
}

// Localizer returns the request's localizer
func Localizer(c *fiber.Ctx) *i18n.Localizer {
	if l, ok := c.Locals("localizer").(*i18n.Localizer); ok {
		return l
	}
	return utils.Localizer
}

// Lang returns the request's language
func Lang(c *fiber.Ctx) string {
	if lang, ok := c.Locals("lang").(string); ok {
		return lang
	}
	return utils.SupportedLanguages[0]
}
