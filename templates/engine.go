// Package templates holds the embedded HTML views of the dashboard.
package templates

import (
	"embed"
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/template/html/v2"
	"github.com/nicksnyder/go-i18n/v2/i18n"

	"leadsdash/leads"
	"leadsdash/utils"
)

//go:embed layouts/*.html partials/*.html *.html
var FS embed.FS

// NewEngine builds the view engine. Dates are shown in loc.
func NewEngine(loc *time.Location) *html.Engine {
	engine := html.NewFileSystem(http.FS(FS), ".html")

	engine.AddFunc("t", func(localizer *i18n.Localizer, messageID string) string {
		return utils.T(localizer, messageID)
	})
	engine.AddFunc("tWithData", func(localizer *i18n.Localizer, messageID string, data map[string]interface{}) string {
		return utils.TWithData(localizer, messageID, data)
	})
	engine.AddFunc("statusLabel", func(localizer *i18n.Localizer, status string) string {
		return leads.StatusLabel(status, localizer)
	})
	engine.AddFunc("dataLabel", func(localizer *i18n.Localizer, key string) string {
		return leads.DataLabel(key, localizer)
	})
	engine.AddFunc("formatDate", func(localizer *i18n.Localizer, createdAt string) string {
		return leads.FormatDate(createdAt, localizer, loc)
	})
	engine.AddFunc("dict", dict)
	engine.AddFunc("add", func(a, b int) int { return a + b })

	return engine
}

func dict(pairs ...interface{}) (map[string]interface{}, error) {
	if len(pairs)%2 != 0 {
		return nil, errors.New("dict: odd number of arguments")
	}
	m := make(map[string]interface{}, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		key, ok := pairs[i].(string)
		if !ok {
			return nil, errors.New("dict: keys must be strings")
		}
		m[key] = pairs[i+1]
	}
	return m, nil
}
