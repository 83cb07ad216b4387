package utils

import (
	"fmt"
	"io/fs"

	"github.com/BurntSushi/toml"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

// SupportedLanguages are the locales shipped with the application, default
// first.
var SupportedLanguages = []string{"es", "en"}

var (
	Bundle *i18n.Bundle
	// Localizer speaks the default language.
	Localizer *i18n.Localizer
)

// InitI18n loads active.<lang>.toml for every supported language from fsys.
func InitI18n(fsys fs.FS) error {
	bundle := i18n.NewBundle(language.Spanish)
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)

	for _, lang := range SupportedLanguages {
		file := fmt.Sprintf("active.%s.toml", lang)
		if _, err := bundle.LoadMessageFileFS(fsys, file); err != nil {
			return fmt.Errorf("load %s messages: %w", lang, err)
		}
	}

	Bundle = bundle
	Localizer = i18n.NewLocalizer(Bundle, SupportedLanguages[0])

	Log.WithField("languages", len(SupportedLanguages)).Debug("translations loaded")
	return nil
}

func IsSupportedLanguage(lang string) bool {
	for _, l := range SupportedLanguages {
		if l == lang {
			return true
		}
	}
	return false
}

// GetLocalizer returns a localizer for lang, or for the default language when
// lang has no message file.
func GetLocalizer(lang string) *i18n.Localizer {
	if !IsSupportedLanguage(lang) {
		lang = SupportedLanguages[0]
	}
	return i18n.NewLocalizer(Bundle, lang)
}

func localize(localizer *i18n.Localizer, messageID string, data map[string]interface{}) (string, error) {
	if localizer == nil {
		localizer = Localizer
	}
	return localizer.Localize(&i18n.LocalizeConfig{MessageID: messageID, TemplateData: data})
}

// T translates a message ID. Missing ids come back unchanged.
func T(localizer *i18n.Localizer, messageID string) string {
	return TWithData(localizer, messageID, nil)
}

// TOr is T with an explicit fallback for unknown ids, used for values the
// leads API may add without a matching translation.
func TOr(localizer *i18n.Localizer, messageID, fallback string) string {
	msg, err := localize(localizer, messageID, nil)
	if err != nil {
		return fallback
	}
	return msg
}

func TWithData(localizer *i18n.Localizer, messageID string, data map[string]interface{}) string {
	msg, err := localize(localizer, messageID, data)
	if err != nil {
		Log.Debug("no translation for %q: %v", messageID, err)
		return messageID
	}
	return msg
}
