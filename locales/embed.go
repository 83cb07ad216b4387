// Package locales ships the translation files loaded by utils.InitI18n.
package locales

import "embed"

// FS holds active.<lang>.toml for every supported language.
//
//go:embed *.toml
var FS embed.FS
