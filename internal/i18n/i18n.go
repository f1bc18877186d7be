package i18n

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

// LocalizerContextKey carries the request-scoped localizer.
type contextKey string

const LocalizerContextKey contextKey = "i18n.Localizer"

// SupportedLanguages is populated from the loaded message files.
var SupportedLanguages []string

// InitI18n loads the TOML message bundles.
func InitI18n(filePaths []string, defaultLang string) (*i18n.Bundle, error) {
	bundle := i18n.NewBundle(language.MustParse(defaultLang))
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)
	SupportedLanguages = make([]string, 0)

	for _, filePath := range filePaths {
		file, err := os.ReadFile(filePath)
		if err != nil {
			return nil, err
		}

		lang := extractLanguageFromPath(filePath)
		SupportedLanguages = append(SupportedLanguages, lang)

		_, err = bundle.ParseMessageFileBytes(file, filePath)
		if err != nil {
			return nil, err
		}
	}
	return bundle, nil
}

// extractLanguageFromPath parses the language tag out of a message file name
// (en.toml -> "en").
func extractLanguageFromPath(filePath string) string {
	baseName := filepath.Base(filePath)
	return strings.TrimSuffix(baseName, filepath.Ext(baseName))
}

// Localize resolves a message key through the request's localizer. Without a
// localizer on the context (background jobs, tests) the key itself is
// returned.
func Localize(ctx context.Context, key string) string {
	localizer, ok := ctx.Value(LocalizerContextKey).(*i18n.Localizer)
	if !ok {
		return key
	}

	msg, err := localizer.Localize(&i18n.LocalizeConfig{MessageID: key})
	if err != nil {
		return key
	}
	return msg
}
