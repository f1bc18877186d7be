package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	thirdPartyI18n "github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"

	"geolink-go/internal/i18n"
)

// I18nMiddleware negotiates the response language from Accept-Language and
// parks a localizer on the request context.
func I18nMiddleware(bundle *thirdPartyI18n.Bundle) gin.HandlerFunc {
	return func(c *gin.Context) {
		acceptLanguage := c.GetHeader("Accept-Language")
		tags, _, _ := language.ParseAcceptLanguage(acceptLanguage)
		lang := "en"
		for _, tag := range tags {
			if contains(i18n.SupportedLanguages, tag.String()) {
				lang = tag.String()
				break
			}
		}

		localizer := thirdPartyI18n.NewLocalizer(bundle, lang)
		c.Request = c.Request.WithContext(
			context.WithValue(c.Request.Context(), i18n.LocalizerContextKey, localizer))
		c.Next()
	}
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
