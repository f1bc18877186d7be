package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"geolink-go/internal/apperrors"
	"geolink-go/internal/i18n"
	"geolink-go/response"
)

// GlobalErrorMiddleware translates the first AppError attached to the
// context into a JSON envelope, resolving the message key through i18n.
func GlobalErrorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			for _, err := range c.Errors {
				var appErr *apperrors.AppError
				if errors.As(err.Err, &appErr) {
					localized := *appErr
					localized.Message = i18n.Localize(c.Request.Context(), appErr.Message)
					c.AbortWithStatusJSON(appErr.Code, response.ErrorFromAppError(&localized))
					return
				}
			}

			c.AbortWithStatusJSON(http.StatusInternalServerError,
				response.Error(i18n.Localize(c.Request.Context(), "error.system")))
			return
		}
	}
}
