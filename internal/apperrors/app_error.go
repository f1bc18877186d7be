package apperrors

import (
	"net/http"
)

// AppError carries an HTTP status code alongside a message key that the
// error middleware resolves through i18n before responding.
type AppError struct {
	Code    int
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithCode creates a generic business error.
func WithCode(code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// BusinessError wraps a business-rule violation.
func BusinessError(code int, message string) *AppError {
	return WithCode(code, message)
}

// LinkNotFoundError is returned when a link identifier resolves to nothing.
// Terminal and user visible: the redirect path answers 404.
func LinkNotFoundError() *AppError {
	return WithCode(http.StatusNotFound, "error.link_not_found")
}

// InvalidRequestError wraps a parameter validation error.
func InvalidRequestError(message string) *AppError {
	return WithCode(http.StatusBadRequest, message)
}

// InvalidRequestErrorDefault is the default parameter validation error.
func InvalidRequestErrorDefault() *AppError {
	return WithCode(http.StatusBadRequest, "error.invalid_request")
}

// InvalidTriggerPayloadError is returned when an evaluation trigger payload
// fails schema validation. A misnamed or missing field fails loudly here
// instead of being silently treated as absent.
func InvalidTriggerPayloadError(cause error) *AppError {
	return &AppError{
		Code:    http.StatusBadRequest,
		Message: "error.invalid_trigger_payload",
		Cause:   cause,
	}
}

// SystemError wraps an internal error with a custom message.
func SystemError(message string) *AppError {
	return WithCode(http.StatusInternalServerError, message)
}

// SystemErrorDefault is the default internal error.
func SystemErrorDefault() *AppError {
	return WithCode(http.StatusInternalServerError, "error.system")
}
