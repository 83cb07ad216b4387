package utils

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

// AppError is an error that knows which HTTP status to answer with. Message
// is an i18n message id; the error handler localizes it for the client while
// Err only ever reaches the log.
type AppError struct {
	Code    int
	Message string
	Err     error
}

func NewAppError(code int, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// AsAppError extracts an *AppError from err's chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	ok := errors.As(err, &appErr)
	return appErr, ok
}

func BadRequestError(message string, err error) *AppError {
	return NewAppError(fiber.StatusBadRequest, message, err)
}

func ForbiddenError(message string, err error) *AppError {
	return NewAppError(fiber.StatusForbidden, message, err)
}

func NotFoundError(message string, err error) *AppError {
	return NewAppError(fiber.StatusNotFound, message, err)
}

func InternalServerError(message string, err error) *AppError {
	return NewAppError(fiber.StatusInternalServerError, message, err)
}

// BadGatewayError reports a failure of the upstream leads API.
func BadGatewayError(message string, err error) *AppError {
	return NewAppError(fiber.StatusBadGateway, message, err)
}
