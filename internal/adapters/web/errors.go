package web

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/corey/codeguard/internal/adapters/treesitter"
	"github.com/corey/codeguard/internal/app"
)

// APIError is the error body every endpoint returns on failure.
type APIError struct {
	Code    string `json:"code"`
	Status  int    `json:"-"`
	Message string `json:"message"`
}

func (e *APIError) Error() string { return e.Message }

// ErrorResponse wraps an APIError as {"error": {...}}.
type ErrorResponse struct {
	Error *APIError `json:"error"`
}

func badRequest(format string, args ...any) *APIError {
	return &APIError{Code: "BAD_REQUEST", Status: fiber.StatusBadRequest, Message: fmt.Sprintf(format, args...)}
}

func notFound(code, format string, args ...any) *APIError {
	return &APIError{Code: code, Status: fiber.StatusNotFound, Message: fmt.Sprintf(format, args...)}
}

// classify maps domain errors onto API errors. Unknown errors pass
// through unchanged and end up as 500s.
func classify(err error) error {
	switch {
	case errors.Is(err, app.ErrUnknownRule):
		return notFound("UNKNOWN_RULE", "%v", err)
	case errors.Is(err, treesitter.ErrUnsupportedLanguage):
		return notFound("UNSUPPORTED_LANGUAGE", "%v", err)
	}
	return err
}

func respondError(c *fiber.Ctx, e *APIError) error {
	return c.Status(e.Status).JSON(ErrorResponse{Error: e})
}

// errorHandler renders every error returned by a handler as JSON.
func errorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return respondError(c, apiErr)
		}
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return respondError(c, &APIError{Code: "HTTP_ERROR", Status: fiberErr.Code, Message: fiberErr.Message})
		}
		log.Error("request failed", zap.String("method", c.Method()), zap.String("path", c.Path()), zap.Error(err))
		return respondError(c, &APIError{
			Code:    "INTERNAL_ERROR",
			Status:  fiber.StatusInternalServerError,
			Message: "internal server error",
		})
	}
}
