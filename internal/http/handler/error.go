package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"photostore/internal/http/middleware"
	"photostore/internal/quota"
	"photostore/internal/service"
	"photostore/internal/storage"
)

// errorPayload defines the standardized error response body.
type errorPayload struct {
	RequestID string        `json:"request_id"`
	Error     errorEnvelope `json:"error"`
}

type errorEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// requestIDFromCtx extracts request_id previously stored by middleware.RequestID.
func requestIDFromCtx(c *fiber.Ctx) string {
	if v := c.Locals(middleware.RequestIDLocalKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// writeError writes a standardized JSON error response without leaking internal errors.
func writeError(c *fiber.Ctx, status int, code, message string) error {
	res := errorPayload{
		RequestID: requestIDFromCtx(c),
		Error: errorEnvelope{
			Code:    code,
			Message: message,
		},
	}
	return c.Status(status).JSON(res)
}

// writeServiceError translates service-layer errors to HTTP responses.
// Unrecognized errors collapse to a generic 500 so internals never leak.
func writeServiceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrNotFound), errors.Is(err, storage.ErrNotFound):
		return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "photo not found")
	case errors.Is(err, service.ErrAccessDenied):
		return writeError(c, fiber.StatusForbidden, "ACCESS_DENIED", "caller does not own this photo")
	case errors.Is(err, service.ErrFileTooLarge):
		return writeError(c, fiber.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "file exceeds maximum allowed size")
	case errors.Is(err, service.ErrTooManyFiles):
		return writeError(c, fiber.StatusBadRequest, "TOO_MANY_FILES", "too many files in one upload")
	case errors.Is(err, service.ErrValidation), errors.Is(err, service.ErrReaderNil):
		return writeError(c, fiber.StatusBadRequest, "INVALID_FILE", "file is not an allowed, decodable image")
	case errors.Is(err, quota.ErrStorageFull):
		return writeError(c, fiber.StatusInsufficientStorage, "STORAGE_FULL", "storage capacity exceeded")
	case errors.Is(err, storage.ErrRangeInvalid):
		return writeError(c, fiber.StatusRequestedRangeNotSatisfiable, "RANGE_NOT_SATISFIABLE", "requested range is not satisfiable")
	default:
		return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}

// ErrorHandler returns a Fiber global error handler that standardizes error responses.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		if e, ok := err.(*fiber.Error); ok {
			status = e.Code
		}

		switch status {
		case fiber.StatusBadRequest:
			return writeError(c, status, "BAD_REQUEST", "bad request")
		case fiber.StatusNotFound:
			return writeError(c, status, "NOT_FOUND", "resource not found")
		case fiber.StatusMethodNotAllowed:
			return writeError(c, status, "METHOD_NOT_ALLOWED", "method not allowed")
		default:
			return writeError(c, status, "INTERNAL_ERROR", "internal server error")
		}
	}
}
