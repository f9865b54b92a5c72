package utils

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"lms/backend/models"
)

// SuccessResponse is the envelope for successful responses
type SuccessResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// ErrorResponse is the envelope for errors
type ErrorResponse struct {
	Success bool        `json:"success"`
	Error   string      `json:"error"`
	Code    string      `json:"code,omitempty"`
	Message string      `json:"message,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

// Success sends a successful JSON response
func Success(c *fiber.Ctx, status int, data interface{}) error {
	return c.Status(status).JSON(SuccessResponse{
		Success: true,
		Data:    data,
	})
}

// Error sends a JSON error response
func Error(c *fiber.Ctx, status int, err error, details ...interface{}) error {
	response := ErrorResponse{
		Success: false,
		Error:   http.StatusText(status),
		Message: err.Error(),
	}

	if len(details) > 0 {
		response.Details = details[0]
	}

	return c.Status(status).JSON(response)
}

// statusForCode maps the domain error taxonomy onto HTTP statuses.
func statusForCode(code string) int {
	switch code {
	case models.CodeValidation:
		return fiber.StatusUnprocessableEntity
	case models.CodeInvalidOperation:
		return fiber.StatusBadRequest
	case models.CodePermissionDenied:
		return fiber.StatusForbidden
	case models.CodeNotFound:
		return fiber.StatusNotFound
	case models.CodeConflict, models.CodeInvalidState, models.CodeAttemptsExhausted:
		return fiber.StatusConflict
	case models.CodeExpired:
		return fiber.StatusGone
	case models.CodeLocked:
		return fiber.StatusLocked
	default:
		return fiber.StatusInternalServerError
	}
}

// Fail renders a domain error with its mapped status. Anything that is not a
// *models.DomainError is an internal failure and must not leak detail.
func Fail(c *fiber.Ctx, err error) error {
	var domainErr *models.DomainError
	if errors.As(err, &domainErr) {
		status := statusForCode(domainErr.Code)
		return c.Status(status).JSON(ErrorResponse{
			Success: false,
			Error:   http.StatusText(status),
			Code:    domainErr.Code,
			Message: domainErr.Message,
		})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
		Success: false,
		Error:   http.StatusText(fiber.StatusInternalServerError),
		Code:    models.CodeInternal,
		Message: "Internal server error",
	})
}

// ValidationFailed renders go-playground/validator errors field by field.
func ValidationFailed(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusUnprocessableEntity).JSON(ErrorResponse{
		Success: false,
		Error:   "Validation Error",
		Code:    models.CodeValidation,
		Details: err.Error(),
	})
}

// BadRequest sends a 400 Bad Request response
func BadRequest(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusBadRequest, fiber.NewError(fiber.StatusBadRequest, message))
}

// Unauthorized sends a 401 Unauthorized response
func Unauthorized(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusUnauthorized, fiber.NewError(fiber.StatusUnauthorized, message))
}

// Forbidden sends a 403 Forbidden response
func Forbidden(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusForbidden, fiber.NewError(fiber.StatusForbidden, message))
}

// NotFound sends a 404 Not Found response
func NotFound(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusNotFound, fiber.NewError(fiber.StatusNotFound, message))
}

// InternalServerError sends a 500 Internal Server Error response
func InternalServerError(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusInternalServerError, fiber.NewError(fiber.StatusInternalServerError, message))
}
