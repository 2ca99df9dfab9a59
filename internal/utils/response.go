package utils

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

const errorCodeLocal = "error_code"

// APIResponse describes the common structure for API responses.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message"`
}

// ErrorResponse is the payload for failed requests that carry a machine-readable code.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// SendSuccess sends a successful JSON response with a message.
func SendSuccess(c *fiber.Ctx, message string, data interface{}) error {
	return SendSuccessWithStatus(c, fiber.StatusOK, message, data)
}

// SendSuccessWithStatus sends a success payload using the provided HTTP status code.
func SendSuccessWithStatus(c *fiber.Ctx, status int, message string, data interface{}) error {
	if message == "" {
		message = "success"
	}
	if status == 0 {
		status = fiber.StatusOK
	}

	return c.Status(status).JSON(APIResponse{
		Success: true,
		Data:    data,
		Message: message,
	})
}

// ErrorHandler renders errors that escape route handlers, such as unmatched
// routes or oversized bodies, in the coded error envelope.
func ErrorHandler(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	code := "INTERNAL"
	message := "internal server error"

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		status = fiberErr.Code
		message = fiberErr.Message
		switch status {
		case fiber.StatusNotFound:
			code = "NOT_FOUND"
		case fiber.StatusMethodNotAllowed:
			code = "METHOD_NOT_ALLOWED"
		case fiber.StatusRequestEntityTooLarge:
			code = "PAYLOAD_TOO_LARGE"
		default:
			code = "REQUEST_FAILED"
		}
	}

	return SendErrorCode(c, status, code, message)
}

// SendErrorCode sends an error payload with a stable code. The error field carries the status text.
func SendErrorCode(c *fiber.Ctx, status int, code, message string) error {
	if status == 0 {
		status = fiber.StatusInternalServerError
	}
	if message == "" {
		message = "request failed"
	}

	c.Locals(errorCodeLocal, code)
	return c.Status(status).JSON(ErrorResponse{
		Success: false,
		Error:   http.StatusText(status),
		Message: message,
		Code:    code,
	})
}

// ErrorCode returns the code written by SendErrorCode for the current request.
func ErrorCode(c *fiber.Ctx) string {
	code, _ := c.Locals(errorCodeLocal).(string)
	return code
}
