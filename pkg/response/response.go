package response

import "github.com/gofiber/fiber/v2"

// Error codes
const (
	CodeRateLimited  = "RATE_LIMITED"
	CodeServiceError = "SERVICE_ERROR"
)

// ProxyFailureMessage is the only error text the /api proxy ever exposes
const ProxyFailureMessage = "An error occurred while processing your request"

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// DetailResponse is the backend's error shape, {"detail": "..."}
type DetailResponse struct {
	Detail interface{} `json:"detail"`
}

func Error(c *fiber.Ctx, status int, code, message string, details interface{}) error {
	return c.Status(status).JSON(ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

func RateLimited(c *fiber.Ctx) error {
	return Error(c, fiber.StatusTooManyRequests, CodeRateLimited, "Rate limit exceeded", nil)
}

// ProxyError answers a failed relay with a fixed 500 body
func ProxyError(c *fiber.Ctx) error {
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": ProxyFailureMessage,
	})
}

// Detail writes a backend-style error body
func Detail(c *fiber.Ctx, status int, detail interface{}) error {
	return c.Status(status).JSON(DetailResponse{Detail: detail})
}

func OK(c *fiber.Ctx, data interface{}) error {
	return c.JSON(data)
}

// Raw writes body as is with the given content type
func Raw(c *fiber.Ctx, status int, contentType string, body []byte) error {
	if contentType != "" {
		c.Set(fiber.HeaderContentType, contentType)
	}
	return c.Status(status).Send(body)
}
