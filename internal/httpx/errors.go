package httpx

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/bankcards/cardledger/internal/apperr"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Status    int    `json:"status"`
	Error     string `json:"error"`
	Message   string `json:"message"`
	Path      string `json:"path"`
	Timestamp string `json:"timestamp"`
}

// ErrorHandler translates domain and fiber errors into JSON responses.
// Unclassified failures are logged and reported without their detail.
func ErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := http.StatusInternalServerError
		message := "internal server error"

		var fe *fiber.Error
		switch kind := apperr.KindOf(err); {
		case errors.As(err, &fe):
			status = fe.Code
			message = fe.Message
		case kind != apperr.KindUnknown:
			status = apperr.HTTPStatus(kind)
			message = err.Error()
		}

		if status >= http.StatusInternalServerError {
			reqID, _ := c.Locals("X-Request-ID").(string)
			logger.Error("request failed",
				slog.String("request_id", reqID),
				slog.String("method", c.Method()),
				slog.String("path", c.Path()),
				slog.Any("error", err),
			)
		}

		return c.Status(status).JSON(ErrorBody{
			Status:    status,
			Error:     http.StatusText(status),
			Message:   message,
			Path:      c.Path(),
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// Actor returns the authenticated username placed in locals by the JWT middleware.
func Actor(c *fiber.Ctx) (string, error) {
	username, _ := c.Locals("username").(string)
	if username == "" {
		return "", fiber.NewError(http.StatusUnauthorized, "authentication required")
	}
	return username, nil
}
