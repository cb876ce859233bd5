package handlers

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/crosspost/internal/service"
)

var errorStatuses = []struct {
	err    error
	status int
}{
	{service.ErrUnauthenticated, fiber.StatusUnauthorized},
	{service.ErrForbidden, fiber.StatusForbidden},
	{service.ErrNotFoundOrExpired, fiber.StatusNotFound},
	{service.ErrSessionExpiredOrUnknown, fiber.StatusBadRequest},
	{service.ErrInvalidSelection, fiber.StatusBadRequest},
	{service.ErrNoTargets, fiber.StatusBadRequest},
	{service.ErrInvalidInput, fiber.StatusBadRequest},
	{service.ErrUpstreamRejected, fiber.StatusBadGateway},
	{service.ErrNotConfigured, fiber.StatusServiceUnavailable},
}

// StatusFor maps a service error to its HTTP status.
func StatusFor(err error) int {
	for _, e := range errorStatuses {
		if errors.Is(err, e.err) {
			return e.status
		}
	}
	return fiber.StatusInternalServerError
}

// respondError writes err as a JSON error body. Unmapped errors are logged
// and hidden behind a generic message.
func respondError(c *fiber.Ctx, err error) error {
	status := StatusFor(err)
	if status == fiber.StatusInternalServerError {
		slog.Error("request failed", "method", c.Method(), "path", c.Path(), "error", err)
		return c.Status(status).JSON(fiber.Map{
			"error": "something went wrong",
		})
	}
	return c.Status(status).JSON(fiber.Map{
		"error": err.Error(),
	})
}
