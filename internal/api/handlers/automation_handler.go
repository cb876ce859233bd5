package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	job "github.com/maheshrc27/crosspost/internal/jobs"
	"github.com/maheshrc27/crosspost/internal/service"
	"github.com/maheshrc27/crosspost/internal/transfer"
)

type Ticker interface {
	Tick(ctx context.Context) (*transfer.TickReport, error)
}

type AutomationHandler struct {
	t Ticker
}

func NewAutomationHandler(t Ticker) *AutomationHandler {
	return &AutomationHandler{t: t}
}

// Tick runs one automation tick and returns its report. Per-user failures
// are part of the report and still answer 200.
func (h *AutomationHandler) Tick(c *fiber.Ctx) error {
	report, err := h.t.Tick(c.Context())
	switch {
	case errors.Is(err, job.ErrTickInProgress):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": err.Error(),
		})
	case errors.Is(err, service.ErrPartialAutomationFailure):
		return c.Status(fiber.StatusOK).JSON(report)
	case err != nil:
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(report)
}
