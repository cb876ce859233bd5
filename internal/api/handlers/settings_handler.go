package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/crosspost/internal/service"
	"github.com/maheshrc27/crosspost/internal/transfer"
)

type SettingsHandler struct {
	s service.SettingsService
}

func NewSettingsHandler(service service.SettingsService) *SettingsHandler {
	return &SettingsHandler{s: service}
}

func (h *SettingsHandler) GetSettingsInfo(c *fiber.Ctx) error {
	settingsInfo, err := h.s.GetSettingsInfo(c.Context(), GetUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(settingsInfo)
}

func (h *SettingsHandler) UpdateSettings(c *fiber.Ctx) error {
	var update transfer.AutomationSettingsUpdate
	if err := c.BodyParser(&update); err != nil {
		return badRequest(c, "unable to parse json")
	}

	settings, err := h.s.UpdateSettings(c.Context(), GetUserID(c), &update)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(settings)
}
