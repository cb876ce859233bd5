package handlers

import (
	"github.com/gofiber/fiber/v2"
)

// LocalUserID is the fiber local holding the authenticated user id.
const LocalUserID = "user_id"

// GetUserID returns the id stored by the auth middleware, or 0.
func GetUserID(c *fiber.Ctx) int64 {
	userID, _ := c.Locals(LocalUserID).(int64)
	return userID
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": msg,
	})
}
