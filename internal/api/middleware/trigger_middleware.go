package middleware

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"
)

const triggerHeader = "X-Trigger-Secret"

// TriggerSecret guards operator endpoints with a shared secret. With no
// secret configured the endpoints stay closed.
func TriggerSecret(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if secret == "" {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "trigger secret not configured",
			})
		}

		given := c.Get(triggerHeader)
		if subtle.ConstantTimeCompare([]byte(given), []byte(secret)) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid trigger secret",
			})
		}
		return c.Next()
	}
}
