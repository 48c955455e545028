package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/quillforge/quillforge/internal/pkg/usercontext"
)

// AdminRequiredMiddleware rejects requests from non-admin users. It must run
// after APIKeyAuthMiddleware so the user context is populated.
func AdminRequiredMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		uc := usercontext.GetUserContext(c)
		if !uc.IsAuthenticated || !uc.IsAdmin {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden", "message": "Admin access required"})
		}
		return c.Next()
	}
}
