package handlers

import (
	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"

	applog "shopindex/internal/log"
)

// AdminTokenHeader carries the admin token; its bcrypt hash is configured.
const AdminTokenHeader = "X-Admin-Token"

// RequireAdmin lets a request through only when its admin token matches
// tokenHash. With no hash configured every admin request is refused.
func RequireAdmin(tokenHash string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tok := c.Get(AdminTokenHeader)
		if tokenHash == "" || tok == "" ||
			bcrypt.CompareHashAndPassword([]byte(tokenHash), []byte(tok)) != nil {
			applog.Security(c, "access.denied.admin", map[string]any{"token_present": tok != ""})
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "access denied"})
		}
		return c.Next()
	}
}
