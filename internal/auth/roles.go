package auth

import (
	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/servicedesk/pkg/util"
)

// RequireAdmin ensures the authenticated user holds the admin role.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, ok := UserFromContext(c)
		if !ok || !user.IsAdmin() {
			return apperrors.NewForbidden("admin required")
		}
		return c.Next()
	}
}
