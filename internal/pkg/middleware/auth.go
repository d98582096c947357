package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/CourseHaven/app/models"
	"github.com/ManuelReschke/CourseHaven/internal/pkg/apperror"
	"github.com/ManuelReschke/CourseHaven/internal/pkg/usercontext"
)

// RequireUser lets only user accounts through. Runs after RequireCredential.
func RequireUser(c *fiber.Ctx) error {
	return requireRole(c, models.ROLE_USER, "user account required")
}

// RequireAdmin lets only admin accounts through. Runs after RequireCredential.
func RequireAdmin(c *fiber.Ctx) error {
	return requireRole(c, models.ROLE_ADMIN, "admin access required")
}

func requireRole(c *fiber.Ctx, role, message string) error {
	acc := usercontext.GetAccount(c)
	if acc == nil {
		return deny(c, apperror.New(apperror.KindUnauthorized, "login required"))
	}
	if acc.Role != role {
		return deny(c, apperror.Forbidden(message))
	}
	return c.Next()
}
