package middleware

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/CourseHaven/internal/pkg/apperror"
	"github.com/ManuelReschke/CourseHaven/internal/pkg/auth"
	"github.com/ManuelReschke/CourseHaven/internal/pkg/usercontext"
)

// CredentialVerifier resolves a presented credential to an account.
type CredentialVerifier interface {
	Verify(ctx context.Context, token string) (*auth.AccountContext, error)
}

// extractCredential reads the bearer token first and falls back to the jwt cookie.
func extractCredential(c *fiber.Ctx) string {
	header := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		if token := strings.TrimSpace(header[7:]); token != "" {
			return token
		}
	}
	return strings.TrimSpace(c.Cookies(usercontext.CookieName))
}

func deny(c *fiber.Ctx, err error) error {
	kind := apperror.KindOf(err)
	return c.Status(apperror.HTTPStatus(kind)).JSON(fiber.Map{
		"error":   string(kind),
		"message": apperror.Message(err),
	})
}

// RequireCredential verifies the credential on every request and stores the
// account in Locals. Missing or invalid credentials get a JSON 401.
func RequireCredential(verifier CredentialVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := extractCredential(c)
		if token == "" {
			return deny(c, apperror.New(apperror.KindUnauthorized, "login required"))
		}
		acc, err := verifier.Verify(c.UserContext(), token)
		if err != nil {
			return deny(c, err)
		}
		usercontext.SetAccount(c, acc)
		c.Locals(usercontext.KeyCredential, token)
		return c.Next()
	}
}
