package controllers

import (
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/CourseHaven/internal/pkg/apperror"
	"github.com/ManuelReschke/CourseHaven/internal/pkg/env"
	"github.com/ManuelReschke/CourseHaven/internal/pkg/usercontext"
)

var validate = validator.New()

// respondError writes err in the API error shape. Only internal errors are
// logged, their cause never reaches the client.
func respondError(c *fiber.Ctx, err error) error {
	kind := apperror.KindOf(err)
	status := apperror.HTTPStatus(kind)
	if status >= fiber.StatusInternalServerError {
		log.Errorf("[API] %s %s: %v", c.Method(), c.Path(), err)
	}
	return c.Status(status).JSON(fiber.Map{
		"error":   string(kind),
		"message": apperror.Message(err),
	})
}

// parseBody decodes the request body into dst and runs its validate tags.
func parseBody(c *fiber.Ctx, dst interface{}) error {
	if err := c.BodyParser(dst); err != nil {
		return apperror.Wrap(apperror.KindValidation, "Invalid request body", err)
	}
	if err := validate.Struct(dst); err != nil {
		return apperror.FromValidator(err)
	}
	return nil
}

func parseIDParam(c *fiber.Ctx, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || id == 0 {
		return 0, apperror.Validation("Invalid " + name)
	}
	return uint(id), nil
}

func setCredentialCookie(c *fiber.Ctx, token string, expires time.Time) {
	c.Cookie(&fiber.Cookie{
		Name:     usercontext.CookieName,
		Value:    token,
		Expires:  expires,
		HTTPOnly: true,
		Secure:   !env.IsDev(),
		SameSite: fiber.CookieSameSiteStrictMode,
	})
}

func clearCredentialCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     usercontext.CookieName,
		Value:    "",
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		Secure:   !env.IsDev(),
		SameSite: fiber.CookieSameSiteStrictMode,
	})
}
