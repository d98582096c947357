package usercontext

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/CourseHaven/internal/pkg/auth"
)

// SetAccount stores the verified account for the rest of the request.
func SetAccount(c *fiber.Ctx, acc *auth.AccountContext) {
	c.Locals(KeyAccount, acc)
}

// GetAccount returns the verified account or nil for anonymous requests.
func GetAccount(c *fiber.Ctx) *auth.AccountContext {
	if acc, ok := c.Locals(KeyAccount).(*auth.AccountContext); ok {
		return acc
	}
	return nil
}

// IsLoggedIn checks if the request carried a valid credential
func IsLoggedIn(c *fiber.Ctx) bool {
	return GetAccount(c) != nil
}

// IsAdmin checks if the current account is an admin
func IsAdmin(c *fiber.Ctx) bool {
	return GetAccount(c).IsAdmin()
}

// GetUserID returns the current account's ID, or 0 if not logged in
func GetUserID(c *fiber.Ctx) uint {
	if acc := GetAccount(c); acc != nil {
		return acc.AccountID
	}
	return 0
}
