package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/CourseHaven/app/models"
	"github.com/ManuelReschke/CourseHaven/internal/pkg/auth"
	"github.com/ManuelReschke/CourseHaven/internal/pkg/usercontext"
	"github.com/ManuelReschke/CourseHaven/internal/pkg/utils"
)

type AuthController struct {
	auth *auth.Service
}

func NewAuthController(authService *auth.Service) *AuthController {
	return &AuthController{auth: authService}
}

type signupRequest struct {
	FirstName string `json:"firstName" form:"firstName" validate:"required,max=100"`
	LastName  string `json:"lastName" form:"lastName" validate:"required,max=100"`
	Email     string `json:"email" form:"email" validate:"required,email"`
	Password  string `json:"password" form:"password" validate:"required"`
}

type loginRequest struct {
	Email    string `json:"email" form:"email" validate:"required"`
	Password string `json:"password" form:"password" validate:"required"`
}

func (ac *AuthController) HandleUserSignup(c *fiber.Ctx) error {
	return ac.signup(c, models.ROLE_USER)
}

func (ac *AuthController) HandleAdminSignup(c *fiber.Ctx) error {
	return ac.signup(c, models.ROLE_ADMIN)
}

func (ac *AuthController) HandleUserLogin(c *fiber.Ctx) error {
	return ac.login(c, models.ROLE_USER)
}

func (ac *AuthController) HandleAdminLogin(c *fiber.Ctx) error {
	return ac.login(c, models.ROLE_ADMIN)
}

// HandleLogout revokes the presented credential and clears the cookie.
func (ac *AuthController) HandleLogout(c *fiber.Ctx) error {
	if err := ac.auth.Revoke(c.UserContext(), usercontext.GetAccount(c)); err != nil {
		return respondError(c, err)
	}
	clearCredentialCookie(c)
	return c.JSON(fiber.Map{"message": "Logged out successfully"})
}

// HandleMe returns the account behind the credential.
func (ac *AuthController) HandleMe(c *fiber.Ctx) error {
	user, err := ac.auth.Profile(c.UserContext(), usercontext.GetAccount(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"user":      user,
		"avatarUrl": utils.GetGravatarURL(user.Email, 200),
	})
}

func (ac *AuthController) signup(c *fiber.Ctx, role string) error {
	var req signupRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}

	user, err := ac.auth.Register(c.UserContext(), auth.RegisterInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
	}, role)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Signup succeeded",
		"user":    user,
	})
}

func (ac *AuthController) login(c *fiber.Ctx, role string) error {
	var req loginRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}

	token, acc, err := ac.auth.Authenticate(c.UserContext(), req.Email, req.Password, role)
	if err != nil {
		return respondError(c, err)
	}
	user, err := ac.auth.Profile(c.UserContext(), acc)
	if err != nil {
		return respondError(c, err)
	}

	setCredentialCookie(c, token, acc.ExpiresAt)
	return c.JSON(fiber.Map{
		"message":   "Login successful",
		"token":     token,
		"expiresAt": acc.ExpiresAt,
		"user":      user,
	})
}
