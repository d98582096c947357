package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/CourseHaven/internal/pkg/statistics"
)

type AdminController struct {
	stats *statistics.Service
}

func NewAdminController(stats *statistics.Service) *AdminController {
	return &AdminController{stats: stats}
}

// HandleDashboard returns the sales overview for the admin panel.
func (ac *AdminController) HandleDashboard(c *fiber.Ctx) error {
	d, err := ac.stats.Dashboard(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"stats": d})
}
