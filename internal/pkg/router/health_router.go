package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/CourseHaven/internal/pkg/health"
)

type HealthRouter struct {
	monitor *health.Monitor
}

func (h HealthRouter) InstallRouter(app *fiber.App) {
	if h.monitor == nil {
		return
	}
	app.Get("/health", func(c *fiber.Ctx) error {
		report := h.monitor.Report()
		status := fiber.StatusOK
		if !report.Healthy {
			status = fiber.StatusServiceUnavailable
		}
		return c.Status(status).JSON(report)
	})
}

func NewHealthRouter(deps Dependencies) *HealthRouter {
	return &HealthRouter{monitor: deps.Health}
}
