package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/monitor"

	"github.com/ManuelReschke/CourseHaven/internal/pkg/metrics"
)

// MetricsRouter exposes Prometheus metrics and the fiber monitor behind
// basic auth. Nothing is mounted without credentials.
type MetricsRouter struct {
	user     string
	password string
}

func (h MetricsRouter) InstallRouter(app *fiber.App) {
	if h.user == "" || h.password == "" {
		log.Warn("[Metrics] METRICS_USER/METRICS_PASSWORD not set, /metrics disabled")
		return
	}
	protect := basicauth.New(basicauth.Config{
		Users: map[string]string{h.user: h.password},
	})
	app.Get("/metrics", protect, adaptor.HTTPHandler(metrics.Handler()))
	app.Get("/monitor", protect, monitor.New())
}

func NewMetricsRouter(deps Dependencies) *MetricsRouter {
	return &MetricsRouter{user: deps.MetricsUser, password: deps.MetricsPassword}
}
