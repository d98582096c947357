package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/CourseHaven/internal/pkg/auth"
	"github.com/ManuelReschke/CourseHaven/internal/pkg/billing"
	"github.com/ManuelReschke/CourseHaven/internal/pkg/catalog"
	"github.com/ManuelReschke/CourseHaven/internal/pkg/checkout"
	"github.com/ManuelReschke/CourseHaven/internal/pkg/entitlements"
	"github.com/ManuelReschke/CourseHaven/internal/pkg/health"
	"github.com/ManuelReschke/CourseHaven/internal/pkg/ratelimit"
	"github.com/ManuelReschke/CourseHaven/internal/pkg/statistics"
)

type Router interface {
	InstallRouter(app *fiber.App)
}

// Dependencies are the services the HTTP layer is built on.
type Dependencies struct {
	Auth                *auth.Service
	Catalog             *catalog.Service
	Checkout            *checkout.Orchestrator
	Ledger              *entitlements.Ledger
	Billing             *billing.Service
	Statistics          *statistics.Service
	Health              *health.Monitor
	StripeWebhookSecret string
	RateLimit           ratelimit.Config
	WebhookRecorder     interface{ WebhookEvent(eventType, result string) }
	MetricsUser         string
	MetricsPassword     string
}

func InstallRouter(app *fiber.App, deps Dependencies) {
	setup(app, NewHealthRouter(deps), NewMetricsRouter(deps), NewWebhookRouter(deps), NewApiRouter(deps))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
