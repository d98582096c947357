package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/CourseHaven/app/controllers"
)

// WebhookRouter serves processor callbacks outside the rate limited API.
type WebhookRouter struct {
	deps Dependencies
}

func (h WebhookRouter) InstallRouter(app *fiber.App) {
	webhookController := controllers.NewWebhookController(h.deps.Billing, h.deps.Checkout, h.deps.StripeWebhookSecret, h.deps.WebhookRecorder)
	app.Post("/webhooks/stripe", webhookController.HandleStripeWebhook)
}

func NewWebhookRouter(deps Dependencies) *WebhookRouter {
	return &WebhookRouter{deps: deps}
}
