package controllers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/stripe/stripe-go/v76"

	"github.com/ManuelReschke/CourseHaven/app/models"
	"github.com/ManuelReschke/CourseHaven/internal/pkg/billing"
	"github.com/ManuelReschke/CourseHaven/internal/pkg/checkout"
)

type WebhookRecorder interface {
	WebhookEvent(eventType, result string)
}

type WebhookController struct {
	billing      *billing.Service
	orchestrator *checkout.Orchestrator
	secret       string
	recorder     WebhookRecorder
}

func NewWebhookController(billingService *billing.Service, orchestrator *checkout.Orchestrator, secret string, recorder WebhookRecorder) *WebhookController {
	return &WebhookController{
		billing:      billingService,
		orchestrator: orchestrator,
		secret:       secret,
		recorder:     recorder,
	}
}

// HandleStripeWebhook verifies and records a Stripe delivery, then applies
// payment_intent events to the owning checkout. Deliveries are answered with
// 200 once recorded, processing errors are kept on the event row.
func (wc *WebhookController) HandleStripeWebhook(c *fiber.Ctx) error {
	if wc.secret == "" {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error":   "webhook_disabled",
			"message": "Stripe webhook secret is not configured",
		})
	}

	rawBody := append([]byte(nil), c.Body()...)
	event, err := billing.ParseStripeEvent(rawBody, c.Get("Stripe-Signature"), wc.secret)
	if err != nil {
		log.Warnf("[Webhook] rejected stripe delivery: %v", err)
		wc.record("unknown", "invalid_signature")
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "invalid_signature",
			"message": "Webhook signature verification failed",
		})
	}
	eventType := string(event.Type)

	ctx := c.UserContext()
	created, rec, err := wc.billing.RecordWebhookEvent(ctx, billing.WebhookEventInput{
		Provider:        models.PaymentProviderStripe,
		ProviderEventID: event.ID,
		EventType:       eventType,
		PayloadJSON:     string(rawBody),
	})
	if err != nil {
		log.Errorf("[Webhook] failed to record stripe event %s: %v", event.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "internal_error",
			"message": "Webhook could not be recorded",
		})
	}
	if !created {
		wc.record(eventType, "duplicate")
		return c.JSON(fiber.Map{"received": true, "duplicate": true})
	}

	result, procErr := wc.process(ctx, event)
	if err := wc.billing.MarkWebhookProcessed(ctx, rec.ID, procErr); err != nil {
		log.Errorf("[Webhook] failed to mark stripe event %s processed: %v", event.ID, err)
	}
	if procErr != nil {
		log.Warnf("[Webhook] stripe event %s (%s) failed: %v", event.ID, eventType, procErr)
		result = "error"
	}
	wc.record(eventType, result)

	return c.JSON(fiber.Map{
		"received":  true,
		"duplicate": false,
		"processed": procErr == nil,
	})
}

func (wc *WebhookController) process(ctx context.Context, event *stripe.Event) (string, error) {
	switch string(event.Type) {
	case billing.EventPaymentIntentSucceeded, billing.EventPaymentIntentFailed, billing.EventPaymentIntentCanceled:
	default:
		return "ignored", nil
	}

	intent, err := billing.IntentFromEvent(event)
	if err != nil {
		return "", err
	}

	switch string(event.Type) {
	case billing.EventPaymentIntentSucceeded:
		_, err = wc.orchestrator.ConfirmIntent(ctx, intent.ID)
	case billing.EventPaymentIntentFailed:
		err = wc.orchestrator.MarkFailed(ctx, intent.ID, false, intent.FailureMessage)
	case billing.EventPaymentIntentCanceled:
		err = wc.orchestrator.MarkFailed(ctx, intent.ID, true, "canceled by processor")
	}

	// intents created outside this service have no checkout
	if errors.Is(err, checkout.ErrCheckoutMissing) {
		return "ignored", nil
	}
	if err != nil {
		return "", err
	}
	return "applied", nil
}

func (wc *WebhookController) record(eventType, result string) {
	if wc.recorder != nil {
		wc.recorder.WebhookEvent(eventType, result)
	}
}
