package controllers

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/meetloom/billing-sync/internal/pkg/billing"
)

// WebhookController receives provider webhook deliveries and answers with
// status codes the provider understands: 2xx acknowledges, 4xx rejects for
// good, 5xx asks for redelivery.
type WebhookController struct {
	processor *billing.Processor
}

func NewWebhookController(processor *billing.Processor) *WebhookController {
	return &WebhookController{processor: processor}
}

func (wc *WebhookController) HandleStripeWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := strings.TrimSpace(c.Get("Stripe-Signature"))

	// Delivery id for log correlation; the event id is only known after the
	// signature check lets us parse the body.
	deliveryID := uuid.NewString()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	out := wc.processor.Process(ctx, rawBody, signature)
	switch out.Status {
	case billing.StatusApplied:
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "event": out.EventID})
	case billing.StatusSkipped:
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "event": out.EventID, "ignored": true, "duplicate": out.Duplicate})
	}

	if out.Retryable() {
		log.Printf("[webhook] delivery %s could not be applied, requesting redelivery: %v", deliveryID, out.Err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "entitlement_sync_failed"})
	}
	if errors.Is(out.Err, billing.ErrBadSignature) {
		log.Printf("[webhook] delivery %s rejected: invalid signature", deliveryID)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_signature"})
	}
	log.Printf("[webhook] delivery %s rejected: %v", deliveryID, out.Err)
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload"})
}
