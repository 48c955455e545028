package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/quillforge/quillforge/internal/pkg/credits"
	"github.com/quillforge/quillforge/internal/pkg/database"
	"github.com/quillforge/quillforge/internal/pkg/payments"
)

// HandleStripeWebhook receives provider webhook deliveries.
//
// Responses follow the provider's retry contract: 2xx acknowledges the event
// (including duplicates and unhandled types), 4xx rejects it permanently, 5xx
// asks for a re-delivery.
func HandleStripeWebhook(c *fiber.Ctx) error {
	cfg := payments.ConfigFromEnv()
	if !cfg.IsConfigured() {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error":   "service_unavailable",
			"message": "Payment provider not configured",
		})
	}

	signature := c.Get("Stripe-Signature")
	if signature == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "bad_request",
			"message": "Missing signature header",
		})
	}

	db := database.GetDB()
	ledger := credits.NewLedger(credits.NewRepository(db))
	dispatcher := payments.NewDispatcherFromDB(cfg, db, ledger)

	if err := dispatcher.Handle(c.UserContext(), c.Body(), signature); err != nil {
		switch {
		case errors.Is(err, payments.ErrInvalidSignature), errors.Is(err, payments.ErrMalformedPayload):
			log.Warnf("[Webhook] rejected delivery: %v", err)
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":   "bad_request",
				"message": "Invalid webhook payload or signature",
			})
		case errors.Is(err, payments.ErrNotConfigured):
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error":   "service_unavailable",
				"message": "Payment provider not configured",
			})
		default:
			log.Errorf("[Webhook] processing failed: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error":   "internal_server_error",
				"message": "Webhook processing failed",
			})
		}
	}

	return c.JSON(fiber.Map{"received": true})
}
