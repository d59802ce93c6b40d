package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/MarlonX-a/serverless/internal/receiver"
	"github.com/MarlonX-a/serverless/internal/signature"
)

type WebhookReceiver interface {
	Receive(ctx context.Context, sigHeader string, body []byte) (*receiver.Result, error)
}

// WebhookHandler accepts signed event deliveries.
type WebhookHandler struct {
	receiver WebhookReceiver
	logger   *zap.Logger
}

func NewWebhookHandler(r WebhookReceiver, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{receiver: r, logger: logger}
}

// Receive handles POST /webhooks/events
func (h *WebhookHandler) Receive(c *fiber.Ctx) error {
	// fasthttp reuses the request buffer after the handler returns
	body := append([]byte(nil), c.Body()...)

	res, err := h.receiver.Receive(c.UserContext(), c.Get(signature.HeaderName), body)
	switch {
	case err == nil:
	case errors.Is(err, signature.ErrMissingSignature):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Missing signature"})
	case errors.Is(err, signature.ErrInvalidSignature):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid signature"})
	case errors.Is(err, receiver.ErrMalformedEnvelope):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	default:
		h.logger.Error("Failed to process webhook", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}

	if res.Outcome == receiver.Duplicate {
		return c.JSON(fiber.Map{"status": "Duplicate event ignored"})
	}
	return c.JSON(fiber.Map{
		"status": "Event processed",
		"id":     res.Event.ID.String(),
	})
}
