package handlers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/MarlonX-a/serverless/internal/models"
	"github.com/MarlonX-a/serverless/internal/repository"
)

type WebhookEventLister interface {
	List(ctx context.Context, page repository.Page) ([]models.WebhookEventRecord, bool, error)
}

// EventsHandler handles listing of accepted inbound webhooks
type EventsHandler struct {
	events WebhookEventLister
	logger *zap.Logger
}

// NewEventsHandler creates a new events handler with dependencies
func NewEventsHandler(events WebhookEventLister, logger *zap.Logger) *EventsHandler {
	return &EventsHandler{events: events, logger: logger}
}

// EventsResponse represents the response structure for GET /webhook-events
type EventsResponse struct {
	Events  []EventDTO `json:"events"`
	HasMore bool       `json:"has_more"`
}

// EventDTO represents a single stored webhook event in the response
type EventDTO struct {
	ID             string          `json:"id"`
	EventName      string          `json:"event_name"`
	IdempotencyKey string          `json:"idempotency_key"`
	Payload        json.RawMessage `json:"payload"`
	Timestamp      string          `json:"timestamp"` // UTC ISO 8601 format
}

// GetEvents handles GET /api/v1/webhook-events
// Query parameters:
//   - limit (optional, default 25): Number of events to return
//   - offset (optional, default 0): Number of events to skip
func (h *EventsHandler) GetEvents(c *fiber.Ctx) error {
	page, ok, err := parsePage(c)
	if !ok {
		return err
	}

	events, hasMore, err := h.events.List(c.UserContext(), page)
	if err != nil {
		h.logger.Error("Failed to query webhook events", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch events",
		})
	}

	dtos := make([]EventDTO, 0, len(events))
	for _, event := range events {
		dtos = append(dtos, EventDTO{
			ID:             event.ID.String(),
			EventName:      event.Event,
			IdempotencyKey: event.IdempotencyKey,
			Payload:        json.RawMessage(event.Payload),
			Timestamp:      event.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	return c.JSON(EventsResponse{Events: dtos, HasMore: hasMore})
}
