// Package notifier turns accepted webhook events into chat notifications.
// Delivery is best effort: failures are logged and the message is acked.
package notifier

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/MarlonX-a/serverless/internal/metrics"
	"github.com/MarlonX-a/serverless/internal/models"
)

// Sender delivers formatted text to the chat.
type Sender interface {
	Send(ctx context.Context, text string) error
}

// Forwarder consumes envelopes from the notifications queue.
type Forwarder struct {
	templates *Templates
	sender    Sender
	logger    *zap.Logger
}

func NewForwarder(templates *Templates, sender Sender, logger *zap.Logger) *Forwarder {
	return &Forwarder{templates: templates, sender: sender, logger: logger}
}

// HandleMessage implements consumer.Handler. Only an undecodable body is an
// error; a failed send is logged and the message is still acked.
func (f *Forwarder) HandleMessage(ctx context.Context, msg amqp.Delivery) error {
	var env models.EventEnvelope
	if err := json.Unmarshal(msg.Body, &env); err != nil {
		metrics.Notification("unknown", "malformed")
		return fmt.Errorf("failed to decode envelope: %w", err)
	}

	f.Forward(ctx, &env)
	return nil
}

// Forward renders env and sends it.
func (f *Forwarder) Forward(ctx context.Context, env *models.EventEnvelope) {
	text := f.templates.Render(env)
	if err := f.sender.Send(ctx, text); err != nil {
		metrics.Notification(env.Event, "failed")
		f.logger.Warn("Failed to send notification",
			zap.String("event", env.Event),
			zap.String("idempotency_key", env.IdempotencyKey),
			zap.Error(err),
		)
		return
	}
	metrics.Notification(env.Event, "sent")
	f.logger.Info("Notification sent",
		zap.String("event", env.Event),
		zap.String("idempotency_key", env.IdempotencyKey),
	)
}
