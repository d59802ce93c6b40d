// Package events publishes internal domain events onto a durable bus queue.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/MarlonX-a/serverless/internal/metrics"
	"github.com/MarlonX-a/serverless/internal/models"
)

// Bus is the part of the RabbitMQ connection the emitter uses.
type Bus interface {
	DeclareQueue(name string, durable, autoDelete, exclusive bool) (amqp.Queue, error)
	Publish(ctx context.Context, exchange, routingKey string, msg amqp.Publishing) error
}

// Emitter publishes events to one queue through the default exchange. The
// message Type carries the event name so consumers can route on it.
type Emitter struct {
	bus    Bus
	queue  string
	source string
	logger *zap.Logger
}

func NewEmitter(bus Bus, queue, source string, logger *zap.Logger) *Emitter {
	return &Emitter{bus: bus, queue: queue, source: source, logger: logger}
}

// Declare makes sure the target queue exists and is durable.
func (e *Emitter) Declare() error {
	if _, err := e.bus.DeclareQueue(e.queue, true, false, false); err != nil {
		return fmt.Errorf("failed to declare events queue %s: %w", e.queue, err)
	}
	return nil
}

// Emit publishes payload as a persistent message. It returns once the broker
// has the message; it never waits for consumers.
func (e *Emitter) Emit(ctx context.Context, event models.EventType, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", event, err)
	}

	err = e.bus.Publish(ctx, "", e.queue, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Type:         string(event),
		AppId:        e.source,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		metrics.BusPublish(string(event), "failed")
		return fmt.Errorf("failed to publish %s event: %w", event, err)
	}

	metrics.BusPublish(string(event), "published")
	e.logger.Debug("Event published",
		zap.String("event", string(event)),
		zap.String("queue", e.queue),
	)
	return nil
}
