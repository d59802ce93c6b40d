package consumer

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Handler is implemented by anything that processes bus deliveries.
type Handler interface {
	HandleMessage(ctx context.Context, msg amqp.Delivery) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, msg amqp.Delivery) error

func (f HandlerFunc) HandleMessage(ctx context.Context, msg amqp.Delivery) error {
	return f(ctx, msg)
}

// ProcessMessage runs handler for one delivery.
// ACKs on success, NACKs (no requeue) on failure
func ProcessMessage(
	ctx context.Context,
	logger *zap.Logger,
	queue string,
	msg amqp.Delivery,
	handler Handler,
) {
	logger.Debug("Received message from queue",
		zap.String("queue", queue),
		zap.String("type", msg.Type),
		zap.Uint64("delivery_tag", msg.DeliveryTag),
	)

	if err := handler.HandleMessage(ctx, msg); err != nil {
		logger.Error("Failed to process message from queue",
			zap.String("queue", queue),
			zap.String("type", msg.Type),
			zap.Uint64("delivery_tag", msg.DeliveryTag),
			zap.Error(err),
		)
		rejectMessage(logger, msg)
		return
	}

	if err := msg.Ack(false); err != nil {
		logger.Error("Failed to ack message from queue",
			zap.String("queue", queue),
			zap.Uint64("delivery_tag", msg.DeliveryTag),
			zap.Error(err),
		)
		return
	}

	logger.Debug("Message from queue processed successfully",
		zap.String("queue", queue),
		zap.Uint64("delivery_tag", msg.DeliveryTag),
	)
}

// rejectMessage rejects a message (NACK with requeue=false)
func rejectMessage(logger *zap.Logger, msg amqp.Delivery) {
	if err := msg.Nack(false, false); err != nil {
		logger.Error("Failed to nack a message",
			zap.Uint64("delivery_tag", msg.DeliveryTag),
			zap.Error(err),
		)
	}
}
