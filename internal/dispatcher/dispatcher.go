// Package dispatcher routes deliveries arriving on the servicio queue by
// message type: reference validation requests are answered, comment events
// are logged.
package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/MarlonX-a/serverless/internal/models"
	"github.com/MarlonX-a/serverless/internal/rabbitmq"
)

// ServicioLookup answers whether a Servicio exists.
type ServicioLookup interface {
	Exists(ctx context.Context, id int64) (bool, error)
}

type Dispatcher struct {
	servicios ServicioLookup
	replies   rabbitmq.Publisher
	logger    *zap.Logger
}

func NewDispatcher(servicios ServicioLookup, replies rabbitmq.Publisher, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{servicios: servicios, replies: replies, logger: logger}
}

// HandleMessage implements consumer.Handler.
func (d *Dispatcher) HandleMessage(ctx context.Context, msg amqp.Delivery) error {
	switch msg.Type {
	case models.PatternValidarServicio:
		return d.handleValidar(ctx, msg)
	case string(models.ComentarioCreado):
		return d.handleComentarioCreado(msg)
	default:
		// Return nil to ACK - nothing here consumes it
		d.logger.Warn("Ignoring message with unknown type",
			zap.String("type", msg.Type),
			zap.String("message_id", msg.MessageId),
		)
		return nil
	}
}

// handleValidar answers a servicio.validar request. A lookup failure sends
// no answer: the caller times out and rejects, which is the safe outcome.
func (d *Dispatcher) handleValidar(ctx context.Context, msg amqp.Delivery) error {
	var req models.ValidarServicioRequest
	if err := json.Unmarshal(msg.Body, &req); err != nil {
		return fmt.Errorf("failed to unmarshal %s request: %w", models.PatternValidarServicio, err)
	}

	exists, err := d.servicios.Exists(ctx, req.ServicioID)
	if err != nil {
		return fmt.Errorf("failed to check servicio %d: %w", req.ServicioID, err)
	}

	resp := models.ValidarServicioResponse{ServicioID: req.ServicioID, Existe: exists}
	if err := rabbitmq.Reply(ctx, d.replies, msg, resp); err != nil {
		return fmt.Errorf("failed to reply to %s: %w", models.PatternValidarServicio, err)
	}

	d.logger.Debug("Answered servicio validation",
		zap.Int64("servicio_id", req.ServicioID),
		zap.Bool("existe", exists),
	)
	return nil
}

func (d *Dispatcher) handleComentarioCreado(msg amqp.Delivery) error {
	var ev models.ComentarioCreadoMessage
	if err := json.Unmarshal(msg.Body, &ev); err != nil {
		return fmt.Errorf("failed to unmarshal %s event: %w", models.ComentarioCreado, err)
	}
	d.logger.Info("Comentario created for servicio",
		zap.Int64("comentario_id", ev.ComentarioID),
		zap.Int64("servicio_id", ev.ServicioID),
		zap.Int64("cliente_id", ev.ClienteID),
	)
	return nil
}
