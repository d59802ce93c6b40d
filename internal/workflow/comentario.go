package workflow

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/MarlonX-a/serverless/internal/idempotency"
	"github.com/MarlonX-a/serverless/internal/metrics"
	"github.com/MarlonX-a/serverless/internal/models"
	"github.com/MarlonX-a/serverless/internal/webhook"
)

// ComentarioStore persists a Comentario together with its operation key.
type ComentarioStore interface {
	CreateOnce(ctx context.Context, key string, c *models.Comentario) error
}

// ServicioValidator confirms a Servicio exists; any error means it could not be confirmed.
type ServicioValidator interface {
	ValidateServicio(ctx context.Context, id int64) error
}

type ComentarioInput struct {
	ServicioID     int64
	ClienteID      int64
	Titulo         string
	Texto          string
	IdempotencyKey string
}

type ComentarioResult struct {
	Comentario     *models.Comentario
	IdempotencyKey string
	Duplicate      bool
}

type ComentarioWorkflow struct {
	ledger    KeyChecker
	validator ServicioValidator
	store     ComentarioStore
	emitter   EventEmitter
	webhooks  WebhookSender
	logger    *zap.Logger
}

func NewComentarioWorkflow(
	ledger KeyChecker,
	validator ServicioValidator,
	store ComentarioStore,
	emitter EventEmitter,
	webhooks WebhookSender,
	logger *zap.Logger,
) *ComentarioWorkflow {
	return &ComentarioWorkflow{
		ledger:    ledger,
		validator: validator,
		store:     store,
		emitter:   emitter,
		webhooks:  webhooks,
		logger:    logger,
	}
}

// Create runs the comment creation. Errors from the validator are returned
// unchanged so callers can tell a missing Servicio from an unconfirmed one.
func (w *ComentarioWorkflow) Create(ctx context.Context, in ComentarioInput) (*ComentarioResult, error) {
	key := strings.TrimSpace(in.IdempotencyKey)
	if err := validateComentario(in, key); err != nil {
		metrics.Creation("comentario", outcomeRejected)
		return nil, err
	}

	if seen(ctx, w.ledger, key, w.logger) {
		return w.duplicate(key), nil
	}

	if err := w.validator.ValidateServicio(ctx, in.ServicioID); err != nil {
		metrics.Creation("comentario", outcomeRejected)
		w.logger.Info("Comentario rejected",
			zap.Int64("servicio_id", in.ServicioID),
			zap.String("idempotency_key", key),
			zap.Error(err),
		)
		return nil, err
	}

	comentario := &models.Comentario{
		ServicioID: in.ServicioID,
		ClienteID:  in.ClienteID,
		Titulo:     strings.TrimSpace(in.Titulo),
		Texto:      in.Texto,
	}
	if err := w.store.CreateOnce(ctx, key, comentario); err != nil {
		if errors.Is(err, idempotency.ErrAlreadyExists) {
			return w.duplicate(key), nil
		}
		metrics.Creation("comentario", outcomeFailed)
		return nil, err
	}
	metrics.Creation("comentario", outcomeCreated)
	w.logger.Info("Comentario created",
		zap.Int64("comentario_id", comentario.ID),
		zap.Int64("servicio_id", comentario.ServicioID),
		zap.String("idempotency_key", key),
	)

	if err := w.emitter.Emit(ctx, models.ComentarioCreado, models.ComentarioCreadoMessage{
		ComentarioID:   comentario.ID,
		ServicioID:     comentario.ServicioID,
		ClienteID:      comentario.ClienteID,
		Titulo:         comentario.Titulo,
		Texto:          comentario.Texto,
		IdempotencyKey: key,
	}); err != nil {
		w.logger.Error("Failed to emit comentario.creado",
			zap.Int64("comentario_id", comentario.ID),
			zap.Error(err),
		)
	}
	w.webhooks.Send(ctx, webhook.Event{
		Name:           models.ComentarioCreado,
		IdempotencyKey: models.EventIdempotencyKey("comentario", comentario.ID),
		Data: models.ComentarioEventData{
			ComentarioID: comentario.ID,
			ServicioID:   comentario.ServicioID,
			ClienteID:    comentario.ClienteID,
			Titulo:       comentario.Titulo,
			Texto:        comentario.Texto,
		},
	})

	return &ComentarioResult{Comentario: comentario, IdempotencyKey: key}, nil
}

func validateComentario(in ComentarioInput, key string) error {
	switch {
	case key == "":
		return &ValidationError{Field: "idempotency_key", Message: "La clave de idempotencia es obligatoria"}
	case in.ServicioID <= 0:
		return &ValidationError{Field: "servicio_id", Message: "servicio_id debe ser positivo"}
	case in.ClienteID <= 0:
		return &ValidationError{Field: "cliente_id", Message: "cliente_id debe ser positivo"}
	case strings.TrimSpace(in.Texto) == "":
		return &ValidationError{Field: "texto", Message: "El texto del comentario es obligatorio"}
	}
	return nil
}

func (w *ComentarioWorkflow) duplicate(key string) *ComentarioResult {
	metrics.Creation("comentario", outcomeDuplicate)
	w.logger.Info("Comentario ignored (duplicate)", zap.String("idempotency_key", key))
	return &ComentarioResult{IdempotencyKey: key, Duplicate: true}
}
