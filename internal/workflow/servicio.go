package workflow

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/MarlonX-a/serverless/internal/idempotency"
	"github.com/MarlonX-a/serverless/internal/metrics"
	"github.com/MarlonX-a/serverless/internal/models"
	"github.com/MarlonX-a/serverless/internal/webhook"
)

// ServicioStore persists a Servicio together with its operation key.
type ServicioStore interface {
	CreateOnce(ctx context.Context, key string, s *models.Servicio) error
}

type ServicioInput struct {
	NombreServicio string
	Descripcion    string
	Duracion       int
	ProveedorID    *int64
	CategoriaID    *int64
	// IdempotencyKey is optional; a fresh key is generated when empty.
	IdempotencyKey string
}

type ServicioResult struct {
	Servicio       *models.Servicio
	IdempotencyKey string
	Duplicate      bool
}

type ServicioWorkflow struct {
	ledger   KeyChecker
	store    ServicioStore
	emitter  EventEmitter
	webhooks WebhookSender
	logger   *zap.Logger
}

func NewServicioWorkflow(ledger KeyChecker, store ServicioStore, emitter EventEmitter, webhooks WebhookSender, logger *zap.Logger) *ServicioWorkflow {
	return &ServicioWorkflow{
		ledger:   ledger,
		store:    store,
		emitter:  emitter,
		webhooks: webhooks,
		logger:   logger,
	}
}

func (w *ServicioWorkflow) Create(ctx context.Context, in ServicioInput) (*ServicioResult, error) {
	nombre := strings.TrimSpace(in.NombreServicio)
	if nombre == "" {
		metrics.Creation("servicio", outcomeRejected)
		return nil, &ValidationError{Field: "nombre_servicio", Message: "El nombre del servicio es obligatorio"}
	}
	if in.Duracion < 0 {
		metrics.Creation("servicio", outcomeRejected)
		return nil, &ValidationError{Field: "duracion", Message: "La duración no puede ser negativa"}
	}

	key := strings.TrimSpace(in.IdempotencyKey)
	if key == "" {
		key = uuid.NewString()
	} else if w.seen(ctx, key) {
		return w.duplicate(key), nil
	}

	servicio := &models.Servicio{
		NombreServicio: nombre,
		Descripcion:    in.Descripcion,
		Duracion:       in.Duracion,
		ProveedorID:    in.ProveedorID,
		CategoriaID:    in.CategoriaID,
	}
	if err := w.store.CreateOnce(ctx, key, servicio); err != nil {
		if errors.Is(err, idempotency.ErrAlreadyExists) {
			return w.duplicate(key), nil
		}
		metrics.Creation("servicio", outcomeFailed)
		return nil, err
	}
	metrics.Creation("servicio", outcomeCreated)
	w.logger.Info("Servicio created",
		zap.Int64("servicio_id", servicio.ID),
		zap.String("idempotency_key", key),
	)

	// Committed from here on: side effects are reported, never rolled back
	data := models.ServicioCreadoMessage{
		ServicioID:     servicio.ID,
		NombreServicio: servicio.NombreServicio,
		Descripcion:    servicio.Descripcion,
		Duracion:       servicio.Duracion,
		ProveedorID:    servicio.ProveedorID,
		CategoriaID:    servicio.CategoriaID,
	}
	if err := w.emitter.Emit(ctx, models.ServicioCreado, data); err != nil {
		w.logger.Error("Failed to emit servicio.creado",
			zap.Int64("servicio_id", servicio.ID),
			zap.Error(err),
		)
	}
	w.webhooks.Send(ctx, webhook.Event{
		Name:           models.ServicioCreado,
		IdempotencyKey: models.EventIdempotencyKey("servicio", servicio.ID),
		Data:           data,
	})

	return &ServicioResult{Servicio: servicio, IdempotencyKey: key}, nil
}

func (w *ServicioWorkflow) seen(ctx context.Context, key string) bool {
	return seen(ctx, w.ledger, key, w.logger)
}

func (w *ServicioWorkflow) duplicate(key string) *ServicioResult {
	metrics.Creation("servicio", outcomeDuplicate)
	w.logger.Info("Servicio ignored (duplicate)", zap.String("idempotency_key", key))
	return &ServicioResult{IdempotencyKey: key, Duplicate: true}
}

// seen is the read-only shortcut in front of the transactional insert. A
// failed lookup is not fatal because the insert still decides.
func seen(ctx context.Context, ledger KeyChecker, key string, logger *zap.Logger) bool {
	has, err := ledger.Has(ctx, key)
	if err != nil {
		logger.Warn("Idempotency lookup failed, relying on insert",
			zap.String("idempotency_key", key),
			zap.Error(err),
		)
		return false
	}
	return has
}
