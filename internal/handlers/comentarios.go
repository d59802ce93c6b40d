package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/MarlonX-a/serverless/internal/models"
	"github.com/MarlonX-a/serverless/internal/repository"
	"github.com/MarlonX-a/serverless/internal/workflow"
)

type ComentarioCreator interface {
	Create(ctx context.Context, in workflow.ComentarioInput) (*workflow.ComentarioResult, error)
}

type ComentarioReader interface {
	Get(ctx context.Context, id int64) (*models.Comentario, error)
	List(ctx context.Context, page repository.Page) ([]models.Comentario, error)
	ListByServicio(ctx context.Context, servicioID int64, page repository.Page) ([]models.Comentario, error)
}

// ComentarioHandler serves /api/v1/comentarios and the per-servicio listing.
type ComentarioHandler struct {
	creator ComentarioCreator
	reader  ComentarioReader
	logger  *zap.Logger
}

func NewComentarioHandler(creator ComentarioCreator, reader ComentarioReader, logger *zap.Logger) *ComentarioHandler {
	return &ComentarioHandler{creator: creator, reader: reader, logger: logger}
}

type CreateComentarioRequest struct {
	ServicioID     int64  `json:"servicio_id" validate:"required,gt=0"`
	ClienteID      int64  `json:"cliente_id" validate:"required,gt=0"`
	Titulo         string `json:"titulo" validate:"max=255"`
	Texto          string `json:"texto" validate:"required"`
	IdempotencyKey string `json:"idempotency_key" validate:"omitempty,max=255"`
}

// Create handles POST /api/v1/comentarios
func (h *ComentarioHandler) Create(c *fiber.Ctx) error {
	var req CreateComentarioRequest
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}

	res, err := h.creator.Create(c.UserContext(), workflow.ComentarioInput{
		ServicioID:     req.ServicioID,
		ClienteID:      req.ClienteID,
		Titulo:         req.Titulo,
		Texto:          req.Texto,
		IdempotencyKey: idempotencyKey(c, req.IdempotencyKey),
	})
	if err != nil {
		return writeCreateError(c, h.logger, err)
	}
	if res.Duplicate {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"mensaje":         "Comentario ignorado (duplicado)",
			"idempotency_key": res.IdempotencyKey,
		})
	}
	return c.Status(fiber.StatusCreated).JSON(res.Comentario)
}

// List handles GET /api/v1/comentarios
func (h *ComentarioHandler) List(c *fiber.Ctx) error {
	page, ok, err := parsePage(c)
	if !ok {
		return err
	}
	comentarios, err := h.reader.List(c.UserContext(), page)
	if err != nil {
		return h.listFailed(c, err)
	}
	return c.JSON(comentarios)
}

// ListByServicio handles GET /api/v1/servicios/:id/comentarios
func (h *ComentarioHandler) ListByServicio(c *fiber.Ctx) error {
	servicioID, ok, err := parseID(c, "id")
	if !ok {
		return err
	}
	page, ok, err := parsePage(c)
	if !ok {
		return err
	}
	comentarios, err := h.reader.ListByServicio(c.UserContext(), servicioID, page)
	if err != nil {
		return h.listFailed(c, err)
	}
	return c.JSON(comentarios)
}

// Get handles GET /api/v1/comentarios/:id
func (h *ComentarioHandler) Get(c *fiber.Ctx) error {
	id, ok, err := parseID(c, "id")
	if !ok {
		return err
	}
	comentario, err := h.reader.Get(c.UserContext(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "comentario not found",
			})
		}
		h.logger.Error("Failed to load comentario", zap.Int64("comentario_id", id), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch comentario",
		})
	}
	return c.JSON(comentario)
}

func (h *ComentarioHandler) listFailed(c *fiber.Ctx, err error) error {
	h.logger.Error("Failed to list comentarios", zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "Failed to fetch comentarios",
	})
}
