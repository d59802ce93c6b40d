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

type ServicioCreator interface {
	Create(ctx context.Context, in workflow.ServicioInput) (*workflow.ServicioResult, error)
}

type ServicioReader interface {
	Get(ctx context.Context, id int64) (*models.Servicio, error)
	List(ctx context.Context, page repository.Page) ([]models.Servicio, error)
}

// ServicioHandler serves /api/v1/servicios.
type ServicioHandler struct {
	creator ServicioCreator
	reader  ServicioReader
	logger  *zap.Logger
}

func NewServicioHandler(creator ServicioCreator, reader ServicioReader, logger *zap.Logger) *ServicioHandler {
	return &ServicioHandler{creator: creator, reader: reader, logger: logger}
}

type CreateServicioRequest struct {
	NombreServicio string `json:"nombre_servicio" validate:"required,max=255"`
	Descripcion    string `json:"descripcion"`
	Duracion       int    `json:"duracion" validate:"gte=0"`
	ProveedorID    *int64 `json:"proveedor_id" validate:"omitempty,gt=0"`
	CategoriaID    *int64 `json:"categoria_id" validate:"omitempty,gt=0"`
	IdempotencyKey string `json:"idempotency_key" validate:"omitempty,max=255"`
}

// Create handles POST /api/v1/servicios
func (h *ServicioHandler) Create(c *fiber.Ctx) error {
	var req CreateServicioRequest
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}

	res, err := h.creator.Create(c.UserContext(), workflow.ServicioInput{
		NombreServicio: req.NombreServicio,
		Descripcion:    req.Descripcion,
		Duracion:       req.Duracion,
		ProveedorID:    req.ProveedorID,
		CategoriaID:    req.CategoriaID,
		IdempotencyKey: idempotencyKey(c, req.IdempotencyKey),
	})
	if err != nil {
		return writeCreateError(c, h.logger, err)
	}
	if res.Duplicate {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"mensaje":         "Servicio ignorado (duplicado)",
			"idempotency_key": res.IdempotencyKey,
		})
	}

	c.Set(IdempotencyHeader, res.IdempotencyKey)
	return c.Status(fiber.StatusCreated).JSON(res.Servicio)
}

// List handles GET /api/v1/servicios
func (h *ServicioHandler) List(c *fiber.Ctx) error {
	page, ok, err := parsePage(c)
	if !ok {
		return err
	}
	servicios, err := h.reader.List(c.UserContext(), page)
	if err != nil {
		h.logger.Error("Failed to list servicios", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch servicios",
		})
	}
	return c.JSON(servicios)
}

// Get handles GET /api/v1/servicios/:id
func (h *ServicioHandler) Get(c *fiber.Ctx) error {
	id, ok, err := parseID(c, "id")
	if !ok {
		return err
	}
	servicio, err := h.reader.Get(c.UserContext(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "servicio not found",
			})
		}
		h.logger.Error("Failed to load servicio", zap.Int64("servicio_id", id), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch servicio",
		})
	}
	return c.JSON(servicio)
}
