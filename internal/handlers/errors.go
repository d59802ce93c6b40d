package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/MarlonX-a/serverless/internal/refvalidator"
	"github.com/MarlonX-a/serverless/internal/workflow"
)

// writeCreateError maps workflow errors to responses.
func writeCreateError(c *fiber.Ctx, logger *zap.Logger, err error) error {
	var verr *workflow.ValidationError
	switch {
	case errors.As(err, &verr):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":  verr.Message,
			"fields": map[string]string{verr.Field: "invalid"},
		})
	case errors.Is(err, refvalidator.ErrNotFound):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": err.Error(),
		})
	case errors.Is(err, refvalidator.ErrUnconfirmed):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "referenced servicio could not be confirmed, try again later",
		})
	}

	logger.Error("Creation failed", zap.String("path", c.Path()), zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "internal error",
	})
}
