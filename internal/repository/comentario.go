package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/MarlonX-a/serverless/internal/idempotency"
	"github.com/MarlonX-a/serverless/internal/models"
)

type ComentarioRepository struct {
	db     *gorm.DB
	ledger *idempotency.GormLedger
}

func NewComentarioRepository(db *gorm.DB, ledger *idempotency.GormLedger) *ComentarioRepository {
	return &ComentarioRepository{db: db, ledger: ledger}
}

// CreateOnce records key and inserts c in one transaction. A key recorded
// before yields idempotency.ErrAlreadyExists and no row.
func (r *ComentarioRepository) CreateOnce(ctx context.Context, key string, c *models.Comentario) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := r.ledger.WithTx(tx).Record(ctx, key); err != nil {
			return err
		}
		if err := tx.Create(c).Error; err != nil {
			return fmt.Errorf("failed to insert comentario: %w", err)
		}
		return nil
	})
}

func (r *ComentarioRepository) Get(ctx context.Context, id int64) (*models.Comentario, error) {
	var c models.Comentario
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load comentario: %w", err)
	}
	return &c, nil
}

func (r *ComentarioRepository) List(ctx context.Context, page Page) ([]models.Comentario, error) {
	return r.list(r.db.WithContext(ctx), page)
}

// ListByServicio returns the comments attached to servicioID, newest first.
func (r *ComentarioRepository) ListByServicio(ctx context.Context, servicioID int64, page Page) ([]models.Comentario, error) {
	return r.list(r.db.WithContext(ctx).Where("servicio_id = ?", servicioID), page)
}

func (r *ComentarioRepository) list(query *gorm.DB, page Page) ([]models.Comentario, error) {
	page = page.normalized()
	comentarios := []models.Comentario{}
	err := query.
		Order("id DESC").
		Limit(page.Limit).
		Offset(page.Offset).
		Find(&comentarios).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list comentarios: %w", err)
	}
	return comentarios, nil
}
