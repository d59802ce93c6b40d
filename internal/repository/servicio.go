package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/MarlonX-a/serverless/internal/idempotency"
	"github.com/MarlonX-a/serverless/internal/models"
)

type ServicioRepository struct {
	db     *gorm.DB
	ledger *idempotency.GormLedger
}

func NewServicioRepository(db *gorm.DB, ledger *idempotency.GormLedger) *ServicioRepository {
	return &ServicioRepository{db: db, ledger: ledger}
}

// CreateOnce records key and inserts s in one transaction. It returns
// idempotency.ErrAlreadyExists, and inserts nothing, when key was recorded before.
func (r *ServicioRepository) CreateOnce(ctx context.Context, key string, s *models.Servicio) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := r.ledger.WithTx(tx).Record(ctx, key); err != nil {
			return err
		}
		if err := tx.Create(s).Error; err != nil {
			return fmt.Errorf("failed to insert servicio: %w", err)
		}
		return nil
	})
}

// Exists reports whether a Servicio with id is stored.
func (r *ServicioRepository) Exists(ctx context.Context, id int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Servicio{}).
		Where("id = ?", id).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to count servicios: %w", err)
	}
	return count > 0, nil
}

func (r *ServicioRepository) Get(ctx context.Context, id int64) (*models.Servicio, error) {
	var s models.Servicio
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load servicio: %w", err)
	}
	return &s, nil
}

func (r *ServicioRepository) List(ctx context.Context, page Page) ([]models.Servicio, error) {
	page = page.normalized()
	servicios := []models.Servicio{}
	err := r.db.WithContext(ctx).
		Order("id DESC").
		Limit(page.Limit).
		Offset(page.Offset).
		Find(&servicios).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list servicios: %w", err)
	}
	return servicios, nil
}
