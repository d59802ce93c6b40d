package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/MarlonX-a/serverless/internal/database"
	"github.com/MarlonX-a/serverless/internal/models"
)

// WebhookEventRepository stores accepted inbound webhooks.
type WebhookEventRepository struct {
	db *gorm.DB
}

func NewWebhookEventRepository(db *gorm.DB) *WebhookEventRepository {
	return &WebhookEventRepository{db: db}
}

// Insert stores rec. The unique index on idempotency_key decides duplicates:
// a conflicting insert returns ErrDuplicateEvent and leaves the table untouched.
func (r *WebhookEventRepository) Insert(ctx context.Context, rec *models.WebhookEventRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return ErrDuplicateEvent
		}
		return fmt.Errorf("failed to insert webhook event: %w", err)
	}
	return nil
}

// List returns stored events newest first. hasMore reports whether another
// page follows.
func (r *WebhookEventRepository) List(ctx context.Context, page Page) ([]models.WebhookEventRecord, bool, error) {
	page = page.normalized()
	events := []models.WebhookEventRecord{}

	// Fetch one extra row to determine has_more
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(page.Limit + 1).
		Offset(page.Offset).
		Find(&events).Error
	if err != nil {
		return nil, false, fmt.Errorf("failed to list webhook events: %w", err)
	}

	hasMore := len(events) > page.Limit
	if hasMore {
		events = events[:page.Limit]
	}
	return events, hasMore, nil
}
