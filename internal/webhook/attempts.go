package webhook

import (
	"context"

	"gorm.io/gorm"

	"github.com/MarlonX-a/serverless/internal/models"
)

// AttemptRecorder persists one row per delivery attempt.
type AttemptRecorder interface {
	RecordAttempt(ctx context.Context, attempt *models.DeliveryAttemptLog) error
}

// AttemptStore writes attempts to delivery_attempt_log.
type AttemptStore struct {
	db *gorm.DB
}

func NewAttemptStore(db *gorm.DB) *AttemptStore {
	return &AttemptStore{db: db}
}

func (s *AttemptStore) RecordAttempt(ctx context.Context, attempt *models.DeliveryAttemptLog) error {
	return s.db.WithContext(ctx).Create(attempt).Error
}
