// Package idempotency records processed operation keys. The unique key column
// is the deduplication gate: Record fails with ErrAlreadyExists for a key that
// was recorded before, and Has is only a shortcut in front of that insert.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/MarlonX-a/serverless/internal/database"
	"github.com/MarlonX-a/serverless/internal/models"
)

var (
	// ErrAlreadyExists reports that the key was recorded earlier.
	ErrAlreadyExists = errors.New("idempotency key already recorded")
	// ErrEmptyKey rejects blank keys.
	ErrEmptyKey = errors.New("idempotency key is empty")
)

// Ledger is the set of processed operation keys.
type Ledger interface {
	Has(ctx context.Context, key string) (bool, error)
	Record(ctx context.Context, key string) error
}

// GormLedger stores keys in the idempotency_records table.
type GormLedger struct {
	db    *gorm.DB
	nowFn func() time.Time
}

func NewGormLedger(db *gorm.DB) *GormLedger {
	return &GormLedger{db: db, nowFn: func() time.Time { return time.Now().UTC() }}
}

// WithTx returns a ledger that writes through tx, so the key commits or rolls
// back together with the guarded mutation.
func (l *GormLedger) WithTx(tx *gorm.DB) *GormLedger {
	return &GormLedger{db: tx, nowFn: l.nowFn}
}

func (l *GormLedger) Has(ctx context.Context, key string) (bool, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return false, ErrEmptyKey
	}

	var count int64
	err := l.db.WithContext(ctx).
		Model(&models.IdempotencyRecord{}).
		Where("key = ?", key).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("idempotency lookup failed: %w", err)
	}
	return count > 0, nil
}

func (l *GormLedger) Record(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrEmptyKey
	}

	record := &models.IdempotencyRecord{Key: key, ProcessedAt: l.nowFn()}
	if err := l.db.WithContext(ctx).Create(record).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("idempotency insert failed: %w", err)
	}
	return nil
}
