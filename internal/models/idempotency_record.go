package models

import "time"

// IdempotencyRecord marks an operation key as processed. Rows are never
// updated or deleted.
type IdempotencyRecord struct {
	Key         string    `gorm:"primaryKey;type:varchar(255)" json:"key"`
	ProcessedAt time.Time `gorm:"not null" json:"processed_at"`
}

func (IdempotencyRecord) TableName() string {
	return "idempotency_records"
}
