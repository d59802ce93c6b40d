package models

import (
	"time"
)

// DeliveryAttemptLog records one outbound webhook attempt.
type DeliveryAttemptLog struct {
	ID              int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Event           string    `gorm:"type:varchar(100);not null" json:"event"`
	IdempotencyKey  string    `gorm:"type:varchar(255);not null;index" json:"idempotency_key"`
	URL             string    `gorm:"not null" json:"url"`
	StartedAt       time.Time `gorm:"not null" json:"started_at"`
	FinishedAt      time.Time `gorm:"not null" json:"finished_at"`
	HTTPStatus      *int      `gorm:"type:integer" json:"http_status"`
	LatencyMs       *int      `gorm:"type:integer" json:"latency_ms"`
	ResponseSummary *string   `json:"response_summary"`
	Error           *string   `json:"error"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (DeliveryAttemptLog) TableName() string {
	return "delivery_attempt_log"
}
