package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// WebhookEventRecord is an inbound webhook accepted by the receiver.
type WebhookEventRecord struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Event          string         `gorm:"type:varchar(100);not null" json:"event"`
	IdempotencyKey string         `gorm:"type:varchar(255);not null;uniqueIndex:ux_webhook_events_idempotency_key" json:"idempotency_key"`
	Payload        datatypes.JSON `gorm:"type:jsonb;not null" json:"payload"`
	CreatedAt      time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

func (WebhookEventRecord) TableName() string {
	return "webhook_events"
}
