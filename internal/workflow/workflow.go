// Package workflow orchestrates entity creation: idempotency, reference
// validation, persistence, the internal event and the outbound webhook.
//
// The ledger insert shares a transaction with the entity insert, so the
// unique key is the only thing deciding whether a request takes effect. The
// Has lookup in front of it only saves work for obvious retries.
package workflow

import (
	"context"
	"fmt"

	"github.com/MarlonX-a/serverless/internal/models"
	"github.com/MarlonX-a/serverless/internal/webhook"
)

// KeyChecker answers whether an operation key was already processed.
type KeyChecker interface {
	Has(ctx context.Context, key string) (bool, error)
}

// EventEmitter publishes internal events.
type EventEmitter interface {
	Emit(ctx context.Context, event models.EventType, payload any) error
}

// WebhookSender hands an event to the outbound dispatcher without waiting for it.
type WebhookSender interface {
	Send(ctx context.Context, ev webhook.Event)
}

// ValidationError rejects a request before anything durable happens.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

const (
	outcomeCreated   = "created"
	outcomeDuplicate = "duplicate"
	outcomeRejected  = "rejected"
	outcomeFailed    = "failed"
)
