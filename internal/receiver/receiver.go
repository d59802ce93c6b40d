// Package receiver accepts signed webhook deliveries.
//
// A request is checked in a fixed order: signature header present, MAC over
// the raw body, envelope shape, then the insert. The signature is verified
// before anything is stored, so forged requests never reach the dedup table.
// The unique idempotency_key index is the dedup gate; there is no prior lookup.
package receiver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/MarlonX-a/serverless/internal/metrics"
	"github.com/MarlonX-a/serverless/internal/models"
	"github.com/MarlonX-a/serverless/internal/repository"
	"github.com/MarlonX-a/serverless/internal/signature"
)

type Outcome string

const (
	Accepted  Outcome = "accepted"
	Duplicate Outcome = "duplicate"
)

// EventStore persists accepted events. Insert returns
// repository.ErrDuplicateEvent for a key that is already stored.
type EventStore interface {
	Insert(ctx context.Context, rec *models.WebhookEventRecord) error
}

// Forwarder hands accepted envelopes to the notification queue.
type Forwarder interface {
	Emit(ctx context.Context, event models.EventType, payload any) error
}

type Result struct {
	Outcome Outcome
	Event   *models.WebhookEventRecord
}

type Receiver struct {
	signer    *signature.Signer
	store     EventStore
	forwarder Forwarder
	parser    *envelopeParser
	logger    *zap.Logger
}

// New builds a receiver. forwarder may be nil when notifications are disabled.
func New(signer *signature.Signer, store EventStore, forwarder Forwarder, logger *zap.Logger) (*Receiver, error) {
	if signer == nil {
		return nil, signature.ErrNoSecret
	}
	parser, err := newEnvelopeParser()
	if err != nil {
		return nil, err
	}
	return &Receiver{
		signer:    signer,
		store:     store,
		forwarder: forwarder,
		parser:    parser,
		logger:    logger,
	}, nil
}

// Receive processes one inbound delivery. body must be the bytes exactly as
// received. Rejections come back as signature.ErrMissingSignature,
// signature.ErrInvalidSignature or ErrMalformedEnvelope.
func (r *Receiver) Receive(ctx context.Context, sigHeader string, body []byte) (*Result, error) {
	if strings.TrimSpace(sigHeader) == "" {
		metrics.WebhookReceived("rejected")
		return nil, signature.ErrMissingSignature
	}
	if err := r.signer.Check(body, sigHeader); err != nil {
		metrics.WebhookReceived("rejected")
		r.logger.Warn("Rejected webhook with bad signature", zap.Int("body_bytes", len(body)))
		return nil, err
	}

	env, err := r.parser.parse(body)
	if err != nil {
		metrics.WebhookReceived("rejected")
		r.logger.Warn("Rejected malformed webhook", zap.Error(err))
		return nil, err
	}

	rec := &models.WebhookEventRecord{
		Event:          env.Event,
		IdempotencyKey: env.IdempotencyKey,
		Payload:        datatypes.JSON(body),
	}
	if err := r.store.Insert(ctx, rec); err != nil {
		if errors.Is(err, repository.ErrDuplicateEvent) {
			metrics.WebhookReceived("duplicate")
			r.logger.Info("Duplicate webhook ignored",
				zap.String("event", env.Event),
				zap.String("idempotency_key", env.IdempotencyKey),
			)
			return &Result{Outcome: Duplicate}, nil
		}
		metrics.WebhookReceived("failed")
		return nil, fmt.Errorf("failed to store webhook event: %w", err)
	}

	metrics.WebhookReceived("accepted")
	r.logger.Info("Webhook event stored",
		zap.String("id", rec.ID.String()),
		zap.String("event", env.Event),
		zap.String("idempotency_key", env.IdempotencyKey),
	)
	r.forward(ctx, env.Event, body)
	return &Result{Outcome: Accepted, Event: rec}, nil
}

// forward is best effort: the event is already committed.
func (r *Receiver) forward(ctx context.Context, event string, body []byte) {
	if r.forwarder == nil {
		return
	}
	if err := r.forwarder.Emit(ctx, models.EventType(event), json.RawMessage(body)); err != nil {
		r.logger.Error("Failed to queue notification",
			zap.String("event", event),
			zap.Error(err),
		)
	}
}
