package webhook

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gowebpki/jcs"

	"github.com/MarlonX-a/serverless/internal/models"
)

// NewEnvelope wraps data in the outbound envelope. key must be derived from
// the entity so that re-sending one logical event reuses it.
func NewEnvelope(event models.EventType, key string, data any, meta models.EnvelopeMetadata, now time.Time) (*models.EventEnvelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s data: %w", event, err)
	}
	return &models.EventEnvelope{
		Event:          string(event),
		Version:        models.EnvelopeVersion,
		IdempotencyKey: key,
		Timestamp:      now.UTC().Format(models.EnvelopeTimeFormat),
		Data:           raw,
		Metadata:       meta,
	}, nil
}

// EncodeEnvelope returns the RFC 8785 canonical bytes of env. These exact
// bytes are signed and sent.
func EncodeEnvelope(env *models.EventEnvelope) ([]byte, error) {
	raw, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal envelope: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalize envelope: %w", err)
	}
	return canonical, nil
}
