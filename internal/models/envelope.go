package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// EventType names a domain event carried on the bus and in webhook envelopes.
type EventType string

const (
	ServicioCreado   EventType = "servicio.creado"
	ComentarioCreado EventType = "comentario.creado"
)

// EnvelopeVersion is the current envelope schema version.
const EnvelopeVersion = "1.0"

// EnvelopeTimeFormat renders timestamps with millisecond precision in UTC.
const EnvelopeTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// EventEnvelope is the wire format of an outbound webhook.
type EventEnvelope struct {
	Event          string           `json:"event"`
	Version        string           `json:"version"`
	IdempotencyKey string           `json:"idempotency_key"`
	Timestamp      string           `json:"timestamp"`
	Data           json.RawMessage  `json:"data"`
	Metadata       EnvelopeMetadata `json:"metadata"`
}

type EnvelopeMetadata struct {
	Source      string `json:"source"`
	Environment string `json:"environment"`
}

// EventIdempotencyKey derives the envelope key for a created entity, e.g.
// "comentario-42-creado". The same entity always yields the same key.
func EventIdempotencyKey(entity string, id int64) string {
	return fmt.Sprintf("%s-%d-creado", strings.ToLower(entity), id)
}
