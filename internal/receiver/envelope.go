package receiver

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/MarlonX-a/serverless/internal/models"
)

// ErrMalformedEnvelope rejects a correctly signed body that is not an envelope.
var ErrMalformedEnvelope = errors.New("malformed event envelope")

const envelopeSchemaURL = "https://schemas.local/webhooks/event-envelope.json"

const envelopeSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["event", "version", "idempotency_key", "timestamp", "data"],
  "properties": {
    "event": {"type": "string", "minLength": 1},
    "version": {"type": "string", "minLength": 1},
    "idempotency_key": {"type": "string", "minLength": 1, "maxLength": 255},
    "timestamp": {"type": "string"},
    "data": {"type": "object"},
    "metadata": {
      "type": "object",
      "properties": {
        "source": {"type": "string"},
        "environment": {"type": "string"}
      }
    }
  }
}`

// supportedVersions accepts any 1.x envelope.
const supportedVersions = "^1.0"

type envelopeParser struct {
	schema     *jsonschema.Schema
	constraint *semver.Constraints
}

func newEnvelopeParser() (*envelopeParser, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(envelopeSchemaURL, strings.NewReader(envelopeSchema)); err != nil {
		return nil, fmt.Errorf("failed to load envelope schema: %w", err)
	}
	schema, err := c.Compile(envelopeSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("failed to compile envelope schema: %w", err)
	}
	constraint, err := semver.NewConstraint(supportedVersions)
	if err != nil {
		return nil, fmt.Errorf("invalid version constraint: %w", err)
	}
	return &envelopeParser{schema: schema, constraint: constraint}, nil
}

func (p *envelopeParser) parse(body []byte) (*models.EventEnvelope, error) {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if err := p.schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}

	var env models.EventEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	v, err := semver.NewVersion(env.Version)
	if err != nil {
		return nil, fmt.Errorf("%w: version %q: %v", ErrMalformedEnvelope, env.Version, err)
	}
	if !p.constraint.Check(v) {
		return nil, fmt.Errorf("%w: unsupported version %s", ErrMalformedEnvelope, env.Version)
	}
	return &env, nil
}
