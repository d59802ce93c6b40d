package receiver

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/MarlonX-a/serverless/internal/models"
	"github.com/MarlonX-a/serverless/internal/repository"
	"github.com/MarlonX-a/serverless/internal/signature"
	"github.com/MarlonX-a/serverless/internal/webhook"
)

type memEvents struct {
	mu      sync.Mutex
	records map[string]models.WebhookEventRecord
	err     error
}

func newMemEvents() *memEvents {
	return &memEvents{records: make(map[string]models.WebhookEventRecord)}
}

func (m *memEvents) Insert(_ context.Context, rec *models.WebhookEventRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if _, ok := m.records[rec.IdempotencyKey]; ok {
		return repository.ErrDuplicateEvent
	}
	m.records[rec.IdempotencyKey] = *rec
	return nil
}

func (m *memEvents) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

type memForwarder struct {
	mu     sync.Mutex
	events []models.EventType
	bodies []json.RawMessage
	err    error
}

func (f *memForwarder) Emit(_ context.Context, event models.EventType, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	f.bodies = append(f.bodies, payload.(json.RawMessage))
	return f.err
}

const secret = "shared-secret"

func newReceiver(t *testing.T, store EventStore, fwd Forwarder) *Receiver {
	t.Helper()
	signer, err := signature.NewSigner(secret)
	require.NoError(t, err)
	r, err := New(signer, store, fwd, zap.NewNop())
	require.NoError(t, err)
	return r
}

func signedEnvelope(t *testing.T, key string) ([]byte, string) {
	t.Helper()
	env, err := webhook.NewEnvelope(models.ComentarioCreado, key,
		models.ComentarioEventData{ComentarioID: 4, ServicioID: 7, ClienteID: 2, Texto: "hola"},
		models.EnvelopeMetadata{Source: "comentario-ms", Environment: "test"}, time.Now())
	require.NoError(t, err)
	body, err := webhook.EncodeEnvelope(env)
	require.NoError(t, err)
	signer, err := signature.NewSigner(secret)
	require.NoError(t, err)
	return body, signer.Sign(body)
}

func TestReceive_AcceptsSignedEnvelope(t *testing.T) {
	store := newMemEvents()
	fwd := &memForwarder{}
	r := newReceiver(t, store, fwd)

	body, sig := signedEnvelope(t, "comentario-4-creado")
	res, err := r.Receive(context.Background(), sig, body)
	require.NoError(t, err)
	assert.Equal(t, Accepted, res.Outcome)
	require.NotNil(t, res.Event)
	assert.Equal(t, "comentario.creado", res.Event.Event)
	assert.JSONEq(t, string(body), string(res.Event.Payload))

	assert.Equal(t, 1, store.count())
	assert.Equal(t, []models.EventType{models.ComentarioCreado}, fwd.events)
	assert.JSONEq(t, string(body), string(fwd.bodies[0]))
}

func TestReceive_MissingSignature(t *testing.T) {
	store := newMemEvents()
	r := newReceiver(t, store, nil)

	body, _ := signedEnvelope(t, "k")
	_, err := r.Receive(context.Background(), "  ", body)
	assert.ErrorIs(t, err, signature.ErrMissingSignature)
	assert.Zero(t, store.count())
}

func TestReceive_ForgedSignatureStoresNothing(t *testing.T) {
	store := newMemEvents()
	fwd := &memForwarder{}
	r := newReceiver(t, store, fwd)

	body, _ := signedEnvelope(t, "k")
	forger, err := signature.NewSigner("guessed-secret")
	require.NoError(t, err)

	_, err = r.Receive(context.Background(), forger.Sign(body), body)
	assert.ErrorIs(t, err, signature.ErrInvalidSignature)
	assert.Zero(t, store.count())
	assert.Empty(t, fwd.events)
}

func TestReceive_SignatureCoversRawBytes(t *testing.T) {
	store := newMemEvents()
	r := newReceiver(t, store, nil)

	body, sig := signedEnvelope(t, "k")
	var doc map[string]any
	require.NoError(t, json.Unmarshal(body, &doc))
	reencoded, err := json.MarshalIndent(doc, "", "  ")
	require.NoError(t, err)

	_, err = r.Receive(context.Background(), sig, reencoded)
	assert.ErrorIs(t, err, signature.ErrInvalidSignature)
	assert.Zero(t, store.count())
}

func TestReceive_DeduplicatesByIdempotencyKey(t *testing.T) {
	store := newMemEvents()
	fwd := &memForwarder{}
	r := newReceiver(t, store, fwd)

	body, sig := signedEnvelope(t, "comentario-4-creado")
	first, err := r.Receive(context.Background(), sig, body)
	require.NoError(t, err)
	second, err := r.Receive(context.Background(), sig, body)
	require.NoError(t, err)

	assert.Equal(t, Accepted, first.Outcome)
	assert.Equal(t, Duplicate, second.Outcome)
	assert.Equal(t, 1, store.count())
	assert.Len(t, fwd.events, 1)
}

func TestReceive_ConcurrentDuplicatesStoreOnce(t *testing.T) {
	store := newMemEvents()
	r := newReceiver(t, store, nil)
	body, sig := signedEnvelope(t, "servicio-1-creado")

	var wg sync.WaitGroup
	var mu sync.Mutex
	outcomes := map[Outcome]int{}
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := r.Receive(context.Background(), sig, body)
			if err != nil {
				return
			}
			mu.Lock()
			outcomes[res.Outcome]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, outcomes[Accepted])
	assert.Equal(t, 9, outcomes[Duplicate])
	assert.Equal(t, 1, store.count())
}

func TestReceive_MalformedEnvelope(t *testing.T) {
	signer, err := signature.NewSigner(secret)
	require.NoError(t, err)

	tests := map[string]string{
		"not json":          `hello`,
		"missing key":       `{"event":"x","version":"1.0","timestamp":"t","data":{}}`,
		"empty key":         `{"event":"x","version":"1.0","idempotency_key":"","timestamp":"t","data":{}}`,
		"data not object":   `{"event":"x","version":"1.0","idempotency_key":"k","timestamp":"t","data":"nope"}`,
		"unsupported major": `{"event":"x","version":"2.0","idempotency_key":"k","timestamp":"t","data":{}}`,
		"bad version":       `{"event":"x","version":"latest","idempotency_key":"k","timestamp":"t","data":{}}`,
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			store := newMemEvents()
			r := newReceiver(t, store, nil)
			_, err := r.Receive(context.Background(), signer.Sign([]byte(raw)), []byte(raw))
			assert.ErrorIs(t, err, ErrMalformedEnvelope)
			assert.Zero(t, store.count())
		})
	}
}

func TestReceive_ForwardFailureKeepsEvent(t *testing.T) {
	store := newMemEvents()
	r := newReceiver(t, store, &memForwarder{err: errors.New("bus down")})

	body, sig := signedEnvelope(t, "k")
	res, err := r.Receive(context.Background(), sig, body)
	require.NoError(t, err)
	assert.Equal(t, Accepted, res.Outcome)
	assert.Equal(t, 1, store.count())
}

func TestReceive_StoreFailureIsReturned(t *testing.T) {
	store := newMemEvents()
	store.err = errors.New("db down")
	r := newReceiver(t, store, nil)

	body, sig := signedEnvelope(t, "k")
	_, err := r.Receive(context.Background(), sig, body)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMalformedEnvelope)
}
