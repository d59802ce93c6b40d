package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/MarlonX-a/serverless/internal/models"
)

type lookupFunc func(ctx context.Context, id int64) (bool, error)

func (f lookupFunc) Exists(ctx context.Context, id int64) (bool, error) { return f(ctx, id) }

type fakeReplies struct {
	keys []string
	msgs []amqp.Publishing
}

func (r *fakeReplies) Publish(_ context.Context, _, routingKey string, msg amqp.Publishing) error {
	r.keys = append(r.keys, routingKey)
	r.msgs = append(r.msgs, msg)
	return nil
}

func validarRequest(t *testing.T, id int64) amqp.Delivery {
	t.Helper()
	body, err := json.Marshal(models.ValidarServicioRequest{ServicioID: id})
	require.NoError(t, err)
	return amqp.Delivery{
		Type:          models.PatternValidarServicio,
		ReplyTo:       "amq.gen-reply",
		CorrelationId: "corr-1",
		Body:          body,
	}
}

func TestHandleMessage_AnswersValidation(t *testing.T) {
	for _, exists := range []bool{true, false} {
		replies := &fakeReplies{}
		d := NewDispatcher(lookupFunc(func(_ context.Context, id int64) (bool, error) {
			return exists && id == 7, nil
		}), replies, zap.NewNop())

		require.NoError(t, d.HandleMessage(context.Background(), validarRequest(t, 7)))

		require.Len(t, replies.msgs, 1)
		assert.Equal(t, "amq.gen-reply", replies.keys[0])
		assert.Equal(t, "corr-1", replies.msgs[0].CorrelationId)

		var resp models.ValidarServicioResponse
		require.NoError(t, json.Unmarshal(replies.msgs[0].Body, &resp))
		assert.Equal(t, models.ValidarServicioResponse{ServicioID: 7, Existe: exists}, resp)
	}
}

func TestHandleMessage_LookupFailureSendsNoAnswer(t *testing.T) {
	replies := &fakeReplies{}
	d := NewDispatcher(lookupFunc(func(context.Context, int64) (bool, error) {
		return false, errors.New("db down")
	}), replies, zap.NewNop())

	assert.Error(t, d.HandleMessage(context.Background(), validarRequest(t, 7)))
	assert.Empty(t, replies.msgs)
}

func TestHandleMessage_MalformedRequest(t *testing.T) {
	d := NewDispatcher(lookupFunc(func(context.Context, int64) (bool, error) { return true, nil }), &fakeReplies{}, zap.NewNop())
	err := d.HandleMessage(context.Background(), amqp.Delivery{Type: models.PatternValidarServicio, ReplyTo: "r", Body: []byte("{")})
	assert.Error(t, err)
}

func TestHandleMessage_ComentarioCreadoIsAcked(t *testing.T) {
	replies := &fakeReplies{}
	d := NewDispatcher(lookupFunc(func(context.Context, int64) (bool, error) { return true, nil }), replies, zap.NewNop())

	body, err := json.Marshal(models.ComentarioCreadoMessage{ComentarioID: 1, ServicioID: 7})
	require.NoError(t, err)
	assert.NoError(t, d.HandleMessage(context.Background(), amqp.Delivery{Type: "comentario.creado", Body: body}))
	assert.Empty(t, replies.msgs)
}

func TestHandleMessage_UnknownTypeIsDropped(t *testing.T) {
	d := NewDispatcher(lookupFunc(func(context.Context, int64) (bool, error) { return true, nil }), &fakeReplies{}, zap.NewNop())
	assert.NoError(t, d.HandleMessage(context.Background(), amqp.Delivery{Type: "otro.evento"}))
}
