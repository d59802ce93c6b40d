package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeBroker struct {
	mu        sync.Mutex
	published []amqp.Publishing
	keys      []string
	replies   chan amqp.Delivery
	// respond builds the reply for a request; nil means never answer
	respond func(amqp.Publishing) *amqp.Delivery
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{replies: make(chan amqp.Delivery, 8)}
}

func (b *fakeBroker) Publish(_ context.Context, _, routingKey string, msg amqp.Publishing) error {
	b.mu.Lock()
	b.published = append(b.published, msg)
	b.keys = append(b.keys, routingKey)
	respond := b.respond
	b.mu.Unlock()

	if respond != nil {
		if d := respond(msg); d != nil {
			b.replies <- *d
		}
	}
	return nil
}

func (b *fakeBroker) DeclareQueue(string, bool, bool, bool) (amqp.Queue, error) {
	return amqp.Queue{Name: "amq.gen-reply"}, nil
}

func (b *fakeBroker) ConsumeMessages(string, string, bool, bool, bool, bool) (<-chan amqp.Delivery, error) {
	return b.replies, nil
}

type echoRequest struct {
	ID int64 `json:"id"`
}

type echoResponse struct {
	ID     int64 `json:"id"`
	Exists bool  `json:"exists"`
}

func startClient(t *testing.T, b *fakeBroker) *RPCClient {
	t.Helper()
	c := newRPCClient(b, b, "servicio_queue", zap.NewNop())
	require.NoError(t, c.Start())
	t.Cleanup(c.Stop)
	return c
}

func TestRPCClient_CallReturnsCorrelatedReply(t *testing.T) {
	b := newFakeBroker()
	b.respond = func(msg amqp.Publishing) *amqp.Delivery {
		var req echoRequest
		_ = json.Unmarshal(msg.Body, &req)
		body, _ := json.Marshal(echoResponse{ID: req.ID, Exists: true})
		return &amqp.Delivery{CorrelationId: msg.CorrelationId, Body: body}
	}
	c := startClient(t, b)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var resp echoResponse
	require.NoError(t, c.Call(ctx, "servicio.validar", echoRequest{ID: 7}, &resp))
	assert.Equal(t, int64(7), resp.ID)
	assert.True(t, resp.Exists)

	b.mu.Lock()
	defer b.mu.Unlock()
	require.Len(t, b.published, 1)
	assert.Equal(t, "servicio_queue", b.keys[0])
	assert.Equal(t, "servicio.validar", b.published[0].Type)
	assert.Equal(t, "amq.gen-reply", b.published[0].ReplyTo)
	assert.NotEmpty(t, b.published[0].CorrelationId)
	assert.NotEmpty(t, b.published[0].Expiration)
}

func TestRPCClient_IgnoresRepliesForOtherCalls(t *testing.T) {
	b := newFakeBroker()
	b.respond = func(msg amqp.Publishing) *amqp.Delivery {
		return &amqp.Delivery{CorrelationId: "someone-else", Body: []byte(`{"id":1}`)}
	}
	c := startClient(t, b)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := c.Call(ctx, "servicio.validar", echoRequest{ID: 1}, &echoResponse{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestRPCClient_TimesOutWithoutReply(t *testing.T) {
	c := startClient(t, newFakeBroker())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := c.Call(ctx, "servicio.validar", echoRequest{ID: 1}, &echoResponse{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRPCClient_CallBeforeStartFails(t *testing.T) {
	b := newFakeBroker()
	c := newRPCClient(b, b, "servicio_queue", zap.NewNop())

	err := c.Call(context.Background(), "servicio.validar", echoRequest{ID: 1}, nil)
	assert.Error(t, err)
}

func TestRPCClient_StoppedClientRejectsCalls(t *testing.T) {
	b := newFakeBroker()
	c := newRPCClient(b, b, "servicio_queue", zap.NewNop())
	require.NoError(t, c.Start())
	c.Stop()

	err := c.Call(context.Background(), "servicio.validar", echoRequest{ID: 1}, nil)
	assert.ErrorIs(t, err, ErrRPCClosed)
}

func TestRPCClient_StartRequiresTargetQueue(t *testing.T) {
	b := newFakeBroker()
	c := newRPCClient(b, b, "", zap.NewNop())
	assert.Error(t, c.Start())
}

func TestReply_PublishesToReplyQueue(t *testing.T) {
	b := newFakeBroker()
	req := amqp.Delivery{ReplyTo: "amq.gen-abc", CorrelationId: "corr-1", Type: "servicio.validar"}

	require.NoError(t, Reply(context.Background(), b, req, echoResponse{ID: 3, Exists: false}))

	require.Len(t, b.published, 1)
	assert.Equal(t, "amq.gen-abc", b.keys[0])
	assert.Equal(t, "corr-1", b.published[0].CorrelationId)
	assert.JSONEq(t, `{"id":3,"exists":false}`, string(b.published[0].Body))
}

func TestReply_RequiresReplyTo(t *testing.T) {
	err := Reply(context.Background(), newFakeBroker(), amqp.Delivery{Type: "servicio.validar"}, echoResponse{})
	assert.Error(t, err)
}
