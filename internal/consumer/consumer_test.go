package consumer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeAcknowledger struct {
	mu       sync.Mutex
	acks     []uint64
	nacks    []uint64
	requeued []bool
}

func (a *fakeAcknowledger) Ack(tag uint64, _ bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acks = append(a.acks, tag)
	return nil
}

func (a *fakeAcknowledger) Nack(tag uint64, _ bool, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nacks = append(a.nacks, tag)
	a.requeued = append(a.requeued, requeue)
	return nil
}

func (a *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

func (a *fakeAcknowledger) counts() (int, int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.acks), len(a.nacks)
}

func TestProcessMessage_AcksOnSuccess(t *testing.T) {
	ack := &fakeAcknowledger{}
	msg := amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, Body: []byte(`{}`)}

	var seen []byte
	ProcessMessage(context.Background(), zap.NewNop(), "q", msg, HandlerFunc(func(_ context.Context, d amqp.Delivery) error {
		seen = d.Body
		return nil
	}))

	assert.Equal(t, []byte(`{}`), seen)
	assert.Equal(t, []uint64{1}, ack.acks)
	assert.Empty(t, ack.nacks)
}

func TestProcessMessage_NacksWithoutRequeueOnFailure(t *testing.T) {
	ack := &fakeAcknowledger{}
	msg := amqp.Delivery{Acknowledger: ack, DeliveryTag: 9}

	ProcessMessage(context.Background(), zap.NewNop(), "q", msg, HandlerFunc(func(context.Context, amqp.Delivery) error {
		return errors.New("bad payload")
	}))

	assert.Empty(t, ack.acks)
	assert.Equal(t, []uint64{9}, ack.nacks)
	assert.Equal(t, []bool{false}, ack.requeued)
}

type fakeSource struct {
	mu        sync.Mutex
	declared  []string
	cancelled []string
	messages  chan amqp.Delivery
}

func (s *fakeSource) DeclareQueue(name string, _, _, _ bool) (amqp.Queue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.declared = append(s.declared, name)
	return amqp.Queue{Name: name}, nil
}

func (s *fakeSource) SetQoS(int, int, bool) error { return nil }

func (s *fakeSource) ConsumeMessages(string, string, bool, bool, bool, bool) (<-chan amqp.Delivery, error) {
	return s.messages, nil
}

func (s *fakeSource) CancelConsumer(tag string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled = append(s.cancelled, tag)
	return nil
}

func TestRunner_ProcessesUntilStopped(t *testing.T) {
	src := &fakeSource{messages: make(chan amqp.Delivery, 4)}
	ack := &fakeAcknowledger{}

	handled := make(chan struct{}, 4)
	r := NewRunner(src, "test", "webhook_aceptados", 5, HandlerFunc(func(context.Context, amqp.Delivery) error {
		handled <- struct{}{}
		return nil
	}), zap.NewNop())
	require.NoError(t, r.Start())

	src.messages <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 1}
	src.messages <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 2}
	for i := 0; i < 2; i++ {
		select {
		case <-handled:
		case <-time.After(time.Second):
			t.Fatal("message was not handled")
		}
	}

	require.NoError(t, r.Stop())
	acks, nacks := ack.counts()
	assert.Equal(t, 2, acks)
	assert.Equal(t, 0, nacks)
	assert.Equal(t, []string{"webhook_aceptados"}, src.declared)
	assert.Len(t, src.cancelled, 1)
}

func TestRunner_RequiresQueue(t *testing.T) {
	r := NewRunner(&fakeSource{}, "test", "", 1, HandlerFunc(func(context.Context, amqp.Delivery) error { return nil }), zap.NewNop())
	assert.Error(t, r.Start())
}
