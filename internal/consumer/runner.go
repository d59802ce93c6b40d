package consumer

import (
	"context"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Source is the part of the bus connection a Runner consumes from.
type Source interface {
	DeclareQueue(name string, durable, autoDelete, exclusive bool) (amqp.Queue, error)
	SetQoS(prefetchCount, prefetchSize int, global bool) error
	ConsumeMessages(queue, consumer string, autoAck, exclusive, noLocal, noWait bool) (<-chan amqp.Delivery, error)
	CancelConsumer(consumerTag string) error
}

// Runner consumes a durable queue and feeds every delivery through ProcessMessage.
type Runner struct {
	source        Source
	queue         string
	prefetchCount int
	handler       Handler
	logger        *zap.Logger
	ctx           context.Context
	cancel        context.CancelFunc
	consumerTag   string
	retryDelay    time.Duration
	wg            sync.WaitGroup
}

// NewRunner creates a runner for queue. name prefixes the consumer tag.
func NewRunner(source Source, name, queue string, prefetchCount int, handler Handler, logger *zap.Logger) *Runner {
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		source:        source,
		queue:         queue,
		prefetchCount: prefetchCount,
		handler:       handler,
		logger:        logger,
		ctx:           ctx,
		cancel:        cancel,
		consumerTag:   fmt.Sprintf("%s-%d", name, time.Now().UnixNano()),
		retryDelay:    2 * time.Second,
	}
}

// Start declares the queue and starts consuming it.
func (r *Runner) Start() error {
	if r.queue == "" {
		return fmt.Errorf("queue is required")
	}

	messages, err := r.subscribe()
	if err != nil {
		return err
	}

	r.wg.Add(1)
	go r.processMessages(messages)

	r.logger.Info("Consumer started",
		zap.String("queue", r.queue),
		zap.String("consumer_tag", r.consumerTag),
	)
	return nil
}

func (r *Runner) subscribe() (<-chan amqp.Delivery, error) {
	if _, err := r.source.DeclareQueue(r.queue, true, false, false); err != nil {
		return nil, err
	}
	if err := r.source.SetQoS(r.prefetchCount, 0, false); err != nil {
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}
	messages, err := r.source.ConsumeMessages(
		r.queue,
		r.consumerTag,
		false, // autoAck (we'll manually ACK)
		false, // exclusive
		false, // noLocal
		false, // noWait
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start consuming from queue %s: %w", r.queue, err)
	}
	return messages, nil
}

// Stop cancels the consumer and waits for the in-flight message to finish.
func (r *Runner) Stop() error {
	r.logger.Info("Stopping consumer",
		zap.String("queue", r.queue),
		zap.String("consumer_tag", r.consumerTag),
	)
	r.cancel()

	err := r.source.CancelConsumer(r.consumerTag)
	if err != nil {
		r.logger.Error("Failed to cancel consumer",
			zap.String("consumer_tag", r.consumerTag),
			zap.Error(err),
		)
	}
	r.wg.Wait()

	r.logger.Info("Consumer stopped", zap.String("queue", r.queue))
	return err
}

func (r *Runner) processMessages(messages <-chan amqp.Delivery) {
	defer r.wg.Done()
	for {
		select {
		case <-r.ctx.Done():
			return
		case msg, ok := <-messages:
			if ok {
				ProcessMessage(r.ctx, r.logger, r.queue, msg, r.handler)
				continue
			}

			r.logger.Warn("Message channel closed, waiting for reconnection...",
				zap.String("queue", r.queue),
			)
			// The connection reconnects on its own; keep resubscribing until it is back
			next, ok := r.resubscribe()
			if !ok {
				return
			}
			messages = next
		}
	}
}

func (r *Runner) resubscribe() (<-chan amqp.Delivery, bool) {
	for {
		select {
		case <-r.ctx.Done():
			return nil, false
		case <-time.After(r.retryDelay):
		}

		messages, err := r.subscribe()
		if err != nil {
			r.logger.Error("Failed to restart consuming after channel close",
				zap.String("queue", r.queue),
				zap.Error(err),
			)
			continue
		}
		return messages, true
	}
}
