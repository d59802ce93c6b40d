package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// ErrRPCClosed is returned by Call after the client has been stopped.
var ErrRPCClosed = errors.New("rpc client stopped")

// Publisher is the part of Connection used to send requests and replies.
type Publisher interface {
	Publish(ctx context.Context, exchange, routingKey string, msg amqp.Publishing) error
}

// replySource opens the exclusive queue responses are delivered to.
type replySource interface {
	DeclareQueue(name string, durable, autoDelete, exclusive bool) (amqp.Queue, error)
	ConsumeMessages(queue, consumer string, autoAck, exclusive, noLocal, noWait bool) (<-chan amqp.Delivery, error)
}

// RPCClient sends request messages to a queue and waits for the correlated reply
// on a private, broker-named reply queue.
type RPCClient struct {
	pub         Publisher
	replies     replySource
	targetQueue string
	logger      *zap.Logger

	mu         sync.Mutex
	replyQueue string
	pending    map[string]chan amqp.Delivery
	stopped    bool
	stopChan   chan struct{}
	wg         sync.WaitGroup
}

// NewRPCClient builds a client that publishes requests to targetQueue.
func NewRPCClient(conn *Connection, targetQueue string, logger *zap.Logger) *RPCClient {
	return newRPCClient(conn, conn, targetQueue, logger)
}

func newRPCClient(pub Publisher, replies replySource, targetQueue string, logger *zap.Logger) *RPCClient {
	return &RPCClient{
		pub:         pub,
		replies:     replies,
		targetQueue: targetQueue,
		logger:      logger,
		pending:     make(map[string]chan amqp.Delivery),
		stopChan:    make(chan struct{}),
	}
}

// Start declares the reply queue and begins routing replies to waiting callers.
func (c *RPCClient) Start() error {
	if c.targetQueue == "" {
		return fmt.Errorf("rpc target queue is required")
	}
	deliveries, err := c.listen()
	if err != nil {
		return err
	}
	c.wg.Add(1)
	go c.route(deliveries)
	return nil
}

func (c *RPCClient) listen() (<-chan amqp.Delivery, error) {
	q, err := c.replies.DeclareQueue("", false, true, true)
	if err != nil {
		return nil, fmt.Errorf("failed to declare reply queue: %w", err)
	}
	deliveries, err := c.replies.ConsumeMessages(q.Name, "", true, true, false, false)
	if err != nil {
		return nil, fmt.Errorf("failed to consume reply queue: %w", err)
	}

	c.mu.Lock()
	c.replyQueue = q.Name
	c.mu.Unlock()

	c.logger.Info("RPC reply queue ready",
		zap.String("reply_queue", q.Name),
		zap.String("target_queue", c.targetQueue),
	)
	return deliveries, nil
}

// route hands each reply to the caller waiting on its correlation id. When the
// channel drops it re-declares the reply queue once the connection has recovered.
func (c *RPCClient) route(deliveries <-chan amqp.Delivery) {
	defer c.wg.Done()
	for {
		select {
		case <-c.stopChan:
			return
		case d, ok := <-deliveries:
			if ok {
				c.resolve(d)
				continue
			}

			c.logger.Warn("RPC reply channel closed, waiting for reconnection...")
			c.mu.Lock()
			c.replyQueue = ""
			c.mu.Unlock()

			for {
				select {
				case <-c.stopChan:
					return
				case <-time.After(2 * time.Second):
				}
				next, err := c.listen()
				if err != nil {
					c.logger.Error("Failed to restore RPC reply queue", zap.Error(err))
					continue
				}
				deliveries = next
				break
			}
		}
	}
}

func (c *RPCClient) resolve(d amqp.Delivery) {
	c.mu.Lock()
	ch, ok := c.pending[d.CorrelationId]
	c.mu.Unlock()

	if !ok {
		c.logger.Debug("Dropping RPC reply with unknown correlation id",
			zap.String("correlation_id", d.CorrelationId),
		)
		return
	}
	// Buffered with room for exactly one reply; later duplicates are dropped
	select {
	case ch <- d:
	default:
	}
}

// Call publishes req under pattern and decodes the correlated reply into resp.
// The caller bounds the wait through ctx.
func (c *RPCClient) Call(ctx context.Context, pattern string, req, resp any) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal rpc request: %w", err)
	}

	correlationID := uuid.NewString()
	replyCh := make(chan amqp.Delivery, 1)

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return ErrRPCClosed
	}
	replyQueue := c.replyQueue
	if replyQueue == "" {
		c.mu.Unlock()
		return fmt.Errorf("rpc reply queue is not ready")
	}
	c.pending[correlationID] = replyCh
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, correlationID)
		c.mu.Unlock()
	}()

	msg := amqp.Publishing{
		CorrelationId: correlationID,
		ReplyTo:       replyQueue,
		Type:          pattern,
		DeliveryMode:  amqp.Transient,
		Body:          body,
	}
	// Requests nobody picks up before the caller gives up are dropped by the broker
	if deadline, ok := ctx.Deadline(); ok {
		if ttl := time.Until(deadline).Milliseconds(); ttl > 0 {
			msg.Expiration = strconv.FormatInt(ttl, 10)
		}
	}

	if err := c.pub.Publish(ctx, "", c.targetQueue, msg); err != nil {
		return fmt.Errorf("failed to publish rpc request %s: %w", pattern, err)
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("rpc %s: %w", pattern, ctx.Err())
	case <-c.stopChan:
		return ErrRPCClosed
	case d := <-replyCh:
		if resp == nil {
			return nil
		}
		if err := json.Unmarshal(d.Body, resp); err != nil {
			return fmt.Errorf("failed to decode rpc response %s: %w", pattern, err)
		}
		return nil
	}
}

// Stop fails pending calls and stops routing replies.
func (c *RPCClient) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	close(c.stopChan)
	c.mu.Unlock()
	c.wg.Wait()
}

// Reply answers an RPC request delivery on its reply queue.
func Reply(ctx context.Context, conn Publisher, request amqp.Delivery, resp any) error {
	if request.ReplyTo == "" {
		return fmt.Errorf("request %q has no reply_to", request.Type)
	}
	body, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("failed to marshal rpc response: %w", err)
	}
	return conn.Publish(ctx, "", request.ReplyTo, amqp.Publishing{
		CorrelationId: request.CorrelationId,
		Type:          request.Type,
		DeliveryMode:  amqp.Transient,
		Body:          body,
	})
}
