// Package webhook builds, signs and delivers outbound event envelopes.
//
// Delivery is a single best-effort attempt bounded by a timeout. Failures are
// logged, counted and recorded in delivery_attempt_log, and never reach the
// workflow that produced the event.
package webhook

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/MarlonX-a/serverless/internal/metrics"
	"github.com/MarlonX-a/serverless/internal/models"
	"github.com/MarlonX-a/serverless/internal/signature"
)

const (
	defaultTimeout             = 10 * time.Second
	defaultMaxResponseBodySize = 1024
	maxSummaryLength           = 500
	attemptWriteTimeout        = 5 * time.Second
)

// ErrNoEndpoint means no destination URL was configured.
var ErrNoEndpoint = errors.New("webhook endpoint is not configured")

// Config describes the single destination of a producer.
type Config struct {
	URL                 string
	BearerToken         string
	Timeout             time.Duration
	Source              string
	Environment         string
	MaxResponseBodySize int
}

// Event is what a workflow hands to the dispatcher.
type Event struct {
	Name           models.EventType
	IdempotencyKey string
	Data           any
}

// DeliveryError describes a failed attempt.
type DeliveryError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *DeliveryError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("webhook %s answered %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("webhook %s failed: %v", e.URL, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

type Dispatcher struct {
	cfg      Config
	signer   *signature.Signer
	client   *http.Client
	attempts AttemptRecorder
	logger   *zap.Logger
	nowFn    func() time.Time
	wg       sync.WaitGroup
}

// NewDispatcher validates the destination at startup. attempts may be nil.
func NewDispatcher(cfg Config, signer *signature.Signer, attempts AttemptRecorder, logger *zap.Logger) (*Dispatcher, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, ErrNoEndpoint
	}
	if signer == nil {
		return nil, signature.ErrNoSecret
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxResponseBodySize <= 0 {
		cfg.MaxResponseBodySize = defaultMaxResponseBodySize
	}
	return &Dispatcher{
		cfg:      cfg,
		signer:   signer,
		client:   &http.Client{Timeout: cfg.Timeout},
		attempts: attempts,
		logger:   logger,
		nowFn:    time.Now,
	}, nil
}

// Send delivers ev in the background. The request context is detached so the
// delivery outlives the HTTP request that triggered it; Wait drains it.
func (d *Dispatcher) Send(ctx context.Context, ev Event) {
	ctx = context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.Deliver(ctx, ev); err != nil {
			d.logger.Warn("Webhook delivery failed",
				zap.String("event", string(ev.Name)),
				zap.String("idempotency_key", ev.IdempotencyKey),
				zap.Error(err),
			)
		}
	}()
}

// Wait blocks until every background delivery has finished or ctx ends.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Deliver performs one signed POST and returns a *DeliveryError on failure.
func (d *Dispatcher) Deliver(ctx context.Context, ev Event) error {
	env, err := NewEnvelope(ev.Name, ev.IdempotencyKey, ev.Data, models.EnvelopeMetadata{
		Source:      d.cfg.Source,
		Environment: d.cfg.Environment,
	}, d.nowFn())
	if err != nil {
		return err
	}
	body, err := EncodeEnvelope(env)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	attempt := &models.DeliveryAttemptLog{
		Event:          env.Event,
		IdempotencyKey: env.IdempotencyKey,
		URL:            d.cfg.URL,
		StartedAt:      d.nowFn(),
	}
	deliveryErr := d.post(ctx, body, attempt)
	attempt.FinishedAt = d.nowFn()
	latency := int(attempt.FinishedAt.Sub(attempt.StartedAt).Milliseconds())
	attempt.LatencyMs = &latency

	outcome := "delivered"
	if deliveryErr != nil {
		outcome = "failed"
		msg := deliveryErr.Error()
		attempt.Error = &msg
	}
	metrics.WebhookDelivery(env.Event, outcome, attempt.FinishedAt.Sub(attempt.StartedAt))
	d.recordAttempt(attempt)

	if deliveryErr != nil {
		return deliveryErr
	}
	d.logger.Info("Webhook delivered",
		zap.String("event", env.Event),
		zap.String("idempotency_key", env.IdempotencyKey),
		zap.Int("http_status", *attempt.HTTPStatus),
		zap.Int("latency_ms", latency),
	)
	return nil
}

func (d *Dispatcher) post(ctx context.Context, body []byte, attempt *models.DeliveryAttemptLog) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return &DeliveryError{URL: d.cfg.URL, Err: fmt.Errorf("failed to create HTTP request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(signature.HeaderName, d.signer.Sign(body))
	if d.cfg.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+d.cfg.BearerToken)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return &DeliveryError{URL: d.cfg.URL, Err: fmt.Errorf("HTTP request failed: %w", err)}
	}
	defer resp.Body.Close()

	status := resp.StatusCode
	attempt.HTTPStatus = &status
	attempt.ResponseSummary = d.summarize(resp.Body)

	if status < 200 || status >= 300 {
		return &DeliveryError{URL: d.cfg.URL, StatusCode: status}
	}
	return nil
}

// summarize reads at most MaxResponseBodySize bytes of the response.
func (d *Dispatcher) summarize(r io.Reader) *string {
	limit := d.cfg.MaxResponseBodySize
	buf := make([]byte, limit+1) // +1 to detect truncation
	n, err := io.ReadFull(r, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		d.logger.Debug("Failed to read webhook response body", zap.Error(err))
	}
	if n == 0 {
		return nil
	}

	var summary string
	if n > limit {
		summary = fmt.Sprintf("Response body truncated (read more than %d bytes): %s", limit, buf[:limit])
	} else {
		summary = fmt.Sprintf("Response body: %s", buf[:n])
	}
	if len(summary) > maxSummaryLength {
		summary = summary[:maxSummaryLength] + "..."
	}
	return &summary
}

func (d *Dispatcher) recordAttempt(attempt *models.DeliveryAttemptLog) {
	if d.attempts == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), attemptWriteTimeout)
	defer cancel()
	if err := d.attempts.RecordAttempt(ctx, attempt); err != nil {
		d.logger.Warn("Failed to record webhook attempt",
			zap.String("idempotency_key", attempt.IdempotencyKey),
			zap.Error(err),
		)
	}
}
