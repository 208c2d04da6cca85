package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/acme/whatsapp-campaign-center/internal/app"
	"github.com/acme/whatsapp-campaign-center/internal/domain"
	"github.com/acme/whatsapp-campaign-center/internal/lineguard"
	"github.com/acme/whatsapp-campaign-center/internal/queue"
)

// Worker consumes delivery jobs, holds each until its fire time and pushes it
// through the WhatsApp provider on the assigned line.
type Worker struct {
	container *app.Container
	rng       *rand.Rand
	limiter   *lineguard.Limiter
}

// New creates a new delivery worker instance.
func New(container *app.Container) *Worker {
	return &Worker{
		container: container,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		limiter:   container.Limiters().Line,
	}
}

// Run starts the worker loop.
func (w *Worker) Run(ctx context.Context) error {
	cfg := w.container.Config
	reader := w.container.Kafka.NewReader(cfg.Kafka.DeliveryTopic, cfg.Kafka.ConsumerGroupID)
	defer reader.Close()

	for {
		m, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.container.Logger.Error("delivery worker: fetch message", zap.Error(err))
			continue
		}

		if err := w.processMessage(ctx, reader, m); err != nil {
			w.container.Logger.Error("delivery worker: process", zap.Error(err))
		}
	}
}

func (w *Worker) processMessage(ctx context.Context, reader *kafka.Reader, m kafka.Message) error {
	var job queue.DeliveryJob
	if err := json.Unmarshal(m.Value, &job); err != nil {
		_ = reader.CommitMessages(ctx, m)
		return fmt.Errorf("unmarshal job: %w", err)
	}

	tracer := otel.Tracer("wacc.deliveryworker")
	sctx, span := tracer.Start(ctx, "delivery.send", trace.WithAttributes(
		attribute.String("delivery.id", job.DeliveryID.String()),
		attribute.String("campaign.name", job.CampaignName),
		attribute.String("line.id", job.LineID.String()),
		attribute.Int("round", job.Round),
		attribute.Int("attempt", job.Attempt),
	))
	defer span.End()

	// Jobs carry an absolute fire time; the plan's pacing lives entirely in
	// this wait.
	if err := w.sleepUntil(sctx, job.FireAt); err != nil {
		span.RecordError(err)
		return err
	}

	release, err := w.waitForLine(sctx, job.LineID)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if release != nil {
		defer release()
	}

	cfg := w.container.Config
	provider := w.container.Providers().WhatsApp
	publisher := w.container.Dispatchers().StatusPublisher

	timeout := cfg.WhatsApp.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	sendCtx, cancel := context.WithTimeout(sctx, timeout)
	result, sendErr := provider.SendMessage(sendCtx, job)
	cancel()

	statusMsg := queue.StatusMessage{
		DeliveryID:   job.DeliveryID,
		CampaignName: job.CampaignName,
		ContactPhone: job.ContactPhone,
		LineID:       job.LineID,
		Status:       string(result.Status),
		Body:         job.Message,
		Attempt:      job.Attempt,
		MaxAttempts:  job.MaxAttempts,
		Retryable:    result.Retryable && job.Attempt < job.MaxAttempts,
		RetryBaseMs:  job.RetryBaseMs,
		RetryMaxMs:   job.RetryMaxMs,
		RetryJitter:  job.RetryJitter,
		Error:        result.Error,
		OccurredAt:   time.Now().UTC(),
		Job:          job,
	}

	if sendErr != nil && statusMsg.Error == "" {
		statusMsg.Error = sendErr.Error()
		statusMsg.Retryable = job.Attempt < job.MaxAttempts
		statusMsg.Status = string(domain.DeliveryStatusFailed)
		span.RecordError(sendErr)
	}

	if statusMsg.Retryable {
		next := w.computeNextAttempt(job)
		statusMsg.NextAttempt = &next
	}

	if err := publisher.PublishStatus(sctx, statusMsg); err != nil {
		span.RecordError(err)
		w.container.Logger.Error("delivery worker: publish status", zap.Error(err))
	}

	if err := reader.CommitMessages(sctx, m); err != nil {
		span.RecordError(err)
		return fmt.Errorf("commit message: %w", err)
	}
	return nil
}

// waitForLine blocks until the job's line is free for one send.
func (w *Worker) waitForLine(ctx context.Context, lineID uuid.UUID) (func(), error) {
	limiter := w.limiter
	if limiter == nil || lineID == uuid.Nil {
		return nil, nil
	}

	for {
		acquired, err := limiter.Acquire(ctx, lineID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, err
		}
		if acquired {
			release := func() {
				if err := limiter.Release(context.Background(), lineID); err != nil {
					w.container.Logger.Warn("delivery worker: release line", zap.Error(err))
				}
			}
			return release, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func (w *Worker) sleepUntil(ctx context.Context, t time.Time) error {
	d := time.Until(t)
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (w *Worker) computeNextAttempt(job queue.DeliveryJob) time.Time {
	base := time.Duration(job.RetryBaseMs) * time.Millisecond
	if base <= 0 {
		base = 2 * time.Second
	}
	maxDelay := time.Duration(job.RetryMaxMs) * time.Millisecond
	if maxDelay <= 0 {
		maxDelay = 2 * time.Minute
	}

	exponent := math.Pow(2, float64(job.Attempt-1))
	delay := time.Duration(exponent) * base
	if delay > maxDelay {
		delay = maxDelay
	}

	if job.RetryJitter > 0 {
		jitterFraction := w.rng.Float64()*job.RetryJitter - (job.RetryJitter / 2)
		jitter := time.Duration(float64(delay) * jitterFraction)
		delay += jitter
		if delay < base {
			delay = base
		}
	}

	return time.Now().UTC().Add(delay)
}
