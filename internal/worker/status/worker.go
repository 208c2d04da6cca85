package status

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/acme/whatsapp-campaign-center/internal/app"
	"github.com/acme/whatsapp-campaign-center/internal/domain"
	"github.com/acme/whatsapp-campaign-center/internal/queue"
)

// Worker consumes delivery status updates and persists them.
type Worker struct {
	container *app.Container
}

// New creates a new status worker.
func New(container *app.Container) *Worker {
	return &Worker{container: container}
}

// Run processes status events until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	cfg := w.container.Config
	groupID := cfg.Kafka.ConsumerGroupID + "-status"
	reader := w.container.Kafka.NewReader(cfg.Kafka.StatusTopic, groupID)
	defer reader.Close()

	repos := w.container.Repositories()
	deliveries := repos.Deliveries
	conversations := repos.Conversations
	retryScheduler := w.container.Dispatchers().RetryScheduler
	logger := w.container.Logger

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Error("status worker: fetch", zap.Error(err))
			continue
		}

		var status queue.StatusMessage
		if err := json.Unmarshal(msg.Value, &status); err != nil {
			logger.Error("status worker: unmarshal", zap.Error(err))
			_ = reader.CommitMessages(ctx, msg)
			continue
		}

		tracer := otel.Tracer("wacc.statusworker")
		sctx, span := tracer.Start(ctx, "delivery.status", trace.WithAttributes(
			attribute.String("delivery.id", status.DeliveryID.String()),
			attribute.String("campaign.name", status.CampaignName),
			attribute.Int("attempt", status.Attempt),
		))

		domainStatus := domain.DeliveryStatus(status.Status)

		// A retryable failure keeps the row pending until attempts run out.
		rowStatus := domainStatus
		if domainStatus == domain.DeliveryStatusFailed && status.Retryable {
			rowStatus = domain.DeliveryStatusPending
		}
		if err := deliveries.SetStatus(sctx, status.DeliveryID, rowStatus, status.Attempt, optionalString(status.Error)); err != nil {
			span.RecordError(err)
			logger.Error("status worker: update delivery", zap.Error(err))
		}

		if domainStatus == domain.DeliveryStatusSent {
			entry := domain.ConversationMessage{
				ID:           uuid.New(),
				ContactPhone: status.ContactPhone,
				LineID:       status.LineID,
				Direction:    domain.DirectionOutbound,
				Body:         status.Body,
				CreatedAt:    status.OccurredAt,
			}
			if err := conversations.Append(sctx, entry); err != nil {
				span.RecordError(err)
				logger.Error("status worker: append conversation", zap.Error(err))
			}
		}

		if status.Retryable && status.NextAttempt != nil {
			job := status.Job
			job.Attempt = status.Attempt + 1
			job.FireAt = *status.NextAttempt
			job.EnqueuedAt = status.OccurredAt

			retryMsg := queue.RetryMessage{
				DeliveryJob: job,
				NextAttempt: *status.NextAttempt,
			}
			if err := retryScheduler.ScheduleRetry(sctx, status.Attempt, retryMsg); err != nil {
				span.RecordError(err)
				logger.Error("status worker: schedule retry", zap.Error(err))
			}
		}

		if err := reader.CommitMessages(sctx, msg); err != nil {
			span.RecordError(err)
			logger.Error("status worker: commit", zap.Error(err))
		}
		span.End()
	}
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
