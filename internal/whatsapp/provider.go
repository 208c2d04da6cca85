package whatsapp

import (
	"context"

	"github.com/acme/whatsapp-campaign-center/internal/domain"
	"github.com/acme/whatsapp-campaign-center/internal/queue"
)

// Result captures the outcome of a send attempt.
type Result struct {
	Status    domain.DeliveryStatus
	MessageID string
	Retryable bool
	Error     string
}

// Provider abstracts the WhatsApp integration.
type Provider interface {
	SendMessage(ctx context.Context, job queue.DeliveryJob) (Result, error)
}
