package mock

import (
	"context"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/acme/whatsapp-campaign-center/internal/config"
	"github.com/acme/whatsapp-campaign-center/internal/domain"
	"github.com/acme/whatsapp-campaign-center/internal/queue"
	"github.com/acme/whatsapp-campaign-center/internal/whatsapp"
)

// Provider simulates the WhatsApp gateway.
type Provider struct {
	successRate float64
	timeout     time.Duration
	rng         *rand.Rand
}

// NewProvider constructs a mock provider with deterministic randomness.
func NewProvider(cfg config.WhatsAppConfig) *Provider {
	seed := time.Now().UnixNano()
	return &Provider{
		successRate: 0.9,
		timeout:     cfg.RequestTimeout,
		rng:         rand.New(rand.NewSource(seed)),
	}
}

// SendMessage simulates a send attempt.
func (p *Provider) SendMessage(ctx context.Context, job queue.DeliveryJob) (whatsapp.Result, error) {
	latency := time.Duration(100+p.rng.Intn(900)) * time.Millisecond

	select {
	case <-ctx.Done():
		return whatsapp.Result{Status: domain.DeliveryStatusFailed, Retryable: true, Error: ctx.Err().Error()}, ctx.Err()
	case <-time.After(latency):
	}

	if p.rng.Float64() <= p.successRate {
		return whatsapp.Result{Status: domain.DeliveryStatusSent, MessageID: uuid.NewString()}, nil
	}

	retryable := p.rng.Float64() < 0.7
	return whatsapp.Result{Status: domain.DeliveryStatusFailed, Retryable: retryable, Error: "simulated gateway failure"}, nil
}
