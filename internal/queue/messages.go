package queue

import (
	"time"

	"github.com/google/uuid"
)

// DeliveryJob instructs a worker to send one campaign message. FireAt is the
// absolute instant the send may start; the worker holds the job until then.
// The payload carries everything needed to send, so workers never read the
// plan back from storage.
type DeliveryJob struct {
	DeliveryID   uuid.UUID  `json:"delivery_id"`
	CampaignName string     `json:"campaign_name"`
	ContactName  string     `json:"contact_name"`
	ContactPhone string     `json:"contact_phone"`
	LineID       uuid.UUID  `json:"line_id"`
	OperatorID   uuid.UUID  `json:"operator_id"`
	Round        int        `json:"round"`
	Message      string     `json:"message"`
	TemplateID   *uuid.UUID `json:"template_id,omitempty"`
	FireAt       time.Time  `json:"fire_at"`
	Attempt      int        `json:"attempt"`
	MaxAttempts  int        `json:"max_attempts"`
	RetryBaseMs  int64      `json:"retry_base_ms"`
	RetryMaxMs   int64      `json:"retry_max_ms"`
	RetryJitter  float64    `json:"retry_jitter"`
	EnqueuedAt   time.Time  `json:"enqueued_at"`
}

// StatusMessage reports the outcome of a delivery attempt.
type StatusMessage struct {
	DeliveryID   uuid.UUID  `json:"delivery_id"`
	CampaignName string     `json:"campaign_name"`
	ContactPhone string     `json:"contact_phone"`
	LineID       uuid.UUID  `json:"line_id"`
	Status       string     `json:"status"`
	Body         string     `json:"body"`
	Attempt      int        `json:"attempt"`
	MaxAttempts  int        `json:"max_attempts"`
	Retryable    bool       `json:"retryable"`
	RetryBaseMs  int64      `json:"retry_base_ms"`
	RetryMaxMs   int64      `json:"retry_max_ms"`
	RetryJitter  float64    `json:"retry_jitter"`
	Error        string     `json:"error,omitempty"`
	OccurredAt   time.Time  `json:"occurred_at"`
	NextAttempt  *time.Time `json:"next_attempt,omitempty"`

	// Job is the original payload, carried along so the status worker can
	// rebuild the retry without a storage read.
	Job DeliveryJob `json:"job"`
}

// RetryMessage holds a delivery job awaiting its retry instant.
type RetryMessage struct {
	DeliveryJob
	NextAttempt time.Time `json:"next_attempt"`
}
