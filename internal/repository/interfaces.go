package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/acme/whatsapp-campaign-center/internal/domain"
	apperrors "github.com/acme/whatsapp-campaign-center/pkg/errors"
)

var (
	// ErrNotFound indicates the entity was not located.
	ErrNotFound = apperrors.ErrNotFound
	// ErrConflict indicates a unique constraint violation.
	ErrConflict = apperrors.ErrConflict
)

// ContactRepository manages contact persistence keyed by canonical phone.
type ContactRepository interface {
	// Upsert looks the contact up by phone and either creates it or merges
	// the patch per domain.Contact.Merge (non-empty override only).
	Upsert(ctx context.Context, phone string, patch domain.ContactPatch) (*domain.Contact, error)
	GetByPhone(ctx context.Context, phone string) (*domain.Contact, error)
	SetCPC(ctx context.Context, phone string, cpc bool, at time.Time) error
}

// CampaignRepository manages campaign definitions.
type CampaignRepository interface {
	Create(ctx context.Context, def *domain.CampaignDefinition) error
	Get(ctx context.Context, id uuid.UUID) (*domain.CampaignDefinition, error)
	GetByName(ctx context.Context, name string) (*domain.CampaignDefinition, error)
	List(ctx context.Context, afterID *uuid.UUID, limit int) ([]*domain.CampaignDefinition, error)
}

// DeliveryRepository persists per-contact outbound-message records.
type DeliveryRepository interface {
	Create(ctx context.Context, d *domain.Delivery) error
	SetStatus(ctx context.Context, id uuid.UUID, status domain.DeliveryStatus, attemptCount int, lastError *string) error
	ListByCampaign(ctx context.Context, campaignName string, limit int, offset int) ([]domain.Delivery, error)
	// Counts aggregates delivery rows by status for one logical campaign.
	Counts(ctx context.Context, campaignName string) (total, sent, failed int64, err error)
	// Phones returns the distinct contact phones among the campaign's rows.
	Phones(ctx context.Context, campaignName string) ([]string, error)
	// EarliestCreatedAt is the timestamp of the campaign's first delivery
	// row; ErrNotFound when no rows exist.
	EarliestCreatedAt(ctx context.Context, campaignName string) (time.Time, error)
}

// RosterRepository reads operators together with their linked lines.
type RosterRepository interface {
	// ListOperators returns operator-role users, optionally restricted to a
	// segment, each with every linked line regardless of line status.
	ListOperators(ctx context.Context, segmentID *uuid.UUID) ([]domain.Operator, error)
}

// ConversationStore keeps the per-contact chat log.
type ConversationStore interface {
	Append(ctx context.Context, msg domain.ConversationMessage) error
	// HasInboundSince reports whether the contact sent at least one inbound
	// message at or after the given instant.
	HasInboundSince(ctx context.Context, contactPhone string, since time.Time) (bool, error)
}
