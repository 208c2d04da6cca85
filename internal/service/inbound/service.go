// Package inbound handles messages received from contacts. An inbound
// sighting is also an identity signal, so the contact record is upserted
// alongside the conversation entry.
package inbound

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/acme/whatsapp-campaign-center/internal/domain"
	"github.com/acme/whatsapp-campaign-center/internal/phone"
	"github.com/acme/whatsapp-campaign-center/internal/repository"
	apperrors "github.com/acme/whatsapp-campaign-center/pkg/errors"
)

// Service records inbound conversation traffic.
type Service struct {
	contacts      repository.ContactRepository
	conversations repository.ConversationStore
	clock         func() time.Time
}

// NewService constructs an inbound service.
func NewService(contacts repository.ContactRepository, conversations repository.ConversationStore) *Service {
	return &Service{
		contacts:      contacts,
		conversations: conversations,
		clock:         func() time.Time { return time.Now().UTC() },
	}
}

// RecordInput is one inbound message event from the gateway.
type RecordInput struct {
	Phone    string
	PushName string
	LineID   uuid.UUID
	Body     string
}

// Record upserts the sender and appends the message to the conversation log.
func (s *Service) Record(ctx context.Context, input RecordInput) (*domain.Contact, error) {
	canonical := phone.Canonical(input.Phone)
	if canonical == "" {
		return nil, fmt.Errorf("%w: inbound message without a dialable phone", apperrors.ErrValidation)
	}

	contact, err := s.contacts.Upsert(ctx, canonical, domain.ContactPatch{Name: input.PushName})
	if err != nil {
		return nil, fmt.Errorf("inbound service: upsert contact: %w", err)
	}

	msg := domain.ConversationMessage{
		ID:           uuid.New(),
		ContactPhone: canonical,
		LineID:       input.LineID,
		Direction:    domain.DirectionInbound,
		Body:         input.Body,
		CreatedAt:    s.clock(),
	}
	if err := s.conversations.Append(ctx, msg); err != nil {
		return nil, fmt.Errorf("inbound service: append message: %w", err)
	}

	return contact, nil
}

// MarkCPC flags the contact as a confirmed right-party contact.
func (s *Service) MarkCPC(ctx context.Context, rawPhone string) error {
	canonical := phone.Canonical(rawPhone)
	if canonical == "" {
		return fmt.Errorf("%w: invalid phone", apperrors.ErrValidation)
	}
	if err := s.contacts.SetCPC(ctx, canonical, true, s.clock()); err != nil {
		return fmt.Errorf("inbound service: set cpc: %w", err)
	}
	return nil
}
