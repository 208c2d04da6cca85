package inbound

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/acme/whatsapp-campaign-center/internal/domain"
	apperrors "github.com/acme/whatsapp-campaign-center/pkg/errors"
)

type fakeContacts struct {
	upsertedPhone string
	patch         domain.ContactPatch
	cpcPhone      string
}

func (f *fakeContacts) Upsert(_ context.Context, phone string, patch domain.ContactPatch) (*domain.Contact, error) {
	f.upsertedPhone = phone
	f.patch = patch
	return &domain.Contact{ID: uuid.New(), Phone: phone, Name: patch.Name}, nil
}

func (f *fakeContacts) GetByPhone(_ context.Context, _ string) (*domain.Contact, error) {
	return nil, apperrors.ErrNotFound
}

func (f *fakeContacts) SetCPC(_ context.Context, phone string, _ bool, _ time.Time) error {
	f.cpcPhone = phone
	return nil
}

type fakeConversations struct {
	appended []domain.ConversationMessage
}

func (f *fakeConversations) Append(_ context.Context, msg domain.ConversationMessage) error {
	f.appended = append(f.appended, msg)
	return nil
}

func (f *fakeConversations) HasInboundSince(_ context.Context, _ string, _ time.Time) (bool, error) {
	return false, nil
}

func TestRecordCanonicalizesAndAppends(t *testing.T) {
	contacts := &fakeContacts{}
	conversations := &fakeConversations{}
	svc := NewService(contacts, conversations)

	contact, err := svc.Record(context.Background(), RecordInput{
		Phone:    "(11) 98765-4321",
		PushName: "Ana",
		LineID:   uuid.New(),
		Body:     "oi",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if contacts.upsertedPhone != "5511987654321" {
		t.Errorf("expected canonical phone, got %s", contacts.upsertedPhone)
	}
	if contact.Name != "Ana" {
		t.Errorf("expected push name applied, got %q", contact.Name)
	}
	if len(conversations.appended) != 1 {
		t.Fatalf("expected one appended message, got %d", len(conversations.appended))
	}
	if conversations.appended[0].Direction != domain.DirectionInbound {
		t.Errorf("expected inbound direction, got %s", conversations.appended[0].Direction)
	}
}

func TestRecordRejectsUndialablePhone(t *testing.T) {
	svc := NewService(&fakeContacts{}, &fakeConversations{})

	if _, err := svc.Record(context.Background(), RecordInput{Phone: "---"}); !errors.Is(err, apperrors.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestMarkCPC(t *testing.T) {
	contacts := &fakeContacts{}
	svc := NewService(contacts, &fakeConversations{})

	if err := svc.MarkCPC(context.Background(), "11 98765-4321"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if contacts.cpcPhone != "5511987654321" {
		t.Errorf("expected canonical phone, got %s", contacts.cpcPhone)
	}
}
