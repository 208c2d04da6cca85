package roster

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/acme/whatsapp-campaign-center/internal/domain"
	apperrors "github.com/acme/whatsapp-campaign-center/pkg/errors"
)

type fakeRepo struct {
	operators []domain.Operator
}

func (f *fakeRepo) ListOperators(_ context.Context, _ *uuid.UUID) ([]domain.Operator, error) {
	return f.operators, nil
}

type fakePresence struct {
	online map[uuid.UUID]bool
}

func (f *fakePresence) Online(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]bool, error) {
	result := make(map[uuid.UUID]bool)
	for _, id := range ids {
		if f.online[id] {
			result[id] = true
		}
	}
	return result, nil
}

func line(status domain.LineStatus) domain.Line {
	return domain.Line{ID: uuid.New(), Phone: "5511999990000", Status: status}
}

func TestResolveFiltersOfflineAndInactive(t *testing.T) {
	active := line(domain.LineStatusActive)
	banned := line(domain.LineStatusBanned)
	disconnected := line(domain.LineStatusDisconnected)

	op1 := domain.Operator{ID: uuid.New(), Name: "op1", Lines: []domain.Line{active, banned}}
	op2 := domain.Operator{ID: uuid.New(), Name: "op2", Lines: []domain.Line{disconnected}}
	op3 := domain.Operator{ID: uuid.New(), Name: "op3", Lines: []domain.Line{line(domain.LineStatusActive)}}

	// op3 is offline: its active line must not contribute a slot.
	resolver := NewResolver(
		&fakeRepo{operators: []domain.Operator{op1, op2, op3}},
		&fakePresence{online: map[uuid.UUID]bool{op1.ID: true, op2.ID: true}},
	)

	roster, err := resolver.Resolve(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(roster.Operators) != 2 {
		t.Errorf("online operators = %d, want 2", len(roster.Operators))
	}
	if len(roster.Slots) != 1 {
		t.Fatalf("slots = %d, want 1", len(roster.Slots))
	}
	if roster.Slots[0].LineID != active.ID {
		t.Errorf("slot line = %s, want %s", roster.Slots[0].LineID, active.ID)
	}
	if roster.Slots[0].OperatorID != op1.ID {
		t.Errorf("slot owner = %s, want %s", roster.Slots[0].OperatorID, op1.ID)
	}
}

func TestResolveOperatorWithTwoLinesGetsTwoSlots(t *testing.T) {
	op := domain.Operator{ID: uuid.New(), Name: "op", Lines: []domain.Line{
		line(domain.LineStatusActive),
		line(domain.LineStatusActive),
	}}

	resolver := NewResolver(
		&fakeRepo{operators: []domain.Operator{op}},
		&fakePresence{online: map[uuid.UUID]bool{op.ID: true}},
	)

	roster, err := resolver.Resolve(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(roster.Slots) != 2 {
		t.Fatalf("slots = %d, want 2", len(roster.Slots))
	}
}

func TestResolveSharedLineFirstSeenOwner(t *testing.T) {
	shared := line(domain.LineStatusActive)
	op1 := domain.Operator{ID: uuid.New(), Name: "first", Lines: []domain.Line{shared}}
	op2 := domain.Operator{ID: uuid.New(), Name: "second", Lines: []domain.Line{shared}}

	resolver := NewResolver(
		&fakeRepo{operators: []domain.Operator{op1, op2}},
		&fakePresence{online: map[uuid.UUID]bool{op1.ID: true, op2.ID: true}},
	)

	roster, err := resolver.Resolve(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(roster.Slots) != 1 {
		t.Fatalf("slots = %d, want 1 (shared line deduplicated)", len(roster.Slots))
	}
	if roster.Slots[0].OperatorID != op1.ID {
		t.Errorf("shared line owner = %s, want first-seen operator %s", roster.Slots[0].OperatorID, op1.ID)
	}
}

func TestResolveNoOperators(t *testing.T) {
	op := domain.Operator{ID: uuid.New(), Lines: []domain.Line{line(domain.LineStatusActive)}}

	resolver := NewResolver(
		&fakeRepo{operators: []domain.Operator{op}},
		&fakePresence{online: map[uuid.UUID]bool{}},
	)

	_, err := resolver.Resolve(context.Background(), nil)
	if !errors.Is(err, apperrors.ErrNoOperatorsAvailable) {
		t.Fatalf("err = %v, want ErrNoOperatorsAvailable", err)
	}
}

func TestResolveNoLines(t *testing.T) {
	op := domain.Operator{ID: uuid.New(), Lines: []domain.Line{line(domain.LineStatusBanned)}}

	resolver := NewResolver(
		&fakeRepo{operators: []domain.Operator{op}},
		&fakePresence{online: map[uuid.UUID]bool{op.ID: true}},
	)

	_, err := resolver.Resolve(context.Background(), nil)
	if !errors.Is(err, apperrors.ErrNoLinesAvailable) {
		t.Fatalf("err = %v, want ErrNoLinesAvailable", err)
	}
}
