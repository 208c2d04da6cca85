// Package roster resolves the pool of scheduling slots for a campaign: the
// online operators of a segment and the unique active lines they carry.
package roster

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/acme/whatsapp-campaign-center/internal/domain"
	"github.com/acme/whatsapp-campaign-center/internal/repository"
	"github.com/acme/whatsapp-campaign-center/internal/scheduler"
	apperrors "github.com/acme/whatsapp-campaign-center/pkg/errors"
)

// PresenceReader reports which of the given operators are online.
type PresenceReader interface {
	Online(ctx context.Context, operatorIDs []uuid.UUID) (map[uuid.UUID]bool, error)
}

// Roster is the resolved pool for one campaign upload.
type Roster struct {
	// Operators are the online operators, in repository iteration order.
	Operators []domain.Operator
	// Slots are the unique active lines across those operators, each with
	// its owning operator. Order follows first sighting.
	Slots []scheduler.Slot
}

// Resolver combines the user/line store with the presence store.
type Resolver struct {
	repo     repository.RosterRepository
	presence PresenceReader
}

// NewResolver constructs a resolver.
func NewResolver(repo repository.RosterRepository, presence PresenceReader) *Resolver {
	return &Resolver{repo: repo, presence: presence}
}

// Resolve returns the online operators of the segment and their unique
// active lines. When two operators share a line (a data anomaly), the first
// operator encountered in iteration order owns it for dispatch.
//
// Fails with ErrNoOperatorsAvailable when no operator is online, and with
// ErrNoLinesAvailable when the online operators carry no active line. Both
// are terminal for the upload request.
func (r *Resolver) Resolve(ctx context.Context, segmentID *uuid.UUID) (*Roster, error) {
	operators, err := r.repo.ListOperators(ctx, segmentID)
	if err != nil {
		return nil, fmt.Errorf("roster: list operators: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(operators))
	for _, op := range operators {
		ids = append(ids, op.ID)
	}

	online, err := r.presence.Online(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("roster: read presence: %w", err)
	}

	roster := &Roster{}
	seen := make(map[uuid.UUID]bool)

	for _, op := range operators {
		if !online[op.ID] {
			continue
		}
		roster.Operators = append(roster.Operators, op)

		for _, line := range op.ActiveLines() {
			if seen[line.ID] {
				continue
			}
			seen[line.ID] = true
			roster.Slots = append(roster.Slots, scheduler.Slot{
				LineID:     line.ID,
				OperatorID: op.ID,
			})
		}
	}

	if len(roster.Operators) == 0 {
		return nil, apperrors.ErrNoOperatorsAvailable
	}
	if len(roster.Slots) == 0 {
		return nil, apperrors.ErrNoLinesAvailable
	}

	return roster, nil
}
