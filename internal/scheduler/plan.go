// Package scheduler computes time-sliced delivery plans: a round-robin
// assignment of contacts to line slots plus a per-round delay chosen so the
// last round lands at or before the campaign's effective end time.
package scheduler

import (
	"time"

	"github.com/google/uuid"

	"github.com/acme/whatsapp-campaign-center/internal/domain"
)

// Slot is one scheduling slot: a unique active line and its owning operator.
// An operator with two active lines contributes two slots.
type Slot struct {
	LineID     uuid.UUID
	OperatorID uuid.UUID
}

// Assignment places one contact (by input index) on a line in a round.
// Delay is the absolute enqueue delay from plan time.
type Assignment struct {
	ContactIndex int
	LineID       uuid.UUID
	OperatorID   uuid.UUID
	Round        int
	Delay        time.Duration
}

// Plan is the full schedule for one contact upload. Rounds fire at
// now + round*RoundInterval; lines within a round fire concurrently.
type Plan struct {
	Assignments         []Assignment
	Rounds              int
	RoundInterval       time.Duration
	EndTime             time.Time
	EstimatedCompletion time.Time
}

// EndTime resolves the effective completion deadline for n contacts.
// An explicit wall-clock deadline is taken on today's date and rolled to the
// next day if already past, so it is always strictly in the future. Without
// one, the speed tier's per-contact delay derives the end time.
func EndTime(n int, policy domain.SendPolicy, now time.Time) time.Time {
	if policy.EndTime != nil {
		end := policy.EndTime.On(now)
		if !end.After(now) {
			end = end.Add(24 * time.Hour)
		}
		return end
	}
	return now.Add(time.Duration(n) * policy.Speed.Delay())
}

// Build computes the delivery plan for contactCount contacts over the given
// slots. Contact i goes to round i/len(slots), slot i%len(slots), preserving
// input order as delivery priority within a round.
//
// A single-round plan always sends immediately regardless of deadline; with
// more rounds, round 0 fires now and the last round fires at the end time.
// Zero contacts or zero slots yield an empty plan (the empty-slot case is
// rejected upstream by the roster resolver).
func Build(contactCount int, slots []Slot, policy domain.SendPolicy, now time.Time) Plan {
	end := EndTime(contactCount, policy, now)
	if contactCount == 0 || len(slots) == 0 {
		return Plan{EndTime: end, EstimatedCompletion: now}
	}

	lineCount := len(slots)
	rounds := (contactCount + lineCount - 1) / lineCount

	var interval time.Duration
	if rounds > 1 {
		interval = end.Sub(now) / time.Duration(rounds-1)
	}

	assignments := make([]Assignment, 0, contactCount)
	for i := 0; i < contactCount; i++ {
		round := i / lineCount
		slot := slots[i%lineCount]
		assignments = append(assignments, Assignment{
			ContactIndex: i,
			LineID:       slot.LineID,
			OperatorID:   slot.OperatorID,
			Round:        round,
			Delay:        time.Duration(round) * interval,
		})
	}

	return Plan{
		Assignments:         assignments,
		Rounds:              rounds,
		RoundInterval:       interval,
		EndTime:             end,
		EstimatedCompletion: now.Add(time.Duration(rounds-1) * interval),
	}
}

// IntervalMinutes is the human-readable per-round interval for summaries.
func (p Plan) IntervalMinutes() float64 {
	return p.RoundInterval.Minutes()
}
