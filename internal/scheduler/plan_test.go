package scheduler

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/acme/whatsapp-campaign-center/internal/domain"
)

func makeSlots(n int) []Slot {
	slots := make([]Slot, 0, n)
	for i := 0; i < n; i++ {
		slots = append(slots, Slot{LineID: uuid.New(), OperatorID: uuid.New()})
	}
	return slots
}

func TestBuildDeadlineSpreadsRounds(t *testing.T) {
	// 10 contacts over 2 lines with a deadline 60 minutes out: 5 rounds,
	// 15 minute interval, round 0 immediate, round 4 at the deadline.
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	policy := domain.SendPolicy{EndTime: &domain.TimeOfDay{Hour: 10, Minute: 0}}
	slots := makeSlots(2)

	plan := Build(10, slots, policy, now)

	if plan.Rounds != 5 {
		t.Fatalf("rounds = %d, want 5", plan.Rounds)
	}
	if plan.RoundInterval != 15*time.Minute {
		t.Fatalf("interval = %v, want 15m", plan.RoundInterval)
	}
	if got := plan.Assignments[0].Delay; got != 0 {
		t.Errorf("round 0 delay = %v, want 0", got)
	}
	if got := plan.Assignments[9].Delay; got != 60*time.Minute {
		t.Errorf("round 4 delay = %v, want 60m", got)
	}
	if !plan.EstimatedCompletion.Equal(plan.EndTime) {
		t.Errorf("estimated completion %v != end time %v", plan.EstimatedCompletion, plan.EndTime)
	}
}

func TestBuildSingleRoundIsImmediate(t *testing.T) {
	// 2 contacts over 5 lines: one round, everything fires now, no matter
	// the policy.
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	plan := Build(2, makeSlots(5), domain.SendPolicy{Speed: domain.SpeedFast}, now)

	if plan.Rounds != 1 {
		t.Fatalf("rounds = %d, want 1", plan.Rounds)
	}
	if plan.RoundInterval != 0 {
		t.Errorf("interval = %v, want 0", plan.RoundInterval)
	}
	for _, a := range plan.Assignments {
		if a.Delay != 0 {
			t.Errorf("contact %d delay = %v, want 0", a.ContactIndex, a.Delay)
		}
	}
	if !plan.EstimatedCompletion.Equal(now) {
		t.Errorf("estimated completion = %v, want %v", plan.EstimatedCompletion, now)
	}
}

func TestBuildRoundRobinCompleteness(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	policy := domain.SendPolicy{Speed: domain.SpeedMedium}

	cases := []struct{ contacts, lines int }{
		{1, 1}, {7, 3}, {9, 3}, {10, 2}, {100, 7}, {3, 8},
	}

	for _, tc := range cases {
		slots := makeSlots(tc.lines)
		plan := Build(tc.contacts, slots, policy, now)

		wantRounds := (tc.contacts + tc.lines - 1) / tc.lines
		if plan.Rounds != wantRounds {
			t.Errorf("%d/%d: rounds = %d, want %d", tc.contacts, tc.lines, plan.Rounds, wantRounds)
		}
		if len(plan.Assignments) != tc.contacts {
			t.Fatalf("%d/%d: %d assignments", tc.contacts, tc.lines, len(plan.Assignments))
		}

		seen := make(map[int]bool, tc.contacts)
		perRoundLines := make(map[int]map[uuid.UUID]bool)
		maxRound := 0
		for _, a := range plan.Assignments {
			if seen[a.ContactIndex] {
				t.Errorf("%d/%d: contact %d scheduled twice", tc.contacts, tc.lines, a.ContactIndex)
			}
			seen[a.ContactIndex] = true
			if a.Round > maxRound {
				maxRound = a.Round
			}
			if perRoundLines[a.Round] == nil {
				perRoundLines[a.Round] = make(map[uuid.UUID]bool)
			}
			if perRoundLines[a.Round][a.LineID] {
				t.Errorf("%d/%d: line used twice in round %d", tc.contacts, tc.lines, a.Round)
			}
			perRoundLines[a.Round][a.LineID] = true
		}
		if len(seen) != tc.contacts {
			t.Errorf("%d/%d: only %d distinct contacts scheduled", tc.contacts, tc.lines, len(seen))
		}
		if maxRound+1 != wantRounds {
			t.Errorf("%d/%d: max round %d, want %d rounds", tc.contacts, tc.lines, maxRound, wantRounds)
		}
		for round, lines := range perRoundLines {
			if len(lines) > tc.lines {
				t.Errorf("%d/%d: round %d uses %d lines", tc.contacts, tc.lines, round, len(lines))
			}
		}
	}
}

func TestBuildDeadlineMonotonicity(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	policy := domain.SendPolicy{EndTime: &domain.TimeOfDay{Hour: 11, Minute: 37}}

	for _, contacts := range []int{1, 5, 13, 50} {
		plan := Build(contacts, makeSlots(3), policy, now)
		lastFire := now.Add(time.Duration(plan.Rounds-1) * plan.RoundInterval)
		if lastFire.After(plan.EndTime) {
			t.Errorf("%d contacts: last round at %v exceeds end time %v", contacts, lastFire, plan.EndTime)
		}
		if !plan.EstimatedCompletion.Equal(lastFire) {
			t.Errorf("%d contacts: estimated completion %v != last fire %v", contacts, plan.EstimatedCompletion, lastFire)
		}
	}
}

func TestEndTimeRollsPastDeadlineToNextDay(t *testing.T) {
	now := time.Date(2025, 3, 10, 18, 30, 0, 0, time.UTC)
	deadline := &domain.TimeOfDay{Hour: 8, Minute: 0}

	end := EndTime(4, domain.SendPolicy{EndTime: deadline}, now)

	want := time.Date(2025, 3, 11, 8, 0, 0, 0, time.UTC)
	if !end.Equal(want) {
		t.Fatalf("end time = %v, want %v", end, want)
	}
	naive := deadline.On(now)
	if end.Sub(naive) != 24*time.Hour {
		t.Errorf("rollover = %v, want exactly 24h past naive interpretation", end.Sub(naive))
	}
}

func TestEndTimeExactNowRollsForward(t *testing.T) {
	// A deadline equal to now must still land strictly in the future.
	now := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	end := EndTime(1, domain.SendPolicy{EndTime: &domain.TimeOfDay{Hour: 8, Minute: 0}}, now)
	if !end.After(now) {
		t.Fatalf("end time %v not after now %v", end, now)
	}
}

func TestEndTimeSpeedTiers(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	cases := []struct {
		speed domain.Speed
		want  time.Duration
	}{
		{domain.SpeedFast, 30 * time.Minute},
		{domain.SpeedMedium, 60 * time.Minute},
		{domain.SpeedSlow, 100 * time.Minute},
		{domain.Speed("bogus"), 60 * time.Minute},
	}
	for _, tc := range cases {
		end := EndTime(10, domain.SendPolicy{Speed: tc.speed}, now)
		if got := end.Sub(now); got != tc.want {
			t.Errorf("speed %q: end offset = %v, want %v", tc.speed, got, tc.want)
		}
	}
}

func TestBuildEmptyInputs(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	policy := domain.SendPolicy{Speed: domain.SpeedFast}

	plan := Build(0, makeSlots(3), policy, now)
	if plan.Rounds != 0 || len(plan.Assignments) != 0 {
		t.Errorf("zero contacts: rounds=%d assignments=%d", plan.Rounds, len(plan.Assignments))
	}

	plan = Build(5, nil, policy, now)
	if plan.Rounds != 0 || len(plan.Assignments) != 0 {
		t.Errorf("zero slots: rounds=%d assignments=%d", plan.Rounds, len(plan.Assignments))
	}
}
