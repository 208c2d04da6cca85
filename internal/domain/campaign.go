package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Speed names a delivery pacing tier mapped to a fixed per-contact delay.
type Speed string

const (
	SpeedFast   Speed = "fast"
	SpeedMedium Speed = "medium"
	SpeedSlow   Speed = "slow"
)

// Delay returns the per-contact delay for the tier. Unknown tiers fall back
// to medium.
func (s Speed) Delay() time.Duration {
	switch s {
	case SpeedFast:
		return 3 * time.Minute
	case SpeedSlow:
		return 10 * time.Minute
	default:
		return 6 * time.Minute
	}
}

// TimeOfDay is a wall-clock completion deadline without a date.
type TimeOfDay struct {
	Hour   int
	Minute int
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// ParseTimeOfDay parses an "HH:MM" wall-clock string.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var hour, minute int
	if _, err := fmt.Sscanf(s, "%d:%d", &hour, &minute); err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q", s)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q", s)
	}
	return TimeOfDay{Hour: hour, Minute: minute}, nil
}

// On anchors the time-of-day to the date of ref, in ref's location.
func (t TimeOfDay) On(ref time.Time) time.Time {
	return time.Date(ref.Year(), ref.Month(), ref.Day(), t.Hour, t.Minute, 0, 0, ref.Location())
}

// SendPolicy is either an explicit deadline or a named speed tier. When
// EndTime is set it wins over Speed.
type SendPolicy struct {
	Speed   Speed
	EndTime *TimeOfDay
}

// CampaignDefinition describes a reusable campaign: target segment, pacing
// policy and default message/template. Delivery rows reference it by Name.
type CampaignDefinition struct {
	ID         uuid.UUID
	Name       string
	SegmentID  *uuid.UUID
	Policy     SendPolicy
	TemplateID *uuid.UUID
	Message    string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// DeliveryStatus enumerates outcomes of a single outbound message.
type DeliveryStatus string

const (
	DeliveryStatusPending DeliveryStatus = "pending"
	DeliveryStatusSent    DeliveryStatus = "sent"
	DeliveryStatusFailed  DeliveryStatus = "failed"
)

// Delivery is one outbound-message record: a denormalized snapshot of the
// contact, assigned line and resolved message taken at plan time.
type Delivery struct {
	ID           uuid.UUID
	CampaignName string
	ContactName  string
	ContactPhone string
	LineID       uuid.UUID
	OperatorID   uuid.UUID
	Round        int
	Message      string
	TemplateID   *uuid.UUID
	Status       DeliveryStatus
	AttemptCount int
	LastError    *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CampaignStats aggregates delivery outcomes and reply detection for one
// logical campaign.
type CampaignStats struct {
	TotalContacts int64
	Sent          int64
	Failed        int64
	Pending       int64
	Responses     int64
	SuccessRate   string
	ResponseRate  string
}

// ConversationMessage is one entry in a contact's chat log.
type ConversationMessage struct {
	ID           uuid.UUID
	ContactPhone string
	LineID       uuid.UUID
	Direction    MessageDirection
	Body         string
	CreatedAt    time.Time
}

// MessageDirection distinguishes inbound (contact → platform) from outbound.
type MessageDirection string

const (
	DirectionInbound  MessageDirection = "in"
	DirectionOutbound MessageDirection = "out"
)
