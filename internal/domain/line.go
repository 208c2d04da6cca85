package domain

import "github.com/google/uuid"

// LineStatus enumerates lifecycle states of a WhatsApp line.
type LineStatus string

const (
	LineStatusActive       LineStatus = "active"
	LineStatusConnecting   LineStatus = "connecting"
	LineStatusDisconnected LineStatus = "disconnected"
	LineStatusBanned       LineStatus = "banned"
)

// Line is a WhatsApp-capable sending identity shared by operators.
type Line struct {
	ID     uuid.UUID
	Phone  string
	Status LineStatus
}

// PresenceStatus enumerates operator presence states.
type PresenceStatus string

const (
	PresenceOnline  PresenceStatus = "online"
	PresenceOffline PresenceStatus = "offline"
)

// Operator is a user with the operator role. The scheduler treats it purely
// as a carrier of lines.
type Operator struct {
	ID        uuid.UUID
	Name      string
	SegmentID *uuid.UUID
	Lines     []Line
}

// ActiveLines returns the operator's lines with status active.
func (o Operator) ActiveLines() []Line {
	lines := make([]Line, 0, len(o.Lines))
	for _, l := range o.Lines {
		if l.Status == LineStatusActive {
			lines = append(lines, l)
		}
	}
	return lines
}
