package domain

import (
	"time"

	"github.com/google/uuid"
)

// Contact is a person reachable over WhatsApp, keyed by canonical phone.
type Contact struct {
	ID         uuid.UUID
	Phone      string
	Name       string
	CPF        *string
	Contract   *string
	SegmentID  *uuid.UUID
	CPC        bool
	CPCAt      *time.Time
	NameLocked bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ContactPatch carries incoming identity fields from a later sighting
// (campaign upload, inbound message, manual entry).
type ContactPatch struct {
	Name      string
	CPF       *string
	Contract  *string
	SegmentID *uuid.UUID
}

// Merge applies the patch, overriding only with non-empty incoming values.
// An empty incoming field never blanks an existing one, and a manually set
// name is never overwritten. Reports whether anything changed.
func (c *Contact) Merge(patch ContactPatch) bool {
	changed := false
	if patch.Name != "" && patch.Name != c.Name && !c.NameLocked {
		c.Name = patch.Name
		changed = true
	}
	if v := nonEmpty(patch.CPF); v != nil && (c.CPF == nil || *c.CPF != *v) {
		c.CPF = v
		changed = true
	}
	if v := nonEmpty(patch.Contract); v != nil && (c.Contract == nil || *c.Contract != *v) {
		c.Contract = v
		changed = true
	}
	if patch.SegmentID != nil && (c.SegmentID == nil || *c.SegmentID != *patch.SegmentID) {
		c.SegmentID = patch.SegmentID
		changed = true
	}
	return changed
}

func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}
