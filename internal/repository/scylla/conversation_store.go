package scylla

import (
	"context"
	"fmt"
	"time"

	"github.com/gocql/gocql"

	"github.com/acme/whatsapp-campaign-center/internal/domain"
)

// ConversationStore persists the per-contact chat log in Scylla.
//
// messages_by_contact is partitioned by contact phone and day bucket,
// clustered by created_at descending, so reply detection reads at most a few
// recent partitions per contact.
type ConversationStore struct {
	session *gocql.Session
}

// NewConversationStore creates a new conversation store.
func NewConversationStore(session *gocql.Session) *ConversationStore {
	return &ConversationStore{session: session}
}

// Append inserts one chat message.
func (s *ConversationStore) Append(ctx context.Context, msg domain.ConversationMessage) error {
	bucket := bucketDate(msg.CreatedAt)
	if err := s.session.Query(`INSERT INTO messages_by_contact (contact_phone, bucket, created_at, message_id, direction, line_id, body)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		msg.ContactPhone, bucket, msg.CreatedAt, msg.ID.String(), string(msg.Direction), msg.LineID.String(), msg.Body,
	).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("conversation store: insert message: %w", err)
	}
	return nil
}

// HasInboundSince reports whether the contact sent at least one inbound
// message at or after since. Buckets are walked from since's day to today.
func (s *ConversationStore) HasInboundSince(ctx context.Context, contactPhone string, since time.Time) (bool, error) {
	start := bucketDate(since)
	end := bucketDate(time.Now().UTC())

	for bucket := start; !bucket.After(end); bucket = bucket.Add(24 * time.Hour) {
		iter := s.session.Query(`SELECT direction, created_at FROM messages_by_contact
			WHERE contact_phone = ? AND bucket = ? AND created_at >= ?`,
			contactPhone, bucket, since,
		).WithContext(ctx).Iter()

		var direction string
		var createdAt time.Time
		for iter.Scan(&direction, &createdAt) {
			if domain.MessageDirection(direction) == domain.DirectionInbound {
				if err := iter.Close(); err != nil {
					return false, fmt.Errorf("conversation store: iter close: %w", err)
				}
				return true, nil
			}
		}
		if err := iter.Close(); err != nil {
			return false, fmt.Errorf("conversation store: scan bucket: %w", err)
		}
	}

	return false, nil
}

func bucketDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
