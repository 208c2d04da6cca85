// Package presence keeps operator online/offline markers in Redis. Online
// markers carry a TTL so a crashed client session decays to offline without
// an explicit sign-off.
package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"

	"github.com/acme/whatsapp-campaign-center/internal/domain"
)

// Store reads and writes operator presence.
type Store struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// NewStore constructs a presence store.
func NewStore(client *redis.Client, keyPrefix string, ttl time.Duration) *Store {
	if keyPrefix == "" {
		keyPrefix = "wacc:presence"
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Store{client: client, keyPrefix: keyPrefix, ttl: ttl}
}

// SetStatus marks an operator online (with TTL refresh) or offline.
func (s *Store) SetStatus(ctx context.Context, operatorID uuid.UUID, status domain.PresenceStatus) error {
	key := s.key(operatorID)
	if status == domain.PresenceOnline {
		if err := s.client.Set(ctx, key, string(domain.PresenceOnline), s.ttl).Err(); err != nil {
			return fmt.Errorf("presence: set online: %w", err)
		}
		return nil
	}
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("presence: set offline: %w", err)
	}
	return nil
}

// Online filters the given operator ids down to the currently online set.
func (s *Store) Online(ctx context.Context, operatorIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	online := make(map[uuid.UUID]bool, len(operatorIDs))
	if len(operatorIDs) == 0 {
		return online, nil
	}

	keys := make([]string, 0, len(operatorIDs))
	for _, id := range operatorIDs {
		keys = append(keys, s.key(id))
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("presence: mget: %w", err)
	}

	for i, v := range values {
		if v != nil {
			online[operatorIDs[i]] = true
		}
	}
	return online, nil
}

func (s *Store) key(operatorID uuid.UUID) string {
	return fmt.Sprintf("%s:%s", s.keyPrefix, operatorID.String())
}
