package lineguard

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

// Limiter serializes sends per WhatsApp line using Redis counters. A line
// carries at most one in-flight message at a time so the provider session
// never interleaves sends.
type Limiter struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// NewLimiter constructs a per-line limiter. The TTL bounds how long a crashed
// worker can hold a line slot.
func NewLimiter(client *redis.Client, keyPrefix string, ttl time.Duration) *Limiter {
	if keyPrefix == "" {
		keyPrefix = "wacc:line"
	}
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &Limiter{client: client, keyPrefix: keyPrefix, ttl: ttl}
}

// Acquire attempts to reserve the line for a single send.
func (l *Limiter) Acquire(ctx context.Context, lineID uuid.UUID) (bool, error) {
	if lineID == uuid.Nil {
		return true, nil
	}

	script := redis.NewScript(`
local key = KEYS[1]
local ttl = tonumber(ARGV[1])
local current = tonumber(redis.call('GET', key) or '0')
if current < 1 then
  redis.call('INCR', key)
  if ttl > 0 then
    redis.call('PEXPIRE', key, ttl)
  end
  return 1
end
return 0
`)

	key := l.key(lineID)
	res, err := script.Run(ctx, l.client, []string{key}, l.ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("lineguard acquire: %w", err)
	}
	return res == 1, nil
}

// Release frees the line after the send finishes.
func (l *Limiter) Release(ctx context.Context, lineID uuid.UUID) error {
	if lineID == uuid.Nil {
		return nil
	}
	key := l.key(lineID)
	script := redis.NewScript(`
local key = KEYS[1]
local current = tonumber(redis.call('GET', key) or '0')
if current <= 0 then
  redis.call('DEL', key)
  return 0
end
return redis.call('DECR', key)
`)
	if _, err := script.Run(ctx, l.client, []string{key}).Int(); err != nil {
		return fmt.Errorf("lineguard release: %w", err)
	}
	return nil
}

func (l *Limiter) key(lineID uuid.UUID) string {
	return fmt.Sprintf("%s:%s:inflight", l.keyPrefix, lineID.String())
}
