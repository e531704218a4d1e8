// Package cache holds the Redis-backed fast paths. Nothing here is a source of
// truth; every value can be rebuilt from PostgreSQL.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/mybank-ledger/internal/ledger_core/idempotency"
)

// Outcome and marker keys live under sibling prefixes so no caller key can
// land in the other namespace.
const (
	outcomePrefix = "idempotency:outcome:"
	lockPrefix    = "idempotency:lock:"
)

// releaseScript deletes the marker only when it still holds the caller's lease
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// IdempotencyCache implements idempotency.Cache on Redis
type IdempotencyCache struct {
	client  redis.Cmdable
	logger  *slog.Logger
	ttl     time.Duration
	lockTTL time.Duration
}

var _ idempotency.Cache = (*IdempotencyCache)(nil)

func NewIdempotencyCache(logger *slog.Logger, client redis.Cmdable, ttl, lockTTL time.Duration) *IdempotencyCache {
	return &IdempotencyCache{
		client:  client,
		logger:  logger,
		ttl:     ttl,
		lockTTL: lockTTL,
	}
}

func (c *IdempotencyCache) Get(ctx context.Context, key string) (*idempotency.Entry, error) {
	raw, err := c.client.Get(ctx, outcomePrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read idempotency entry: %w", err)
	}

	var entry idempotency.Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		c.logger.Warn("Discarding unreadable idempotency entry", "error", err)
		return nil, nil
	}
	return &entry, nil
}

func (c *IdempotencyCache) Put(ctx context.Context, key string, entry *idempotency.Entry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode idempotency entry: %w", err)
	}
	if err := c.client.Set(ctx, outcomePrefix+key, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store idempotency entry: %w", err)
	}
	return nil
}

// Acquire stores a fresh lease under the marker key with SET NX. It returns
// "" when the marker is already held.
func (c *IdempotencyCache) Acquire(ctx context.Context, key string) (string, error) {
	lease := uuid.NewString()
	ok, err := c.client.SetNX(ctx, lockPrefix+key, lease, c.lockTTL).Result()
	if err != nil {
		return "", fmt.Errorf("failed to set in-flight marker: %w", err)
	}
	if !ok {
		return "", nil
	}
	return lease, nil
}

// Release clears the marker if it still carries lease. A marker that expired
// and was taken by another caller is left alone.
func (c *IdempotencyCache) Release(ctx context.Context, key, lease string) error {
	deleted, err := releaseScript.Run(ctx, c.client, []string{lockPrefix + key}, lease).Int64()
	if err != nil {
		return fmt.Errorf("failed to clear in-flight marker: %w", err)
	}
	if deleted == 0 {
		c.logger.Debug("In-flight marker no longer owned, left in place", "key", key)
	}
	return nil
}
