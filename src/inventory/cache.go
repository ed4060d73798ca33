package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RedisStatusCache serves inventory status reads. Entries are short lived
// and dropped on every reserve or release; the database stays authoritative.
type RedisStatusCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *logrus.Logger
}

func NewRedisStatusCache(client *redis.Client, ttl time.Duration, logger *logrus.Logger) *RedisStatusCache {
	return &RedisStatusCache{client: client, ttl: ttl, logger: logger}
}

func statusKey(id uuid.UUID) string {
	return fmt.Sprintf("inventory:%s", id.String())
}

func (c *RedisStatusCache) Get(ctx context.Context, id uuid.UUID) (*Status, bool) {
	val, err := c.client.Get(ctx, statusKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		c.logger.WithContext(ctx).WithError(err).Warn("inventory cache read failed")
		return nil, false
	}
	var s Status
	if err := json.Unmarshal([]byte(val), &s); err != nil {
		c.logger.WithContext(ctx).WithError(err).Warn("inventory cache entry is corrupt")
		return nil, false
	}
	return &s, true
}

func (c *RedisStatusCache) Set(ctx context.Context, s *Status) {
	b, err := json.Marshal(s)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, statusKey(s.TicketTypeID), string(b), c.ttl).Err(); err != nil {
		c.logger.WithContext(ctx).WithError(err).Warn("inventory cache write failed")
	}
}

func (c *RedisStatusCache) Invalidate(ctx context.Context, id uuid.UUID) {
	if err := c.client.Del(ctx, statusKey(id)).Err(); err != nil {
		c.logger.WithContext(ctx).WithError(err).Warn("inventory cache invalidation failed")
	}
}
