// internal/store/cache.go
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"notification-service/internal/models"
)

// ErrStatusNotCached is returned on a cache miss.
var ErrStatusNotCached = redis.Nil

// StatusCache keeps the latest known delivery status per notification in
// Redis so status lookups don't hit Postgres on the hot path.
type StatusCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStatusCache(client *redis.Client, ttl time.Duration) *StatusCache {
	return &StatusCache{client: client, ttl: ttl}
}

func statusKey(id uuid.UUID) string {
	return fmt.Sprintf("notification:status:%s", id)
}

func (c *StatusCache) SetStatus(ctx context.Context, id uuid.UUID, status models.Status) error {
	return c.client.Set(ctx, statusKey(id), string(status), c.ttl).Err()
}

// GetStatus returns the cached status, or ErrStatusNotCached on a miss.
func (c *StatusCache) GetStatus(ctx context.Context, id uuid.UUID) (models.Status, error) {
	val, err := c.client.Get(ctx, statusKey(id)).Result()
	if err != nil {
		return "", err
	}
	return models.Status(val), nil
}
