package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notification-service/internal/models"
)

func newTestCache(t *testing.T) (*StatusCache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewStatusCache(client, 5*time.Minute), mr
}

func TestStatusCache_SetGet(t *testing.T) {
	cache, _ := newTestCache(t)
	id := uuid.New()

	require.NoError(t, cache.SetStatus(context.Background(), id, models.StatusSent))

	status, err := cache.GetStatus(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSent, status)
}

func TestStatusCache_Miss(t *testing.T) {
	cache, _ := newTestCache(t)

	_, err := cache.GetStatus(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrStatusNotCached)
}

func TestStatusCache_OverwriteAndExpiry(t *testing.T) {
	cache, mr := newTestCache(t)
	id := uuid.New()

	require.NoError(t, cache.SetStatus(context.Background(), id, models.StatusPending))
	require.NoError(t, cache.SetStatus(context.Background(), id, models.StatusFailed))

	status, err := cache.GetStatus(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, status)

	mr.FastForward(6 * time.Minute)

	_, err = cache.GetStatus(context.Background(), id)
	assert.ErrorIs(t, err, ErrStatusNotCached)
}
