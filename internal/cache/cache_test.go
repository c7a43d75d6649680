package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := NewRedisWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Minute)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestRedisRoster(t *testing.T) {
	c, mr := newTestRedis(t)
	ctx := context.Background()
	conv := uuid.New()
	roster := []uuid.UUID{uuid.New(), uuid.New()}

	_, hit, err := c.GetParticipants(ctx, conv)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, c.SetParticipants(ctx, conv, roster))
	assert.True(t, mr.Exists("roster:"+conv.String()))

	got, hit, err := c.GetParticipants(ctx, conv)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, roster, got)

	mr.FastForward(2 * time.Minute)
	_, hit, err = c.GetParticipants(ctx, conv)
	require.NoError(t, err)
	assert.False(t, hit, "entry expires after ttl")

	require.NoError(t, c.SetParticipants(ctx, conv, roster))
	require.NoError(t, c.Invalidate(ctx, conv))
	_, hit, err = c.GetParticipants(ctx, conv)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestRedisRosterUnavailable(t *testing.T) {
	c, mr := newTestRedis(t)
	mr.Close()

	_, _, err := c.GetParticipants(context.Background(), uuid.New())
	assert.Error(t, err)
}

func TestMemoryRoster(t *testing.T) {
	c := NewMemory(time.Minute)
	now := time.Now()
	c.now = func() time.Time { return now }
	ctx := context.Background()
	conv := uuid.New()
	roster := []uuid.UUID{uuid.New()}

	require.NoError(t, c.SetParticipants(ctx, conv, roster))
	roster[0] = uuid.Nil

	got, hit, err := c.GetParticipants(ctx, conv)
	require.NoError(t, err)
	require.True(t, hit)
	assert.NotEqual(t, uuid.Nil, got[0], "cache keeps its own copy")

	now = now.Add(2 * time.Minute)
	_, hit, _ = c.GetParticipants(ctx, conv)
	assert.False(t, hit)

	now = time.Now()
	require.NoError(t, c.SetParticipants(ctx, conv, got))
	require.NoError(t, c.Invalidate(ctx, conv))
	_, hit, _ = c.GetParticipants(ctx, conv)
	assert.False(t, hit)
}
