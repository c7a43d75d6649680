package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const rosterPrefix = "roster:"

// Redis caches conversation rosters as JSON arrays under "roster:<id>".
type Redis struct {
	Client *redis.Client
	ttl    time.Duration
}

func NewRedis(addr string, ttl time.Duration) *Redis {
	return NewRedisWithClient(redis.NewClient(&redis.Options{
		Addr: addr,
	}), ttl)
}

func NewRedisWithClient(client *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Redis{Client: client, ttl: ttl}
}

func (c *Redis) GetParticipants(ctx context.Context, conversationID uuid.UUID) ([]uuid.UUID, bool, error) {
	val, err := c.Client.Get(ctx, rosterPrefix+conversationID.String()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil // Miss
		}
		return nil, false, err
	}

	var participants []uuid.UUID
	if err := json.Unmarshal(val, &participants); err != nil {
		return nil, false, err
	}
	return participants, true, nil
}

func (c *Redis) SetParticipants(ctx context.Context, conversationID uuid.UUID, participants []uuid.UUID) error {
	val, err := json.Marshal(participants)
	if err != nil {
		return err
	}
	return c.Client.Set(ctx, rosterPrefix+conversationID.String(), val, c.ttl).Err()
}

func (c *Redis) Invalidate(ctx context.Context, conversationID uuid.UUID) error {
	return c.Client.Del(ctx, rosterPrefix+conversationID.String()).Err()
}

func (c *Redis) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

func (c *Redis) Close() error {
	return c.Client.Close()
}
