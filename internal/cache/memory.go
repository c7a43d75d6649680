package cache

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryEntry struct {
	participants []uuid.UUID
	expires      time.Time
}

// Memory is an in-process roster cache for single-node deployments.
type Memory struct {
	mu   sync.RWMutex
	data map[uuid.UUID]memoryEntry
	ttl  time.Duration
	now  func() time.Time
}

func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Memory{
		data: make(map[uuid.UUID]memoryEntry),
		ttl:  ttl,
		now:  time.Now,
	}
}

func (c *Memory) GetParticipants(_ context.Context, conversationID uuid.UUID) ([]uuid.UUID, bool, error) {
	c.mu.RLock()
	e, ok := c.data[conversationID]
	c.mu.RUnlock()

	if !ok || c.now().After(e.expires) {
		return nil, false, nil
	}
	out := make([]uuid.UUID, len(e.participants))
	copy(out, e.participants)
	return out, true, nil
}

func (c *Memory) SetParticipants(_ context.Context, conversationID uuid.UUID, participants []uuid.UUID) error {
	stored := make([]uuid.UUID, len(participants))
	copy(stored, participants)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[conversationID] = memoryEntry{participants: stored, expires: c.now().Add(c.ttl)}
	return nil
}

func (c *Memory) Invalidate(_ context.Context, conversationID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, conversationID)
	return nil
}
