// Package roster owns the conversation_participants table.
package roster

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/SARVESHVARADKAR123/RealChat/services/messenger/internal/domain"
	"github.com/SARVESHVARADKAR123/RealChat/services/messenger/internal/partition"
)

const (
	Table = "conversation_participants"

	genStripes = 256
)

// Cache holds whole rosters. A miss is (nil, false, nil).
type Cache interface {
	GetParticipants(ctx context.Context, conversationID uuid.UUID) ([]uuid.UUID, bool, error)
	SetParticipants(ctx context.Context, conversationID uuid.UUID, participants []uuid.UUID) error
	Invalidate(ctx context.Context, conversationID uuid.UUID) error
}

type Options struct {
	Cache            Cache
	Logger           *zap.Logger
	ReadConsistency  partition.Consistency
	WriteConsistency partition.Consistency
}

type Manager struct {
	store  partition.Store
	cache  Cache
	log    *zap.Logger
	readC  partition.Consistency
	writeC partition.Consistency

	// A roster read may only fill the cache if no add to the same stripe
	// finished while it was in flight. Adds bump the generation and
	// invalidate under the stripe lock, and fills check and write under it.
	genMu [genStripes]sync.Mutex
	gen   [genStripes]uint64
}

func New(store partition.Store, opts Options) *Manager {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		store:  store,
		cache:  opts.Cache,
		log:    log,
		readC:  opts.ReadConsistency,
		writeC: opts.WriteConsistency,
	}
}

func stripeOf(conversationID uuid.UUID) int {
	return int(xxhash.Sum64(conversationID[:]) % genStripes)
}

func (m *Manager) generation(i int) uint64 {
	m.genMu[i].Lock()
	defer m.genMu[i].Unlock()
	return m.gen[i]
}

func participantKey(participantID uuid.UUID) []byte {
	return partition.NewKey().UUID(participantID).Bytes()
}

// AddParticipant is an idempotent insert: the row is keyed by the participant
// so a second add overwrites the first with identical content.
func (m *Manager) AddParticipant(ctx context.Context, conversationID, participantID uuid.UUID) error {
	if conversationID == uuid.Nil || participantID == uuid.Nil {
		return domain.NewValidationError("participant", domain.ErrInvalidInput)
	}

	row, err := json.Marshal(domain.ParticipantMembership{
		ConversationID: conversationID,
		ParticipantID:  participantID,
	})
	if err != nil {
		return fmt.Errorf("failed to encode membership: %w", err)
	}

	if err := m.store.Put(ctx, Table, conversationID.String(), participantKey(participantID), row, m.writeC); err != nil {
		return fmt.Errorf("failed to add participant: %w", err)
	}

	if m.cache != nil {
		i := stripeOf(conversationID)
		m.genMu[i].Lock()
		m.gen[i]++
		err := m.cache.Invalidate(ctx, conversationID)
		m.genMu[i].Unlock()
		if err != nil {
			m.log.Warn("roster cache invalidate failed",
				zap.String("conversation_id", conversationID.String()),
				zap.Error(err),
			)
		}
	}
	return nil
}

// ListParticipants returns the roster ascending by participant id. An unknown
// conversation yields an empty roster. The result may come from the cache.
func (m *Manager) ListParticipants(ctx context.Context, conversationID uuid.UUID) ([]uuid.UUID, error) {
	if m.cache != nil {
		cached, hit, err := m.cache.GetParticipants(ctx, conversationID)
		if err != nil {
			m.log.Warn("roster cache read failed",
				zap.String("conversation_id", conversationID.String()),
				zap.Error(err),
			)
		} else if hit {
			return cached, nil
		}
	}
	return m.ReadParticipants(ctx, conversationID)
}

// ReadParticipants lists the roster from the store, skipping the cache, and
// refreshes the cache with what it read. Inbox fan-out uses it because an add
// made by another process only shows up in the store.
func (m *Manager) ReadParticipants(ctx context.Context, conversationID uuid.UUID) ([]uuid.UUID, error) {
	i := stripeOf(conversationID)
	var gen uint64
	if m.cache != nil {
		gen = m.generation(i)
	}

	rows, err := m.store.GetRange(ctx, Table, conversationID.String(), partition.RangeQuery{
		Order:       partition.Ascending,
		Consistency: m.readC,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}

	participants := make([]uuid.UUID, 0, len(rows))
	for _, r := range rows {
		id, err := uuid.FromBytes(r.Clustering)
		if err != nil {
			return nil, fmt.Errorf("corrupt participant key in %s: %w", conversationID, err)
		}
		participants = append(participants, id)
	}

	// Empty rosters are not cached so a conversation becomes visible as soon
	// as its first participant is written.
	if m.cache != nil && len(participants) > 0 {
		m.fill(ctx, i, gen, conversationID, participants)
	}
	return participants, nil
}

func (m *Manager) fill(ctx context.Context, i int, gen uint64, conversationID uuid.UUID, participants []uuid.UUID) {
	m.genMu[i].Lock()
	defer m.genMu[i].Unlock()

	if m.gen[i] != gen {
		// An add landed after our read began; our snapshot may miss it.
		return
	}
	if err := m.cache.SetParticipants(ctx, conversationID, participants); err != nil {
		m.log.Warn("roster cache write failed",
			zap.String("conversation_id", conversationID.String()),
			zap.Error(err),
		)
	}
}

func (m *Manager) IsParticipant(ctx context.Context, conversationID, userID uuid.UUID) (bool, error) {
	_, err := m.store.Get(ctx, Table, conversationID.String(), participantKey(userID), m.readC)
	if errors.Is(err, partition.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check participant: %w", err)
	}
	return true, nil
}
