package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/SARVESHVARADKAR123/RealChat/services/messenger/internal/partition"
)

const IdempotencyTable = "message_idempotency"

// idempotencyRecord pins the identity of a client's send so that every retry
// writes the same message row.
type idempotencyRecord struct {
	MessageID uuid.UUID `json:"message_id"`
	Timestamp time.Time `json:"timestamp"`
}

func idempotencyKey(senderID uuid.UUID, clientMsgID string) []byte {
	return partition.NewKey().UUID(senderID).String(clientMsgID).Bytes()
}

// claimIdempotency returns the record already stored for the key, or stores
// candidate. Claims for one key are serialized in-process; the store offers
// no compare-and-set to do it across processes.
func (s *Service) claimIdempotency(
	ctx context.Context,
	conversationID uuid.UUID,
	senderID uuid.UUID,
	clientMsgID string,
	candidate idempotencyRecord,
) (idempotencyRecord, bool, error) {

	key := idempotencyKey(senderID, clientMsgID)
	unlock := s.idemLocks.lock(append(conversationID[:], key...))
	defer unlock()

	pk := conversationID.String()
	var existing idempotencyRecord
	found := false

	err := s.retry(ctx, "idempotency_lookup", func(ctx context.Context) error {
		raw, err := s.store.Get(ctx, IdempotencyTable, pk, key, s.cfg.ReadConsistency)
		if errors.Is(err, partition.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := json.Unmarshal(raw, &existing); err != nil {
			return fmt.Errorf("failed to decode idempotency record: %w", err)
		}
		found = true
		return nil
	})
	if err != nil {
		return idempotencyRecord{}, false, fmt.Errorf("failed to check idempotency: %w", err)
	}
	if found {
		return existing, true, nil
	}

	raw, err := json.Marshal(candidate)
	if err != nil {
		return idempotencyRecord{}, false, fmt.Errorf("failed to encode idempotency record: %w", err)
	}
	err = s.retry(ctx, "idempotency_record", func(ctx context.Context) error {
		return s.store.Put(ctx, IdempotencyTable, pk, key, raw, s.cfg.WriteConsistency)
	})
	if err != nil {
		return idempotencyRecord{}, false, fmt.Errorf("failed to record idempotency: %w", err)
	}
	return candidate, false, nil
}
