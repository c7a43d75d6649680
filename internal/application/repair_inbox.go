package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/SARVESHVARADKAR123/RealChat/services/messenger/internal/domain"
)

var ErrRepairIncomplete = errors.New("inbox repair incomplete")

// RepairInbox re-applies the inbox touches described by ev. Touches are
// idempotent and never move a pointer back, so an event can be handled any
// number of times.
func (s *Service) RepairInbox(ctx context.Context, ev domain.InboxRepairEvent) error {
	participants, err := s.fanOutParticipants(ctx, ev.ConversationID)
	if err != nil {
		return fmt.Errorf("failed to read roster for repair: %w", err)
	}
	conv := &domain.Conversation{ID: ev.ConversationID, Participants: participants}

	targets := participants
	if len(ev.UserIDs) > 0 {
		targets = make([]uuid.UUID, 0, len(ev.UserIDs))
		for _, u := range ev.UserIDs {
			if conv.HasParticipant(u) {
				targets = append(targets, u)
			}
		}
	}

	failed := s.touchAll(ctx, conv, targets, ev.SenderID, ev.LastUpdated)
	if len(failed) > 0 {
		return fmt.Errorf("%w: %d of %d users", ErrRepairIncomplete, len(failed), len(targets))
	}

	s.log.Info("Inbox repaired",
		zap.String("conversation_id", ev.ConversationID.String()),
		zap.String("message_id", ev.MessageID.String()),
		zap.Int("users", len(targets)),
	)
	return nil
}
