package application

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/SARVESHVARADKAR123/RealChat/services/messenger/internal/domain"
	"github.com/SARVESHVARADKAR123/RealChat/services/messenger/internal/messagelog"
	"github.com/SARVESHVARADKAR123/RealChat/services/messenger/internal/observability"
)

type ListMessagesQuery struct {
	ConversationID uuid.UUID
	// RequesterID, when set, must be a participant.
	RequesterID uuid.UUID
	Limit       int
}

type MessagePage struct {
	Messages []domain.Message
	Next     *messagelog.Cursor
	HasMore  bool
	// Degraded is set when the conversation has messages but no roster.
	Degraded bool
}

func (s *Service) ListMessages(ctx context.Context, q ListMessagesQuery) (*MessagePage, error) {
	return s.listMessages(ctx, q, nil)
}

func (s *Service) ListMessagesBefore(ctx context.Context, q ListMessagesQuery, cursor messagelog.Cursor) (*MessagePage, error) {
	return s.listMessages(ctx, q, &cursor)
}

func (s *Service) listMessages(ctx context.Context, q ListMessagesQuery, cursor *messagelog.Cursor) (*MessagePage, error) {
	if q.ConversationID == uuid.Nil {
		return nil, domain.NewValidationError("conversation_id", domain.ErrInvalidInput)
	}

	if q.RequesterID != uuid.Nil {
		var ok bool
		err := s.retry(ctx, "roster_check", func(ctx context.Context) error {
			var err error
			ok, err = s.roster.IsParticipant(ctx, q.ConversationID, q.RequesterID)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("failed to check participant: %w", err)
		}
		if !ok {
			return nil, domain.NewValidationError("requester_id", domain.ErrNotParticipant)
		}
	}

	var page *messagelog.Page
	err := s.retry(ctx, "message_list", func(ctx context.Context) error {
		var err error
		if cursor == nil {
			page, err = s.messages.ListMessages(ctx, q.ConversationID, q.Limit)
		} else {
			page, err = s.messages.ListMessagesBefore(ctx, q.ConversationID, *cursor, q.Limit)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	out := &MessagePage{Messages: page.Messages, Next: page.Next, HasMore: page.HasMore}
	if len(page.Messages) > 0 && q.RequesterID == uuid.Nil {
		participants, err := s.listParticipants(ctx, q.ConversationID)
		if err != nil {
			return nil, err
		}
		if len(participants) == 0 {
			observability.InconsistentReadsTotal.Inc()
			s.log.Warn("messages found for conversation without participants",
				zap.String("conversation_id", q.ConversationID.String()),
				zap.Error(domain.ErrInconsistentState),
			)
			out.Degraded = true
		}
	}
	return out, nil
}
