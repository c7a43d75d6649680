package application

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/SARVESHVARADKAR123/RealChat/services/messenger/internal/domain"
	"github.com/SARVESHVARADKAR123/RealChat/services/messenger/internal/idgen"
)

type CreateConversationCommand struct {
	// ConversationID is generated when nil.
	ConversationID uuid.UUID
	Participants   []uuid.UUID
}

// CreateConversation writes the initial roster. Participants are written one
// by one; a failure part way leaves a smaller roster that a retry with the
// same ConversationID completes.
func (s *Service) CreateConversation(ctx context.Context, cmd CreateConversationCommand) (*domain.Conversation, error) {
	participants := make([]uuid.UUID, 0, len(cmd.Participants))
	seen := make(map[uuid.UUID]struct{}, len(cmd.Participants))
	for _, p := range cmd.Participants {
		if p == uuid.Nil {
			return nil, domain.NewValidationError("participants", domain.ErrInvalidInput)
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		participants = append(participants, p)
	}
	if len(participants) == 0 {
		return nil, domain.NewValidationError("participants", domain.ErrInvalidInput)
	}

	id := cmd.ConversationID
	if id == uuid.Nil {
		id = s.ids.NewID()
	}

	for _, p := range participants {
		if err := s.AddParticipant(ctx, id, p); err != nil {
			return nil, err
		}
	}

	roster, err := s.listParticipants(ctx, id)
	if err != nil {
		return nil, err
	}

	s.log.Info("Conversation created",
		zap.String("conversation_id", id.String()),
		zap.Int("participants", len(roster)),
	)
	return &domain.Conversation{ID: id, Participants: roster}, nil
}

// CreateDirectConversation returns the one conversation between a and b,
// creating it on first use.
func (s *Service) CreateDirectConversation(ctx context.Context, a, b uuid.UUID) (*domain.Conversation, error) {
	if a == uuid.Nil || b == uuid.Nil || a == b {
		return nil, domain.NewValidationError("participants", domain.ErrInvalidInput)
	}
	return s.CreateConversation(ctx, CreateConversationCommand{
		ConversationID: idgen.DirectConversationID(a, b),
		Participants:   []uuid.UUID{a, b},
	})
}

// GetConversation fails with ErrConversationNotFound when the roster is empty.
func (s *Service) GetConversation(ctx context.Context, conversationID uuid.UUID) (*domain.Conversation, error) {
	participants, err := s.listParticipants(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if len(participants) == 0 {
		return nil, domain.ErrConversationNotFound
	}
	return &domain.Conversation{ID: conversationID, Participants: participants}, nil
}
