package application

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func (s *Service) AddParticipant(ctx context.Context, conversationID, participantID uuid.UUID) error {
	err := s.retry(ctx, "roster_add", func(ctx context.Context) error {
		return s.roster.AddParticipant(ctx, conversationID, participantID)
	})
	if err != nil {
		return fmt.Errorf("failed to add participant: %w", err)
	}

	s.log.Info("Participant added",
		zap.String("conversation_id", conversationID.String()),
		zap.String("participant_id", participantID.String()),
	)
	return nil
}

// ListParticipants returns an empty roster for an unknown conversation.
func (s *Service) ListParticipants(ctx context.Context, conversationID uuid.UUID) ([]uuid.UUID, error) {
	return s.listParticipants(ctx, conversationID)
}

func (s *Service) listParticipants(ctx context.Context, conversationID uuid.UUID) ([]uuid.UUID, error) {
	return s.rosterWithRetry(ctx, "roster_list", s.roster.ListParticipants, conversationID)
}

// fanOutParticipants reads the roster past the cache so a member added by
// another process is not left out of the inbox fan-out.
func (s *Service) fanOutParticipants(ctx context.Context, conversationID uuid.UUID) ([]uuid.UUID, error) {
	return s.rosterWithRetry(ctx, "roster_read", s.roster.ReadParticipants, conversationID)
}

func (s *Service) rosterWithRetry(
	ctx context.Context,
	step string,
	read func(context.Context, uuid.UUID) ([]uuid.UUID, error),
	conversationID uuid.UUID,
) ([]uuid.UUID, error) {
	var participants []uuid.UUID
	err := s.retry(ctx, step, func(ctx context.Context) error {
		var err error
		participants, err = read(ctx, conversationID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return participants, nil
}
