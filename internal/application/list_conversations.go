package application

import (
	"context"

	"github.com/google/uuid"

	"github.com/SARVESHVARADKAR123/RealChat/services/messenger/internal/domain"
	"github.com/SARVESHVARADKAR123/RealChat/services/messenger/internal/inbox"
)

func (s *Service) ListUserConversations(
	ctx context.Context,
	userID uuid.UUID,
	limit int,
	cursor *inbox.Cursor,
) (*inbox.Page, error) {

	if userID == uuid.Nil {
		return nil, domain.NewValidationError("user_id", domain.ErrInvalidInput)
	}

	var page *inbox.Page
	err := s.retry(ctx, "inbox_list", func(ctx context.Context) error {
		var err error
		page, err = s.inbox.ListConversations(ctx, userID, limit, cursor)
		return err
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}
