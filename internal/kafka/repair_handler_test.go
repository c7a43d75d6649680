package kafka

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/SARVESHVARADKAR123/RealChat/services/messenger/internal/domain"
)

type MockRepairer struct {
	mock.Mock
}

func (m *MockRepairer) RepairInbox(ctx context.Context, ev domain.InboxRepairEvent) error {
	return m.Called(ctx, ev).Error(0)
}

func TestRepairHandler(t *testing.T) {
	ev := domain.InboxRepairEvent{
		Type:           domain.EventInboxRepair,
		ConversationID: uuid.New(),
		SenderID:       uuid.New(),
		MessageID:      uuid.New(),
		LastUpdated:    time.Unix(100, 0).UTC(),
		UserIDs:        []uuid.UUID{uuid.New()},
	}
	raw, err := json.Marshal(ev)
	require.NoError(t, err)

	t.Run("Valid event is repaired", func(t *testing.T) {
		svc := new(MockRepairer)
		svc.On("RepairInbox", mock.Anything, mock.MatchedBy(func(got domain.InboxRepairEvent) bool {
			return got.ConversationID == ev.ConversationID &&
				got.LastUpdated.Equal(ev.LastUpdated) &&
				len(got.UserIDs) == 1 && got.UserIDs[0] == ev.UserIDs[0]
		})).Return(nil).Once()

		assert.NoError(t, NewRepairHandler(svc).Handle(context.Background(), raw))
		svc.AssertExpectations(t)
	})

	t.Run("Repair errors are returned for retry", func(t *testing.T) {
		svc := new(MockRepairer)
		svc.On("RepairInbox", mock.Anything, mock.Anything).Return(assert.AnError).Once()

		err := NewRepairHandler(svc).Handle(context.Background(), raw)
		assert.ErrorIs(t, err, assert.AnError)
		svc.AssertExpectations(t)
	})

	t.Run("Garbage and foreign events are skipped", func(t *testing.T) {
		svc := new(MockRepairer)
		h := NewRepairHandler(svc)

		assert.NoError(t, h.Handle(context.Background(), []byte("{not json")))
		other, _ := json.Marshal(domain.MessageSentEvent{Type: domain.EventMessageSent})
		assert.NoError(t, h.Handle(context.Background(), other))

		svc.AssertNotCalled(t, "RepairInbox", mock.Anything, mock.Anything)
	})
}
