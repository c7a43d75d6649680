package application

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SARVESHVARADKAR123/RealChat/services/messenger/internal/domain"
	"github.com/SARVESHVARADKAR123/RealChat/services/messenger/internal/partition"
	"github.com/SARVESHVARADKAR123/RealChat/services/messenger/internal/partition/partitiontest"
	"github.com/SARVESHVARADKAR123/RealChat/services/messenger/internal/roster"
)

func TestListMessagesPaginates(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := uuid.New()
	c := h.conversation(t, a)

	for sec := int64(1); sec <= 5; sec++ {
		_, err := h.svc.SendMessage(ctx, SendMessageCommand{ConversationID: c, SenderID: a, Content: "m", Timestamp: at(sec)})
		require.NoError(t, err)
	}

	first, err := h.svc.ListMessages(ctx, ListMessagesQuery{ConversationID: c, RequesterID: a, Limit: 2})
	require.NoError(t, err)
	require.Len(t, first.Messages, 2)
	require.True(t, first.HasMore)
	assert.True(t, first.Messages[0].Timestamp.Equal(at(5)))

	second, err := h.svc.ListMessagesBefore(ctx, ListMessagesQuery{ConversationID: c, RequesterID: a, Limit: 2}, *first.Next)
	require.NoError(t, err)
	require.Len(t, second.Messages, 2)
	assert.True(t, second.Messages[0].Timestamp.Equal(at(3)))
	assert.True(t, second.Messages[1].Timestamp.Equal(at(2)))
}

func TestListMessagesRequesterMustBeParticipant(t *testing.T) {
	h := newHarness(t)
	c := h.conversation(t, uuid.New())

	_, err := h.svc.ListMessages(context.Background(), ListMessagesQuery{ConversationID: c, RequesterID: uuid.New()})
	assert.ErrorIs(t, err, domain.ErrNotParticipant)
}

func TestListMessagesDegradedWithoutRoster(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	orphan := uuid.New()

	msg, err := domain.NewMessage(uuid.New(), orphan, uuid.New(), "lost", at(1))
	require.NoError(t, err)
	require.NoError(t, h.messages.Write(ctx, msg))

	page, err := h.svc.ListMessages(ctx, ListMessagesQuery{ConversationID: orphan})
	require.NoError(t, err, "inconsistent state is not fatal")
	assert.True(t, page.Degraded)
	assert.Len(t, page.Messages, 1)

	empty, err := h.svc.ListMessages(ctx, ListMessagesQuery{ConversationID: uuid.New()})
	require.NoError(t, err)
	assert.False(t, empty.Degraded)
	assert.Empty(t, empty.Messages)
}

func TestRetryPolicy(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	c := h.conversation(t, uuid.New())

	t.Run("Transient failures are retried", func(t *testing.T) {
		h.store.Reset()
		before := h.store.Calls(partitiontest.OpGetRange, roster.Table)
		h.store.FailNext(partitiontest.OpGetRange, roster.Table, "", 2, partition.ErrUnavailable)

		_, err := h.svc.ListParticipants(ctx, c)
		require.NoError(t, err)
		assert.Equal(t, before+3, h.store.Calls(partitiontest.OpGetRange, roster.Table))
	})

	t.Run("Attempts are bounded", func(t *testing.T) {
		h.store.Reset()
		before := h.store.Calls(partitiontest.OpGetRange, roster.Table)
		h.store.FailNext(partitiontest.OpGetRange, roster.Table, "", -1, partition.ErrTimeout)

		_, err := h.svc.ListParticipants(ctx, c)
		assert.ErrorIs(t, err, partition.ErrTimeout)
		assert.Equal(t, before+3, h.store.Calls(partitiontest.OpGetRange, roster.Table))
	})

	t.Run("Permanent failures are not retried", func(t *testing.T) {
		h.store.Reset()
		before := h.store.Calls(partitiontest.OpGetRange, roster.Table)
		h.store.FailNext(partitiontest.OpGetRange, roster.Table, "", -1, partition.ErrInvalidKey)

		_, err := h.svc.ListParticipants(ctx, c)
		assert.ErrorIs(t, err, partition.ErrInvalidKey)
		assert.Equal(t, before+1, h.store.Calls(partitiontest.OpGetRange, roster.Table))
	})

	t.Run("Canceled context keeps the store error", func(t *testing.T) {
		h.store.Reset()
		h.store.FailNext(partitiontest.OpGetRange, roster.Table, "", -1, partition.ErrTimeout)
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := h.svc.ListParticipants(cctx, c)
		assert.ErrorIs(t, err, partition.ErrTimeout)
	})
}
