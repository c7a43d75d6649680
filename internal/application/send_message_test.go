package application

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SARVESHVARADKAR123/RealChat/services/messenger/internal/cache"
	"github.com/SARVESHVARADKAR123/RealChat/services/messenger/internal/domain"
	"github.com/SARVESHVARADKAR123/RealChat/services/messenger/internal/inbox"
	"github.com/SARVESHVARADKAR123/RealChat/services/messenger/internal/messagelog"
	"github.com/SARVESHVARADKAR123/RealChat/services/messenger/internal/partition"
	"github.com/SARVESHVARADKAR123/RealChat/services/messenger/internal/partition/partitiontest"
	"github.com/SARVESHVARADKAR123/RealChat/services/messenger/internal/roster"
)

type published struct {
	topic string
	key   string
	value []byte
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, key, value []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{topic: topic, key: string(key), value: value})
	return nil
}

func (p *recordingPublisher) repairs(t *testing.T) []domain.InboxRepairEvent {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []domain.InboxRepairEvent
	for _, e := range p.events {
		if e.topic != "inbox.repair" {
			continue
		}
		var ev domain.InboxRepairEvent
		require.NoError(t, json.Unmarshal(e.value, &ev))
		out = append(out, ev)
	}
	return out
}

type harness struct {
	svc      *Service
	store    *partitiontest.Flaky
	roster   *roster.Manager
	messages *messagelog.Log
	inbox    *inbox.Index
	pub      *recordingPublisher
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWithRoster(t, roster.Options{})
}

func newHarnessWithRoster(t *testing.T, opts roster.Options) *harness {
	t.Helper()
	store := partitiontest.NewFlaky(partitiontest.NewStore(t))
	r := roster.New(store, opts)
	m := messagelog.New(store, r, messagelog.Options{})
	x := inbox.New(store, inbox.Options{})
	pub := &recordingPublisher{}

	svc := New(Deps{
		Store:     store,
		Roster:    r,
		Messages:  m,
		Inbox:     x,
		Publisher: pub,
	}, Config{
		RetryAttempts:  3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		MessageTopic:   "message.sent",
		RepairTopic:    "inbox.repair",
	})
	return &harness{svc: svc, store: store, roster: r, messages: m, inbox: x, pub: pub}
}

func (h *harness) conversation(t *testing.T, members ...uuid.UUID) uuid.UUID {
	t.Helper()
	conv, err := h.svc.CreateConversation(context.Background(), CreateConversationCommand{Participants: members})
	require.NoError(t, err)
	return conv.ID
}

func at(sec int64) time.Time { return time.Unix(sec, 0).UTC() }

func TestSendMessageScenario(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()
	c := h.conversation(t, a, b)

	res, err := h.svc.SendMessage(ctx, SendMessageCommand{ConversationID: c, SenderID: a, Content: "hi", Timestamp: at(100)})
	require.NoError(t, err)
	assert.Equal(t, StatusSent, res.Status)
	assert.Equal(t, StateDone, res.State)
	assert.Empty(t, res.UnindexedParticipants)

	msgs, err := h.svc.ListMessages(ctx, ListMessagesQuery{ConversationID: c, Limit: 10})
	require.NoError(t, err)
	require.Len(t, msgs.Messages, 1)
	assert.Equal(t, a, msgs.Messages[0].SenderID)
	assert.Equal(t, "hi", msgs.Messages[0].Content)
	assert.True(t, msgs.Messages[0].Timestamp.Equal(at(100)))
	assert.False(t, msgs.Degraded)

	page, err := h.svc.ListUserConversations(ctx, b, 10, nil)
	require.NoError(t, err)
	require.Len(t, page.Entries, 1)
	assert.Equal(t, c, page.Entries[0].ConversationID)
	assert.True(t, page.Entries[0].LastUpdated.Equal(at(100)))
	assert.Equal(t, a, page.Entries[0].ParticipantID, "a recipient sees the sender")

	page, err = h.svc.ListUserConversations(ctx, a, 10, nil)
	require.NoError(t, err)
	require.Len(t, page.Entries, 1)
	assert.Equal(t, b, page.Entries[0].ParticipantID, "the sender sees the other participant")
}

func TestSendThenListHasNoStaleDuplicates(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()
	c := h.conversation(t, a, b)
	other := h.conversation(t, a, b, uuid.New())

	for i, sec := range []int64{100, 150, 200} {
		sender := a
		if i%2 == 1 {
			sender = b
		}
		_, err := h.svc.SendMessage(ctx, SendMessageCommand{ConversationID: c, SenderID: sender, Content: "m", Timestamp: at(sec)})
		require.NoError(t, err)
	}
	_, err := h.svc.SendMessage(ctx, SendMessageCommand{ConversationID: other, SenderID: b, Content: "x", Timestamp: at(120)})
	require.NoError(t, err)

	for _, user := range []uuid.UUID{a, b} {
		page, err := h.svc.ListUserConversations(ctx, user, 10, nil)
		require.NoError(t, err)
		require.Len(t, page.Entries, 2)
		assert.Equal(t, c, page.Entries[0].ConversationID)
		assert.True(t, page.Entries[0].LastUpdated.Equal(at(200)))
		assert.Equal(t, other, page.Entries[1].ConversationID)

		rows, err := h.store.GetRange(ctx, inbox.Table, user.String(), partition.RangeQuery{})
		require.NoError(t, err)
		assert.Len(t, rows, 2, "no stale rows remain in storage")
	}
}

func TestSendMessageRejectsNonParticipant(t *testing.T) {
	h := newHarness(t)
	a, b, x := uuid.New(), uuid.New(), uuid.New()
	c := h.conversation(t, a, b)
	putsBefore := h.store.Calls(partitiontest.OpPut, roster.Table)

	_, err := h.svc.SendMessage(context.Background(), SendMessageCommand{
		ConversationID: c, SenderID: x, Content: "hi", ClientMsgID: "k1",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotParticipant)
	assert.True(t, domain.IsValidation(err))

	var se *SendError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, StateValidating, se.State)

	assert.Zero(t, h.store.Calls(partitiontest.OpPut, messagelog.Table))
	assert.Zero(t, h.store.Calls(partitiontest.OpPut, inbox.Table))
	assert.Zero(t, h.store.Calls(partitiontest.OpPut, inbox.PointerTable))
	assert.Zero(t, h.store.Calls(partitiontest.OpPut, IdempotencyTable))
	assert.Equal(t, putsBefore, h.store.Calls(partitiontest.OpPut, roster.Table))
	assert.Equal(t, 1, h.store.Calls(partitiontest.OpGet, roster.Table), "validation errors are not retried")
}

func TestSendMessageRejectsEmptyContent(t *testing.T) {
	h := newHarness(t)
	a := uuid.New()
	c := h.conversation(t, a)

	_, err := h.svc.SendMessage(context.Background(), SendMessageCommand{ConversationID: c, SenderID: a, Content: "   "})
	assert.ErrorIs(t, err, domain.ErrInvalidContent)
	assert.Zero(t, h.store.Calls(partitiontest.OpPut, messagelog.Table))
}

func TestSendMessageRetriesTransientWriteFailure(t *testing.T) {
	h := newHarness(t)
	a, b := uuid.New(), uuid.New()
	c := h.conversation(t, a, b)

	h.store.FailNext(partitiontest.OpPut, messagelog.Table, "", 2, partition.ErrTimeout)
	res, err := h.svc.SendMessage(context.Background(), SendMessageCommand{ConversationID: c, SenderID: a, Content: "hi"})
	require.NoError(t, err)
	assert.Equal(t, StatusSent, res.Status)
	assert.Equal(t, 3, h.store.Calls(partitiontest.OpPut, messagelog.Table))

	page, err := h.messages.ListMessages(context.Background(), c, 10)
	require.NoError(t, err)
	assert.Len(t, page.Messages, 1, "retried writes reuse the message id")
}

func TestSendMessageWriteFailureAborts(t *testing.T) {
	h := newHarness(t)
	a, b := uuid.New(), uuid.New()
	c := h.conversation(t, a, b)

	h.store.FailNext(partitiontest.OpPut, messagelog.Table, "", -1, partition.ErrUnavailable)
	res, err := h.svc.SendMessage(context.Background(), SendMessageCommand{ConversationID: c, SenderID: a, Content: "hi"})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, domain.ErrSendFailed)
	assert.ErrorIs(t, err, partition.ErrUnavailable)

	var se *SendError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, StateWritingMessage, se.State)

	assert.Equal(t, 3, h.store.Calls(partitiontest.OpPut, messagelog.Table))
	assert.Zero(t, h.store.Calls(partitiontest.OpPut, inbox.Table), "no inbox writes after a failed message write")
	assert.Empty(t, h.pub.events)
}

func TestSendMessagePartiallyIndexed(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a, b, d := uuid.New(), uuid.New(), uuid.New()
	c := h.conversation(t, a, b, d)

	h.store.FailNext(partitiontest.OpPut, inbox.Table, b.String(), -1, partition.ErrUnavailable)
	res, err := h.svc.SendMessage(ctx, SendMessageCommand{ConversationID: c, SenderID: a, Content: "hi", Timestamp: at(100)})
	require.NoError(t, err, "the message counts as sent")
	assert.Equal(t, StatusPartiallyIndexed, res.Status)
	assert.Equal(t, []uuid.UUID{b}, res.UnindexedParticipants)

	for _, user := range []uuid.UUID{a, d} {
		page, err := h.svc.ListUserConversations(ctx, user, 10, nil)
		require.NoError(t, err)
		assert.Len(t, page.Entries, 1, "other participants are indexed")
	}

	repairs := h.pub.repairs(t)
	require.Len(t, repairs, 1)
	assert.Equal(t, []uuid.UUID{b}, repairs[0].UserIDs)
	assert.Equal(t, res.Message.ID, repairs[0].MessageID)

	h.store.Reset()
	require.NoError(t, h.svc.RepairInbox(ctx, repairs[0]))

	page, err := h.svc.ListUserConversations(ctx, b, 10, nil)
	require.NoError(t, err)
	require.Len(t, page.Entries, 1)
	assert.True(t, page.Entries[0].LastUpdated.Equal(at(100)))
	assert.Equal(t, a, page.Entries[0].ParticipantID)
}

func TestSendMessageRosterUnavailableForFanOut(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()
	c := h.conversation(t, a, b)

	h.store.FailNext(partitiontest.OpGetRange, roster.Table, "", -1, partition.ErrTimeout)
	res, err := h.svc.SendMessage(ctx, SendMessageCommand{ConversationID: c, SenderID: a, Content: "hi", Timestamp: at(7)})
	require.NoError(t, err)
	assert.Equal(t, StatusPartiallyIndexed, res.Status)
	assert.True(t, res.RosterUnavailable)

	repairs := h.pub.repairs(t)
	require.Len(t, repairs, 1)
	assert.Empty(t, repairs[0].UserIDs, "an empty list repairs every participant")

	h.store.Reset()
	require.NoError(t, h.svc.RepairInbox(ctx, repairs[0]))
	for _, user := range []uuid.UUID{a, b} {
		page, err := h.svc.ListUserConversations(ctx, user, 10, nil)
		require.NoError(t, err)
		assert.Len(t, page.Entries, 1)
	}
}

func TestSendMessageIdempotentReplay(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()
	c := h.conversation(t, a, b)
	cmd := SendMessageCommand{ConversationID: c, SenderID: a, Content: "hello", ClientMsgID: "client-1"}

	first, err := h.svc.SendMessage(ctx, cmd)
	require.NoError(t, err)
	assert.False(t, first.Replayed)

	second, err := h.svc.SendMessage(ctx, cmd)
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.Message.ID, second.Message.ID)
	assert.True(t, first.Message.Timestamp.Equal(second.Message.Timestamp))
	assert.Equal(t, 1, h.store.Calls(partitiontest.OpPut, messagelog.Table), "the replay does not rewrite the row")

	page, err := h.messages.ListMessages(ctx, c, 10)
	require.NoError(t, err)
	assert.Len(t, page.Messages, 1)
}

func TestSendMessageReplayCompletesFailedWrite(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()
	c := h.conversation(t, a, b)
	cmd := SendMessageCommand{ConversationID: c, SenderID: a, Content: "hello", ClientMsgID: "client-2"}

	h.store.FailNext(partitiontest.OpPut, messagelog.Table, "", 3, partition.ErrUnavailable)
	_, err := h.svc.SendMessage(ctx, cmd)
	require.ErrorIs(t, err, domain.ErrSendFailed)

	res, err := h.svc.SendMessage(ctx, cmd)
	require.NoError(t, err)
	assert.True(t, res.Replayed)

	raw, err := h.store.Get(ctx, IdempotencyTable, c.String(), idempotencyKey(a, "client-2"), partition.ConsistencyOne)
	require.NoError(t, err)
	var rec idempotencyRecord
	require.NoError(t, json.Unmarshal(raw, &rec))
	assert.Equal(t, rec.MessageID, res.Message.ID, "the retry writes the id chosen by the first attempt")

	page, err := h.svc.ListUserConversations(ctx, b, 10, nil)
	require.NoError(t, err)
	assert.Len(t, page.Entries, 1)
}

func TestSendMessageDistinctClientIDs(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := uuid.New()
	c := h.conversation(t, a)

	r1, err := h.svc.SendMessage(ctx, SendMessageCommand{ConversationID: c, SenderID: a, Content: "1", ClientMsgID: "k1"})
	require.NoError(t, err)
	r2, err := h.svc.SendMessage(ctx, SendMessageCommand{ConversationID: c, SenderID: a, Content: "2", ClientMsgID: "k2"})
	require.NoError(t, err)
	assert.NotEqual(t, r1.Message.ID, r2.Message.ID)

	page, err := h.svc.ListUserConversations(ctx, a, 10, nil)
	require.NoError(t, err)
	require.Len(t, page.Entries, 1)
	assert.Equal(t, a, page.Entries[0].ParticipantID, "alone in a conversation, the counterpart is the sender")
}

func TestSendMessagePublishesSentEvent(t *testing.T) {
	h := newHarness(t)
	a, b := uuid.New(), uuid.New()
	c := h.conversation(t, a, b)

	res, err := h.svc.SendMessage(context.Background(), SendMessageCommand{ConversationID: c, SenderID: a, Content: "hi"})
	require.NoError(t, err)

	require.Len(t, h.pub.events, 1)
	assert.Equal(t, "message.sent", h.pub.events[0].topic)
	assert.Equal(t, c.String(), h.pub.events[0].key)

	var ev domain.MessageSentEvent
	require.NoError(t, json.Unmarshal(h.pub.events[0].value, &ev))
	assert.Equal(t, res.Message.ID, ev.Message.ID)
	assert.Equal(t, string(StatusSent), ev.Status)
}

func TestConcurrentSendsToOneConversation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()
	c := h.conversation(t, a, b)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.svc.SendMessage(ctx, SendMessageCommand{ConversationID: c, SenderID: a, Content: "same time", Timestamp: at(500)})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	page, err := h.messages.ListMessages(ctx, c, 100)
	require.NoError(t, err)
	assert.Len(t, page.Messages, 20, "colliding timestamps are kept apart by message id")

	rows, err := h.store.GetRange(ctx, inbox.Table, b.String(), partition.RangeQuery{})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestSendFanOutIgnoresStaleRosterCache(t *testing.T) {
	h := newHarnessWithRoster(t, roster.Options{Cache: cache.NewMemory(time.Minute)})
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()
	c := h.conversation(t, a)

	cached, err := h.svc.ListParticipants(ctx, c)
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{a}, cached)

	// b joins through another process, so this process keeps its cached roster.
	require.NoError(t, roster.New(h.store, roster.Options{}).AddParticipant(ctx, c, b))

	res, err := h.svc.SendMessage(ctx, SendMessageCommand{ConversationID: c, SenderID: a, Content: "hi", Timestamp: at(10)})
	require.NoError(t, err)
	assert.Equal(t, StatusSent, res.Status)

	page, err := h.svc.ListUserConversations(ctx, b, 10, nil)
	require.NoError(t, err)
	require.Len(t, page.Entries, 1)
	assert.Equal(t, c, page.Entries[0].ConversationID)
}
