// Package messagelog owns the messages_by_conversation table.
//
// Rows are clustered by (timestamp descending, message id ascending), so a
// forward scan of a conversation partition yields the newest message first
// and ties at the same timestamp come out in a fixed order.
package messagelog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/SARVESHVARADKAR123/RealChat/services/messenger/internal/domain"
	"github.com/SARVESHVARADKAR123/RealChat/services/messenger/internal/idgen"
	"github.com/SARVESHVARADKAR123/RealChat/services/messenger/internal/partition"
)

const (
	Table = "messages_by_conversation"

	DefaultPageSize = 20
	MaxPageSize     = 500
)

// Membership answers whether a user may write to a conversation.
type Membership interface {
	IsParticipant(ctx context.Context, conversationID, userID uuid.UUID) (bool, error)
}

type Options struct {
	IDs              idgen.Generator
	Logger           *zap.Logger
	ReadConsistency  partition.Consistency
	WriteConsistency partition.Consistency
	Now              func() time.Time
}

type Log struct {
	store   partition.Store
	members Membership
	ids     idgen.Generator
	log     *zap.Logger
	readC   partition.Consistency
	writeC  partition.Consistency
	now     func() time.Time
}

func New(store partition.Store, members Membership, opts Options) *Log {
	l := &Log{
		store:   store,
		members: members,
		ids:     opts.IDs,
		log:     opts.Logger,
		readC:   opts.ReadConsistency,
		writeC:  opts.WriteConsistency,
		now:     opts.Now,
	}
	if l.ids == nil {
		l.ids = idgen.New()
	}
	if l.log == nil {
		l.log = zap.NewNop()
	}
	if l.now == nil {
		l.now = time.Now
	}
	return l
}

// Page is one slice of a conversation, newest first.
type Page struct {
	Messages []domain.Message
	Next     *Cursor
	HasMore  bool
}

func messageKey(ts time.Time, id uuid.UUID) []byte {
	return partition.NewKey().TimeDesc(ts).UUID(id).Bytes()
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultPageSize
	}
	if limit > MaxPageSize {
		return MaxPageSize
	}
	return limit
}

// Validate checks content and sender membership without writing anything.
func (l *Log) Validate(ctx context.Context, conversationID, senderID uuid.UUID, content string) error {
	if conversationID == uuid.Nil {
		return domain.NewValidationError("conversation_id", domain.ErrInvalidInput)
	}
	if senderID == uuid.Nil {
		return domain.NewValidationError("sender_id", domain.ErrInvalidInput)
	}
	if err := domain.ValidateContent(content); err != nil {
		return err
	}

	ok, err := l.members.IsParticipant(ctx, conversationID, senderID)
	if err != nil {
		return fmt.Errorf("failed to validate sender: %w", err)
	}
	if !ok {
		return domain.NewValidationError("sender_id", domain.ErrNotParticipant)
	}
	return nil
}

// Write stores msg as is. Writing the same message twice leaves one row.
func (l *Log) Write(ctx context.Context, msg *domain.Message) error {
	row, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}
	key := messageKey(msg.Timestamp, msg.ID)
	if err := l.store.Put(ctx, Table, msg.ConversationID.String(), key, row, l.writeC); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}

// Append validates and writes a new message in one call. A zero timestamp
// means now. Store failures are returned unretried. The send path calls
// Validate and Write separately so a replay can reuse the message id kept in
// its idempotency record.
func (l *Log) Append(
	ctx context.Context,
	conversationID uuid.UUID,
	senderID uuid.UUID,
	content string,
	timestamp time.Time,
) (*domain.Message, error) {

	if err := l.Validate(ctx, conversationID, senderID, content); err != nil {
		return nil, err
	}
	if timestamp.IsZero() {
		timestamp = l.now()
	}

	msg, err := domain.NewMessage(l.ids.NewSortableID(), conversationID, senderID, content, timestamp)
	if err != nil {
		return nil, err
	}
	if err := l.Write(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// Get returns partition.ErrNotFound when the message is absent.
func (l *Log) Get(ctx context.Context, conversationID uuid.UUID, timestamp time.Time, messageID uuid.UUID) (*domain.Message, error) {
	raw, err := l.store.Get(ctx, Table, conversationID.String(), messageKey(timestamp, messageID), l.readC)
	if err != nil {
		return nil, err
	}
	var msg domain.Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("failed to decode message: %w", err)
	}
	return &msg, nil
}

// ListMessages returns up to limit of the most recent messages.
func (l *Log) ListMessages(ctx context.Context, conversationID uuid.UUID, limit int) (*Page, error) {
	return l.list(ctx, conversationID, nil, limit)
}

// ListMessagesBefore returns up to limit messages that come after cursor in
// listing order: older ones, plus same-timestamp ones with a greater id when
// the cursor carries a message id.
func (l *Log) ListMessagesBefore(ctx context.Context, conversationID uuid.UUID, cursor Cursor, limit int) (*Page, error) {
	var lower *partition.Bound
	if cursor.MessageID == uuid.Nil {
		end := partition.PrefixEnd(partition.NewKey().TimeDesc(cursor.Timestamp))
		if end == nil {
			return &Page{}, nil
		}
		lower = &partition.Bound{Key: end, Inclusive: true}
	} else {
		lower = &partition.Bound{Key: messageKey(cursor.Timestamp, cursor.MessageID)}
	}
	return l.list(ctx, conversationID, lower, limit)
}

func (l *Log) list(ctx context.Context, conversationID uuid.UUID, lower *partition.Bound, limit int) (*Page, error) {
	limit = normalizeLimit(limit)

	rows, err := l.store.GetRange(ctx, Table, conversationID.String(), partition.RangeQuery{
		Lower:       lower,
		Limit:       limit + 1,
		Order:       partition.Ascending,
		Consistency: l.readC,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	page := &Page{Messages: make([]domain.Message, 0, min(len(rows), limit))}
	for i, r := range rows {
		if i == limit {
			page.HasMore = true
			break
		}
		var msg domain.Message
		if err := json.Unmarshal(r.Value, &msg); err != nil {
			return nil, fmt.Errorf("failed to decode message in %s: %w", conversationID, err)
		}
		page.Messages = append(page.Messages, msg)
	}

	if page.HasMore {
		last := page.Messages[len(page.Messages)-1]
		page.Next = &Cursor{Timestamp: last.Timestamp, MessageID: last.ID}
	}
	return page, nil
}
