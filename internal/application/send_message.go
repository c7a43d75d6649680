package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/SARVESHVARADKAR123/RealChat/services/messenger/internal/domain"
	"github.com/SARVESHVARADKAR123/RealChat/services/messenger/internal/observability"
	"github.com/SARVESHVARADKAR123/RealChat/services/messenger/internal/partition"
)

type SendState string

const (
	StateValidating      SendState = "validating"
	StateWritingMessage  SendState = "writing_message"
	StateIndexingInboxes SendState = "indexing_inboxes"
	StateDone            SendState = "done"
	StateFailed          SendState = "failed"
)

type SendStatus string

const (
	StatusSent             SendStatus = "sent"
	StatusPartiallyIndexed SendStatus = "partially_indexed"
)

type SendMessageCommand struct {
	ConversationID uuid.UUID
	SenderID       uuid.UUID
	Content        string
	// Timestamp defaults to now.
	Timestamp time.Time
	// ClientMsgID makes the send idempotent per (conversation, sender).
	ClientMsgID string
}

type SendResult struct {
	Message *domain.Message
	Status  SendStatus
	State   SendState
	// UnindexedParticipants lists inboxes that could not be updated. When
	// the roster itself could not be read it is empty and RosterUnavailable
	// is set.
	UnindexedParticipants []uuid.UUID
	RosterUnavailable     bool
	Replayed              bool
}

// SendError is the failed terminal state: State is where the send stopped.
// Nothing past that state was written.
type SendError struct {
	State SendState
	Err   error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send failed while %s: %v", strings.ReplaceAll(string(e.State), "_", " "), e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// SendMessage writes a message and then indexes it in every participant's
// inbox. Once the message row is written the send has succeeded; inbox
// failures only downgrade the status to partially indexed.
func (s *Service) SendMessage(ctx context.Context, cmd SendMessageCommand) (result *SendResult, err error) {
	ctx, span := s.tracer.Start(ctx, "SendMessage")
	span.SetAttributes(
		attribute.String("conversation_id", cmd.ConversationID.String()),
		attribute.String("sender_id", cmd.SenderID.String()),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	log := s.log.With(
		zap.String("conversation_id", cmd.ConversationID.String()),
		zap.String("sender_id", cmd.SenderID.String()),
	)
	log.Debug("SendMessage requested")

	fail := func(state SendState, err error) error {
		observability.SendFailuresTotal.WithLabelValues(string(state)).Inc()
		return &SendError{State: state, Err: err}
	}

	// Validating
	err = s.retry(ctx, "validate", func(ctx context.Context) error {
		return s.messages.Validate(ctx, cmd.ConversationID, cmd.SenderID, cmd.Content)
	})
	if err != nil {
		log.Info("SendMessage rejected", zap.Error(err))
		return nil, fail(StateValidating, err)
	}

	ts := cmd.Timestamp
	if ts.IsZero() {
		ts = s.now()
	}
	record := idempotencyRecord{MessageID: s.ids.NewSortableID(), Timestamp: ts.UTC()}
	replayed := false

	if cmd.ClientMsgID != "" {
		if strings.IndexByte(cmd.ClientMsgID, 0) >= 0 {
			return nil, fail(StateValidating, domain.NewValidationError("client_msg_id", domain.ErrInvalidInput))
		}
		record, replayed, err = s.claimIdempotency(ctx, cmd.ConversationID, cmd.SenderID, cmd.ClientMsgID, record)
		if err != nil {
			log.Error("SendMessage idempotency check failed", zap.Error(err))
			return nil, fail(StateWritingMessage, fmt.Errorf("%w: %w", domain.ErrSendFailed, err))
		}
	}

	msg, err := domain.NewMessage(record.MessageID, cmd.ConversationID, cmd.SenderID, cmd.Content, record.Timestamp)
	if err != nil {
		return nil, fail(StateValidating, err)
	}

	// WritingMessage
	if err := s.writeMessage(ctx, msg, replayed); err != nil {
		log.Error("SendMessage write failed", zap.String("message_id", msg.ID.String()), zap.Error(err))
		return nil, fail(StateWritingMessage, fmt.Errorf("%w: %w", domain.ErrSendFailed, err))
	}

	// IndexingInboxes
	result = &SendResult{Message: msg, Status: StatusSent, State: StateDone, Replayed: replayed}

	participants, err := s.fanOutParticipants(ctx, cmd.ConversationID)
	if err != nil {
		log.Warn("SendMessage could not read roster for fan-out",
			zap.String("message_id", msg.ID.String()),
			zap.Error(err),
		)
		result.Status = StatusPartiallyIndexed
		result.RosterUnavailable = true
		s.requestRepair(ctx, msg, nil)
	} else {
		failed := s.fanOut(ctx, msg, &domain.Conversation{ID: cmd.ConversationID, Participants: participants})
		if len(failed) > 0 {
			log.Warn("SendMessage partially indexed",
				zap.String("message_id", msg.ID.String()),
				zap.Int("failed", len(failed)),
				zap.Int("participants", len(participants)),
			)
			result.Status = StatusPartiallyIndexed
			result.UnindexedParticipants = failed
			s.requestRepair(ctx, msg, failed)
		}
	}

	observability.SendTotal.WithLabelValues(string(result.Status)).Inc()
	if replayed {
		observability.SendTotal.WithLabelValues("replayed").Inc()
	}

	if ev, err := json.Marshal(domain.MessageSentEvent{
		Type:    domain.EventMessageSent,
		Message: *msg,
		Status:  string(result.Status),
	}); err == nil {
		s.publish(ctx, s.cfg.MessageTopic, msg.ConversationID, ev)
	}

	log.Info("SendMessage completed",
		zap.String("message_id", msg.ID.String()),
		zap.String("status", string(result.Status)),
		zap.Bool("replayed", replayed),
	)
	return result, nil
}

// writeMessage writes msg with retries. A replayed send skips the write when
// the earlier attempt already stored the row.
func (s *Service) writeMessage(ctx context.Context, msg *domain.Message, replayed bool) error {
	if replayed {
		var existing *domain.Message
		err := s.retry(ctx, "message_lookup", func(ctx context.Context) error {
			var err error
			existing, err = s.messages.Get(ctx, msg.ConversationID, msg.Timestamp, msg.ID)
			if errors.Is(err, partition.ErrNotFound) {
				return nil
			}
			return err
		})
		if err != nil {
			return err
		}
		if existing != nil {
			*msg = *existing
			return nil
		}
	}

	return s.retry(ctx, "message_write", func(ctx context.Context) error {
		return s.messages.Write(ctx, msg)
	})
}

// counterpartFor is the participant shown next to the conversation in
// userID's inbox: the sender for recipients, another participant for the
// sender.
func counterpartFor(conv *domain.Conversation, userID, senderID uuid.UUID) uuid.UUID {
	if userID != senderID {
		return senderID
	}
	return conv.Counterpart(senderID)
}

// fanOut touches every participant's inbox and returns those that still
// failed after retries.
func (s *Service) fanOut(ctx context.Context, msg *domain.Message, conv *domain.Conversation) []uuid.UUID {
	return s.touchAll(ctx, conv, conv.Participants, msg.SenderID, msg.Timestamp)
}

func (s *Service) touchAll(ctx context.Context, conv *domain.Conversation, users []uuid.UUID, senderID uuid.UUID, lastUpdated time.Time) []uuid.UUID {
	var (
		g      errgroup.Group
		mu     sync.Mutex
		failed []uuid.UUID
	)
	g.SetLimit(s.cfg.FanoutConcurrency)

	for _, userID := range users {
		counterpart := counterpartFor(conv, userID, senderID)

		g.Go(func() error {
			err := s.retry(ctx, "inbox_touch", func(ctx context.Context) error {
				return s.inbox.TouchConversation(ctx, userID, conv.ID, counterpart, lastUpdated)
			})
			if err != nil {
				observability.InboxTouchFailuresTotal.Inc()
				s.log.Warn("inbox touch failed",
					zap.String("conversation_id", conv.ID.String()),
					zap.String("user_id", userID.String()),
					zap.Error(err),
				)
				mu.Lock()
				failed = append(failed, userID)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	// Keep the report in roster order regardless of completion order.
	if len(failed) > 1 {
		ordered := make([]uuid.UUID, 0, len(failed))
		set := make(map[uuid.UUID]struct{}, len(failed))
		for _, id := range failed {
			set[id] = struct{}{}
		}
		for _, id := range users {
			if _, ok := set[id]; ok {
				ordered = append(ordered, id)
			}
		}
		failed = ordered
	}
	return failed
}

func (s *Service) requestRepair(ctx context.Context, msg *domain.Message, users []uuid.UUID) {
	ev, err := json.Marshal(domain.InboxRepairEvent{
		Type:           domain.EventInboxRepair,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		MessageID:      msg.ID,
		LastUpdated:    msg.Timestamp,
		UserIDs:        users,
	})
	if err != nil {
		return
	}
	s.publish(ctx, s.cfg.RepairTopic, msg.ConversationID, ev)
}
