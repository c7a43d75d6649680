package application

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/SARVESHVARADKAR123/RealChat/services/messenger/internal/domain"
	"github.com/SARVESHVARADKAR123/RealChat/services/messenger/internal/idgen"
	"github.com/SARVESHVARADKAR123/RealChat/services/messenger/internal/inbox"
	"github.com/SARVESHVARADKAR123/RealChat/services/messenger/internal/messagelog"
	"github.com/SARVESHVARADKAR123/RealChat/services/messenger/internal/partition"
)

type Roster interface {
	AddParticipant(ctx context.Context, conversationID, participantID uuid.UUID) error
	ListParticipants(ctx context.Context, conversationID uuid.UUID) ([]uuid.UUID, error)
	ReadParticipants(ctx context.Context, conversationID uuid.UUID) ([]uuid.UUID, error)
	IsParticipant(ctx context.Context, conversationID, userID uuid.UUID) (bool, error)
}

type MessageLog interface {
	Validate(ctx context.Context, conversationID, senderID uuid.UUID, content string) error
	Write(ctx context.Context, msg *domain.Message) error
	Get(ctx context.Context, conversationID uuid.UUID, timestamp time.Time, messageID uuid.UUID) (*domain.Message, error)
	ListMessages(ctx context.Context, conversationID uuid.UUID, limit int) (*messagelog.Page, error)
	ListMessagesBefore(ctx context.Context, conversationID uuid.UUID, cursor messagelog.Cursor, limit int) (*messagelog.Page, error)
}

type Inbox interface {
	TouchConversation(ctx context.Context, userID, conversationID, participantID uuid.UUID, lastUpdated time.Time) error
	ListConversations(ctx context.Context, userID uuid.UUID, limit int, cursor *inbox.Cursor) (*inbox.Page, error)
}

// Publisher emits domain events. Publishing is best-effort everywhere in
// this package.
type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

type Config struct {
	RetryAttempts     int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	FanoutConcurrency int
	MessageTopic      string
	RepairTopic       string
	ReadConsistency   partition.Consistency
	WriteConsistency  partition.Consistency
}

func (c Config) withDefaults() Config {
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = 3
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = 50 * time.Millisecond
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = time.Second
	}
	if c.FanoutConcurrency <= 0 {
		c.FanoutConcurrency = 8
	}
	return c
}

type Deps struct {
	// Store backs the client idempotency table.
	Store     partition.Store
	Roster    Roster
	Messages  MessageLog
	Inbox     Inbox
	IDs       idgen.Generator
	Publisher Publisher
	Logger    *zap.Logger
	Now       func() time.Time
}

type Service struct {
	store     partition.Store
	roster    Roster
	messages  MessageLog
	inbox     Inbox
	ids       idgen.Generator
	publisher Publisher
	log       *zap.Logger
	now       func() time.Time
	tracer    trace.Tracer
	cfg       Config

	idemLocks keyedLocks
}

func New(deps Deps, cfg Config) *Service {
	s := &Service{
		store:     deps.Store,
		roster:    deps.Roster,
		messages:  deps.Messages,
		inbox:     deps.Inbox,
		ids:       deps.IDs,
		publisher: deps.Publisher,
		log:       deps.Logger,
		now:       deps.Now,
		tracer:    otel.Tracer("messenger/application"),
		cfg:       cfg.withDefaults(),
	}
	if s.ids == nil {
		s.ids = idgen.New()
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *Service) publish(ctx context.Context, topic string, key uuid.UUID, value []byte) {
	if s.publisher == nil || topic == "" {
		return
	}
	if err := s.publisher.Publish(ctx, topic, []byte(key.String()), value); err != nil {
		s.log.Warn("failed to publish event",
			zap.String("topic", topic),
			zap.String("key", key.String()),
			zap.Error(err),
		)
	}
}
