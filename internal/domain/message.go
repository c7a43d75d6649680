package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const MaxMessageSize = 5000

// Message Invariants:
// 1. Immutability: never updated or deleted once written.
// 2. Ordering: Timestamp descending, then ID ascending, within a conversation.
// 3. Membership: SenderID was a participant of ConversationID when written.
type Message struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	ID             uuid.UUID `json:"message_id"`
	SenderID       uuid.UUID `json:"sender_id"`
	Content        string    `json:"content"`
	Timestamp      time.Time `json:"timestamp"`
}

func NewMessage(
	id uuid.UUID,
	conversationID uuid.UUID,
	senderID uuid.UUID,
	content string,
	timestamp time.Time,
) (*Message, error) {

	if id == uuid.Nil {
		return nil, NewValidationError("message_id", ErrInvalidInput)
	}
	if conversationID == uuid.Nil {
		return nil, NewValidationError("conversation_id", ErrInvalidInput)
	}
	if senderID == uuid.Nil {
		return nil, NewValidationError("sender_id", ErrInvalidInput)
	}
	if err := ValidateContent(content); err != nil {
		return nil, err
	}
	if timestamp.IsZero() {
		return nil, NewValidationError("timestamp", ErrInvalidInput)
	}

	return &Message{
		ConversationID: conversationID,
		ID:             id,
		SenderID:       senderID,
		Content:        content,
		Timestamp:      timestamp.UTC(),
	}, nil
}

// ValidateContent rejects empty or whitespace-only content and content over
// MaxMessageSize bytes.
func ValidateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return NewValidationError("content", ErrInvalidContent)
	}
	if len(content) > MaxMessageSize {
		return NewValidationError("content", ErrMessageTooLarge)
	}
	return nil
}
