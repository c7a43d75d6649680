package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventMessageSent = "message.sent"
	EventInboxRepair = "inbox.repair"
)

type MessageSentEvent struct {
	Type    string  `json:"type"`
	Message Message `json:"message"`
	Status  string  `json:"status"`
}

// InboxRepairEvent asks for the inbox pointers of UserIDs to be brought up to
// LastUpdated. An empty UserIDs means every participant.
type InboxRepairEvent struct {
	Type           string      `json:"type"`
	ConversationID uuid.UUID   `json:"conversation_id"`
	SenderID       uuid.UUID   `json:"sender_id"`
	MessageID      uuid.UUID   `json:"message_id"`
	LastUpdated    time.Time   `json:"last_updated"`
	UserIDs        []uuid.UUID `json:"user_ids,omitempty"`
}
