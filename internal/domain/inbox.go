package domain

import (
	"time"

	"github.com/google/uuid"
)

// InboxEntry is one (user, conversation) pointer in a user's conversation
// list. At most one live entry exists per pair; LastUpdated only moves
// forward.
type InboxEntry struct {
	UserID         uuid.UUID `json:"user_id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	ParticipantID  uuid.UUID `json:"participant_id"`
	LastUpdated    time.Time `json:"last_updated"`
}
