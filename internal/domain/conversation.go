package domain

import "github.com/google/uuid"

// ParticipantMembership has set semantics: adding it twice is a no-op.
type ParticipantMembership struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	ParticipantID  uuid.UUID `json:"participant_id"`
}

// Conversation is the read model assembled from the roster. A conversation
// exists exactly when it has at least one participant.
type Conversation struct {
	ID           uuid.UUID   `json:"conversation_id"`
	Participants []uuid.UUID `json:"participants"`
}

func (c *Conversation) HasParticipant(userID uuid.UUID) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// Counterpart is the participant shown next to the conversation in userID's
// inbox: the first other participant in roster order, or userID itself when
// nobody else is in the conversation.
func (c *Conversation) Counterpart(userID uuid.UUID) uuid.UUID {
	for _, p := range c.Participants {
		if p != userID {
			return p
		}
	}
	return userID
}
