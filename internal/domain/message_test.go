package domain

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMessage(t *testing.T) {
	id, conv, sender := uuid.New(), uuid.New(), uuid.New()
	ts := time.Date(2024, 1, 2, 3, 4, 5, 6, time.FixedZone("x", 3600))

	t.Run("Valid message is normalized to UTC", func(t *testing.T) {
		msg, err := NewMessage(id, conv, sender, "hi", ts)
		require.NoError(t, err)
		assert.Equal(t, time.UTC, msg.Timestamp.Location())
		assert.True(t, msg.Timestamp.Equal(ts))
	})

	tests := []struct {
		name    string
		content string
		want    error
	}{
		{"empty", "", ErrInvalidContent},
		{"whitespace only", " \n\t", ErrInvalidContent},
		{"too large", strings.Repeat("a", MaxMessageSize+1), ErrMessageTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewMessage(id, conv, sender, tt.content, ts)
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, IsValidation(err))
		})
	}

	t.Run("Exactly max size is accepted", func(t *testing.T) {
		_, err := NewMessage(id, conv, sender, strings.Repeat("a", MaxMessageSize), ts)
		assert.NoError(t, err)
	})

	t.Run("Nil ids are rejected", func(t *testing.T) {
		_, err := NewMessage(uuid.Nil, conv, sender, "hi", ts)
		assert.ErrorIs(t, err, ErrInvalidInput)

		var ve *ValidationError
		require.True(t, errors.As(err, &ve))
		assert.Equal(t, "message_id", ve.Field)
	})
}

func TestConversationCounterpart(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()

	conv := &Conversation{ID: uuid.New(), Participants: []uuid.UUID{a, b, c}}
	assert.Equal(t, b, conv.Counterpart(a))
	assert.Equal(t, a, conv.Counterpart(b))
	assert.True(t, conv.HasParticipant(c))
	assert.False(t, conv.HasParticipant(uuid.New()))

	solo := &Conversation{ID: uuid.New(), Participants: []uuid.UUID{a}}
	assert.Equal(t, a, solo.Counterpart(a))
}
