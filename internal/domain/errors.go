package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidContent       = errors.New("invalid message content")
	ErrMessageTooLarge      = errors.New("message too large")
	ErrNotParticipant       = errors.New("user not participant")
	ErrInvalidInput         = errors.New("invalid input")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrInvalidCursor        = errors.New("invalid cursor")
	ErrSendFailed           = errors.New("send failed")
	ErrInconsistentState    = errors.New("inconsistent state")
)

// ValidationError marks bad caller input. It is surfaced as is and never
// retried.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func NewValidationError(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
