// Package idgen produces conversation and message identifiers.
package idgen

import (
	"bytes"

	"github.com/google/uuid"
)

type Generator interface {
	// NewID returns a random identifier.
	NewID() uuid.UUID
	// NewSortableID returns an identifier whose byte order follows creation
	// order within this process.
	NewSortableID() uuid.UUID
}

// UUID generates v4 and v7 identifiers. Both panic when the entropy source
// fails, which the process treats as fatal.
type UUID struct{}

func New() UUID { return UUID{} }

func (UUID) NewID() uuid.UUID { return uuid.New() }

func (UUID) NewSortableID() uuid.UUID { return uuid.Must(uuid.NewV7()) }

// directNamespace scopes the name-based ids of direct conversations.
var directNamespace = uuid.MustParse("6f0d3c52-4b1e-4f7e-9a55-2f1c7f1d8e21")

// DirectConversationID is the same for (a, b) and (b, a), so creating a
// direct conversation twice lands on the same roster.
func DirectConversationID(a, b uuid.UUID) uuid.UUID {
	if bytes.Compare(a[:], b[:]) > 0 {
		a, b = b, a
	}
	name := make([]byte, 0, 32)
	name = append(name, a[:]...)
	name = append(name, b[:]...)
	return uuid.NewSHA1(directNamespace, name)
}
