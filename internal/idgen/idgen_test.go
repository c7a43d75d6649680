package idgen

import (
	"bytes"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestNewIDUnique(t *testing.T) {
	g := New()
	seen := make(map[uuid.UUID]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		id := g.NewID()
		_, dup := seen[id]
		assert.False(t, dup)
		seen[id] = struct{}{}
	}
}

func TestNewSortableIDIsOrdered(t *testing.T) {
	g := New()
	prev := g.NewSortableID()
	for i := 0; i < 1000; i++ {
		next := g.NewSortableID()
		assert.Negative(t, bytes.Compare(prev[:], next[:]))
		assert.Equal(t, uuid.Version(7), next.Version())
		prev = next
	}
}

func TestDirectConversationID(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()

	assert.Equal(t, DirectConversationID(a, b), DirectConversationID(b, a))
	assert.NotEqual(t, DirectConversationID(a, b), DirectConversationID(a, c))
	assert.Equal(t, uuid.Version(5), DirectConversationID(a, b).Version())
}
