package partition

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type deadlineProbe struct {
	Store
	sawDeadline bool
	deadline    time.Time
}

func (p *deadlineProbe) Get(ctx context.Context, table, partitionKey string, clustering []byte, c Consistency) ([]byte, error) {
	p.deadline, p.sawDeadline = ctx.Deadline()
	return p.Store.Get(ctx, table, partitionKey, clustering, c)
}

func TestInstrumentedAppliesDefaultDeadline(t *testing.T) {
	probe := &deadlineProbe{Store: newMemPebble(t)}
	s := NewInstrumented(probe, time.Second)

	_, err := s.Get(context.Background(), "t", "p", []byte{1}, ConsistencyOne)
	assert.ErrorIs(t, err, ErrNotFound)
	require.True(t, probe.sawDeadline)
	assert.WithinDuration(t, time.Now().Add(time.Second), probe.deadline, time.Second)
}

func TestInstrumentedKeepsCallerDeadline(t *testing.T) {
	probe := &deadlineProbe{Store: newMemPebble(t)}
	s := NewInstrumented(probe, time.Second)

	want := time.Now().Add(time.Hour)
	ctx, cancel := context.WithDeadline(context.Background(), want)
	defer cancel()

	_, _ = s.Get(ctx, "t", "p", []byte{1}, ConsistencyOne)
	assert.True(t, probe.deadline.Equal(want))
}

func TestErrorKind(t *testing.T) {
	assert.Equal(t, "timeout", errorKind(ErrTimeout))
	assert.Equal(t, "unavailable", errorKind(classify(context.Background(), "put", assert.AnError)))
	assert.Equal(t, "invalid_key", errorKind(ErrInvalidKey))
}
