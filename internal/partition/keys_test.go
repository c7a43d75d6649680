package partition

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestKeyTimeOrdering(t *testing.T) {
	times := []time.Time{
		time.Unix(-100, 0),
		time.Unix(0, 0),
		time.Unix(0, 1),
		time.Unix(100, 0),
		time.Unix(1_700_000_000, 5),
	}

	for i := 1; i < len(times); i++ {
		earlier := NewKey().Time(times[i-1])
		later := NewKey().Time(times[i])
		assert.Negative(t, bytes.Compare(earlier, later), "Time must sort %v before %v", times[i-1], times[i])

		earlierDesc := NewKey().TimeDesc(times[i-1])
		laterDesc := NewKey().TimeDesc(times[i])
		assert.Positive(t, bytes.Compare(earlierDesc, laterDesc), "TimeDesc must sort %v after %v", times[i-1], times[i])
	}
}

func TestKeyCompositeTieBreak(t *testing.T) {
	ts := time.Unix(1000, 0)
	a := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	b := uuid.MustParse("00000000-0000-0000-0000-000000000002")

	ka := NewKey().TimeDesc(ts).UUID(a)
	kb := NewKey().TimeDesc(ts).UUID(b)
	assert.Negative(t, bytes.Compare(ka, kb))

	newer := NewKey().TimeDesc(ts.Add(time.Nanosecond)).UUID(b)
	assert.Negative(t, bytes.Compare(newer, ka))
}

func TestKeyStringTerminator(t *testing.T) {
	short := NewKey().String("ab").UUID(uuid.Max)
	long := NewKey().String("abc").UUID(uuid.Nil)
	assert.Negative(t, bytes.Compare(short, long), "a shorter string sorts before its extensions")
}

func TestSuccessorAndPrefixEnd(t *testing.T) {
	assert.Equal(t, []byte{1, 2, 0}, Successor([]byte{1, 2}))
	assert.Equal(t, []byte{1, 3}, PrefixEnd([]byte{1, 2}))
	assert.Equal(t, []byte{2}, PrefixEnd([]byte{1, 0xff}))
	assert.Nil(t, PrefixEnd([]byte{0xff, 0xff}))
}

func TestParseConsistency(t *testing.T) {
	tests := []struct {
		in      string
		want    Consistency
		wantErr bool
	}{
		{"", ConsistencyDefault, false},
		{"ONE", ConsistencyOne, false},
		{"local_quorum", ConsistencyLocalQuorum, false},
		{"quorum", ConsistencyQuorum, false},
		{"all", ConsistencyAll, false},
		{"eventual", ConsistencyDefault, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseConsistency(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
