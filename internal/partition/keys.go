package partition

import (
	"encoding/binary"
	"time"

	"github.com/google/uuid"
)

// Key builds order-preserving clustering keys. Components are appended in
// significance order; comparing two keys bytewise compares their components
// left to right.
type Key []byte

func NewKey() Key { return make(Key, 0, 32) }

// Time appends t so that earlier instants sort first.
func (k Key) Time(t time.Time) Key {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(t.UnixNano())^(1<<63))
	return append(k, b[:]...)
}

// TimeDesc appends t so that later instants sort first.
func (k Key) TimeDesc(t time.Time) Key {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], ^(uint64(t.UnixNano()) ^ (1 << 63)))
	return append(k, b[:]...)
}

func (k Key) UUID(id uuid.UUID) Key {
	return append(k, id[:]...)
}

// String appends s with a zero terminator; s must not contain zero bytes.
func (k Key) String(s string) Key {
	k = append(k, s...)
	return append(k, 0)
}

func (k Key) Bytes() []byte { return []byte(k) }

// Successor returns the smallest key strictly greater than key.
func Successor(key []byte) []byte {
	out := make([]byte, len(key)+1)
	copy(out, key)
	return out
}

// PrefixEnd returns the smallest key greater than every key starting with
// prefix, or nil when no such key exists.
func PrefixEnd(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}
