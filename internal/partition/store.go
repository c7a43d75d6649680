// Package partition is the client boundary to the wide-row store.
//
// Rows live in a (table, partition key) partition and are ordered inside it
// by an opaque clustering key compared as unsigned bytes. Writes are atomic
// per row only; nothing spans partitions.
package partition

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Consistency is the replica agreement requested for a single call.
type Consistency int

const (
	ConsistencyDefault Consistency = iota
	ConsistencyOne
	ConsistencyLocalQuorum
	ConsistencyQuorum
	ConsistencyAll
)

func (c Consistency) String() string {
	switch c {
	case ConsistencyOne:
		return "one"
	case ConsistencyLocalQuorum:
		return "local_quorum"
	case ConsistencyQuorum:
		return "quorum"
	case ConsistencyAll:
		return "all"
	default:
		return "default"
	}
}

// ParseConsistency accepts the names produced by Consistency.String.
func ParseConsistency(s string) (Consistency, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "default":
		return ConsistencyDefault, nil
	case "one":
		return ConsistencyOne, nil
	case "local_quorum", "localquorum":
		return ConsistencyLocalQuorum, nil
	case "quorum":
		return ConsistencyQuorum, nil
	case "all":
		return ConsistencyAll, nil
	}
	return ConsistencyDefault, fmt.Errorf("unknown consistency level %q", s)
}

type Order int

const (
	Ascending Order = iota
	Descending
)

// Bound is one end of a clustering key range.
type Bound struct {
	Key       []byte
	Inclusive bool
}

// RangeQuery selects rows of one partition. A zero Limit means no limit.
type RangeQuery struct {
	Lower       *Bound
	Upper       *Bound
	Limit       int
	Order       Order
	Consistency Consistency
}

// Row is a stored value together with its clustering key.
type Row struct {
	Clustering []byte
	Value      []byte
}

// Store is implemented by every backend. Implementations must be safe for
// concurrent use; a missing partition yields an empty range, not an error.
type Store interface {
	Put(ctx context.Context, table, partitionKey string, clustering, value []byte, c Consistency) error
	Delete(ctx context.Context, table, partitionKey string, clustering []byte, c Consistency) error
	Get(ctx context.Context, table, partitionKey string, clustering []byte, c Consistency) ([]byte, error)
	GetRange(ctx context.Context, table, partitionKey string, q RangeQuery) ([]Row, error)
	Ping(ctx context.Context) error
	Close() error
}

var (
	ErrUnavailable = errors.New("store unavailable")
	ErrTimeout     = errors.New("store timeout")
	ErrNotFound    = errors.New("row not found")
	ErrInvalidKey  = errors.New("invalid partition key")
)

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	return errors.Is(err, ErrUnavailable) || errors.Is(err, ErrTimeout)
}

// classify folds a backend error into the store taxonomy. Deadline expiry is
// always a timeout, whatever the backend reported alongside it.
func classify(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrUnavailable) || errors.Is(err, ErrTimeout) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %v", op, ErrTimeout, err)
	}
	return fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
}

func validateKey(table, partitionKey string) error {
	if table == "" || partitionKey == "" {
		return ErrInvalidKey
	}
	if strings.IndexByte(table, 0) >= 0 || strings.IndexByte(partitionKey, 0) >= 0 {
		return ErrInvalidKey
	}
	return nil
}

// normalized turns an exclusive lower bound into the inclusive bound of its
// immediate successor so that backends only deal with [lower, upper).
func (q RangeQuery) normalized() RangeQuery {
	if q.Lower != nil && !q.Lower.Inclusive {
		q.Lower = &Bound{Key: Successor(q.Lower.Key), Inclusive: true}
	}
	return q
}
