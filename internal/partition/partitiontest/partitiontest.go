// Package partitiontest provides stores for tests: a real Pebble store on an
// in-memory filesystem and a wrapper that injects failures.
package partitiontest

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/SARVESHVARADKAR123/RealChat/services/messenger/internal/partition"
)

func NewStore(t testing.TB) *partition.PebbleStore {
	t.Helper()
	s, err := partition.OpenPebble(partition.PebbleOptions{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

const (
	OpPut      = "put"
	OpDelete   = "delete"
	OpGet      = "get"
	OpGetRange = "get_range"
)

type fault struct {
	op        string
	table     string
	partition string
	times     int
	err       error
}

// Flaky forwards to a Store and fails selected calls. An empty table or
// partition in a rule matches any; times < 0 fails forever.
type Flaky struct {
	partition.Store

	mu     sync.Mutex
	faults []*fault
	calls  map[string]int
}

func NewFlaky(next partition.Store) *Flaky {
	return &Flaky{Store: next, calls: make(map[string]int)}
}

func (f *Flaky) FailNext(op, table, partitionKey string, times int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.faults = append(f.faults, &fault{op: op, table: table, partition: partitionKey, times: times, err: err})
}

func (f *Flaky) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.faults = nil
}

// Calls counts the calls made for op against table, failed ones included.
func (f *Flaky) Calls(op, table string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op+"/"+table]
}

func (f *Flaky) check(op, table, partitionKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls[op+"/"+table]++
	for _, ft := range f.faults {
		if ft.times == 0 || ft.op != op {
			continue
		}
		if ft.table != "" && ft.table != table {
			continue
		}
		if ft.partition != "" && ft.partition != partitionKey {
			continue
		}
		if ft.times > 0 {
			ft.times--
		}
		return ft.err
	}
	return nil
}

func (f *Flaky) Put(ctx context.Context, table, partitionKey string, clustering, value []byte, c partition.Consistency) error {
	if err := f.check(OpPut, table, partitionKey); err != nil {
		return err
	}
	return f.Store.Put(ctx, table, partitionKey, clustering, value, c)
}

func (f *Flaky) Delete(ctx context.Context, table, partitionKey string, clustering []byte, c partition.Consistency) error {
	if err := f.check(OpDelete, table, partitionKey); err != nil {
		return err
	}
	return f.Store.Delete(ctx, table, partitionKey, clustering, c)
}

func (f *Flaky) Get(ctx context.Context, table, partitionKey string, clustering []byte, c partition.Consistency) ([]byte, error) {
	if err := f.check(OpGet, table, partitionKey); err != nil {
		return nil, err
	}
	return f.Store.Get(ctx, table, partitionKey, clustering, c)
}

func (f *Flaky) GetRange(ctx context.Context, table, partitionKey string, q partition.RangeQuery) ([]partition.Row, error) {
	if err := f.check(OpGetRange, table, partitionKey); err != nil {
		return nil, err
	}
	return f.Store.GetRange(ctx, table, partitionKey, q)
}
