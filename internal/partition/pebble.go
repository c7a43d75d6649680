package partition

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

// PebbleStore keeps every partition in one embedded Pebble keyspace. The
// physical key is table 0x00 partition 0x00 clustering, so a partition is a
// contiguous key prefix and the clustering order is Pebble's byte order.
type PebbleStore struct {
	db   *pebble.DB
	sync bool
}

type PebbleOptions struct {
	// Path is the data directory. Ignored when InMemory is set.
	Path     string
	InMemory bool
	// Sync forces an fsync on every write.
	Sync bool
}

func OpenPebble(opts PebbleOptions) (*PebbleStore, error) {
	po := &pebble.Options{}
	path := opts.Path
	if opts.InMemory {
		po.FS = vfs.NewMem()
		path = "messenger"
	} else if path == "" {
		return nil, errors.New("pebble path is required")
	}

	db, err := pebble.Open(path, po)
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble at %q: %w", path, err)
	}
	return &PebbleStore{db: db, sync: opts.Sync}, nil
}

func partitionPrefix(table, partitionKey string) []byte {
	p := make([]byte, 0, len(table)+len(partitionKey)+2)
	p = append(p, table...)
	p = append(p, 0)
	p = append(p, partitionKey...)
	return append(p, 0)
}

func physicalKey(table, partitionKey string, clustering []byte) []byte {
	return append(partitionPrefix(table, partitionKey), clustering...)
}

func (s *PebbleStore) writeOpts() *pebble.WriteOptions {
	if s.sync {
		return pebble.Sync
	}
	return pebble.NoSync
}

func (s *PebbleStore) Put(ctx context.Context, table, partitionKey string, clustering, value []byte, _ Consistency) error {
	if err := validateKey(table, partitionKey); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return classify(ctx, "put", err)
	}
	return classify(ctx, "put", s.db.Set(physicalKey(table, partitionKey, clustering), value, s.writeOpts()))
}

func (s *PebbleStore) Delete(ctx context.Context, table, partitionKey string, clustering []byte, _ Consistency) error {
	if err := validateKey(table, partitionKey); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return classify(ctx, "delete", err)
	}
	return classify(ctx, "delete", s.db.Delete(physicalKey(table, partitionKey, clustering), s.writeOpts()))
}

func (s *PebbleStore) Get(ctx context.Context, table, partitionKey string, clustering []byte, _ Consistency) ([]byte, error) {
	if err := validateKey(table, partitionKey); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, classify(ctx, "get", err)
	}

	v, closer, err := s.db.Get(physicalKey(table, partitionKey, clustering))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, classify(ctx, "get", err)
	}
	defer closer.Close()

	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (s *PebbleStore) GetRange(ctx context.Context, table, partitionKey string, q RangeQuery) ([]Row, error) {
	if err := validateKey(table, partitionKey); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, classify(ctx, "get_range", err)
	}
	q = q.normalized()

	prefix := partitionPrefix(table, partitionKey)
	lower := prefix
	if q.Lower != nil {
		lower = append(append([]byte{}, prefix...), q.Lower.Key...)
	}
	upper := PrefixEnd(prefix)
	if q.Upper != nil {
		upper = append(append([]byte{}, prefix...), q.Upper.Key...)
		if q.Upper.Inclusive {
			upper = Successor(upper)
		}
	}
	if upper != nil && bytes.Compare(lower, upper) >= 0 {
		return nil, nil
	}

	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return nil, classify(ctx, "get_range", err)
	}
	defer iter.Close()

	var rows []Row
	var (
		valid bool
		step  func() bool
	)
	if q.Order == Descending {
		valid, step = iter.Last(), iter.Prev
	} else {
		valid, step = iter.First(), iter.Next
	}
	for ; valid; valid = step() {
		if err := ctx.Err(); err != nil {
			return nil, classify(ctx, "get_range", err)
		}
		key := iter.Key()
		val := iter.Value()
		rows = append(rows, Row{
			Clustering: append([]byte{}, key[len(prefix):]...),
			Value:      append([]byte{}, val...),
		})
		if q.Limit > 0 && len(rows) >= q.Limit {
			break
		}
	}
	if err := iter.Error(); err != nil {
		return nil, classify(ctx, "get_range", err)
	}
	return rows, nil
}

func (s *PebbleStore) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return classify(ctx, "ping", err)
	}
	if s.db == nil {
		return ErrUnavailable
	}
	return nil
}

func (s *PebbleStore) Close() error {
	return s.db.Close()
}
