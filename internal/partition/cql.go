package partition

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gocql/gocql"
)

// CQLStore maps every logical table onto one Cassandra table whose
// partition key is (tbl, pk) and whose single clustering column is a blob.
// Cassandra compares blobs as unsigned bytes, which is the order the key
// encoders in this package produce.
type CQLStore struct {
	session *gocql.Session
	table   string
}

type CQLOptions struct {
	Hosts       []string
	Keyspace    string
	Table       string
	Timeout     time.Duration
	Consistency Consistency
}

func OpenCQL(opts CQLOptions) (*CQLStore, error) {
	if len(opts.Hosts) == 0 {
		return nil, errors.New("cassandra hosts are required")
	}
	if opts.Keyspace == "" || opts.Table == "" {
		return nil, errors.New("cassandra keyspace and table are required")
	}

	cluster := gocql.NewCluster(opts.Hosts...)
	cluster.Keyspace = opts.Keyspace
	if opts.Timeout > 0 {
		cluster.Timeout = opts.Timeout
	}
	cluster.Consistency = cqlConsistency(opts.Consistency)

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create cassandra session: %w", err)
	}
	return &CQLStore{session: session, table: opts.Table}, nil
}

// CQLSchema returns the DDL for the backing table.
func CQLSchema(keyspace, table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
    tbl text,
    pk  text,
    ck  blob,
    v   blob,
    PRIMARY KEY ((tbl, pk), ck)
) WITH CLUSTERING ORDER BY (ck ASC);`, keyspace, table)
}

func cqlConsistency(c Consistency) gocql.Consistency {
	switch c {
	case ConsistencyOne:
		return gocql.One
	case ConsistencyQuorum:
		return gocql.Quorum
	case ConsistencyAll:
		return gocql.All
	default:
		return gocql.LocalQuorum
	}
}

// classifyCQL recognizes the driver's timeout errors before falling back to
// the generic classification.
func classifyCQL(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	var writeTimeout *gocql.RequestErrWriteTimeout
	var readTimeout *gocql.RequestErrReadTimeout
	if errors.Is(err, gocql.ErrTimeoutNoResponse) || errors.As(err, &writeTimeout) || errors.As(err, &readTimeout) {
		return fmt.Errorf("%s: %w: %v", op, ErrTimeout, err)
	}
	return classify(ctx, op, err)
}

func (s *CQLStore) Put(ctx context.Context, table, partitionKey string, clustering, value []byte, c Consistency) error {
	if err := validateKey(table, partitionKey); err != nil {
		return err
	}
	stmt := fmt.Sprintf(`INSERT INTO %s (tbl, pk, ck, v) VALUES (?, ?, ?, ?)`, s.table)
	err := s.session.Query(stmt, table, partitionKey, clustering, value).
		WithContext(ctx).
		Consistency(cqlConsistency(c)).
		Exec()
	return classifyCQL(ctx, "put", err)
}

func (s *CQLStore) Delete(ctx context.Context, table, partitionKey string, clustering []byte, c Consistency) error {
	if err := validateKey(table, partitionKey); err != nil {
		return err
	}
	stmt := fmt.Sprintf(`DELETE FROM %s WHERE tbl = ? AND pk = ? AND ck = ?`, s.table)
	err := s.session.Query(stmt, table, partitionKey, clustering).
		WithContext(ctx).
		Consistency(cqlConsistency(c)).
		Exec()
	return classifyCQL(ctx, "delete", err)
}

func (s *CQLStore) Get(ctx context.Context, table, partitionKey string, clustering []byte, c Consistency) ([]byte, error) {
	if err := validateKey(table, partitionKey); err != nil {
		return nil, err
	}
	stmt := fmt.Sprintf(`SELECT v FROM %s WHERE tbl = ? AND pk = ? AND ck = ?`, s.table)

	var v []byte
	err := s.session.Query(stmt, table, partitionKey, clustering).
		WithContext(ctx).
		Consistency(cqlConsistency(c)).
		Scan(&v)
	if errors.Is(err, gocql.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, classifyCQL(ctx, "get", err)
	}
	return v, nil
}

func (s *CQLStore) GetRange(ctx context.Context, table, partitionKey string, q RangeQuery) ([]Row, error) {
	if err := validateKey(table, partitionKey); err != nil {
		return nil, err
	}
	stmt, args := buildRangeQuery(s.table, table, partitionKey, q.normalized())

	iter := s.session.Query(stmt, args...).
		WithContext(ctx).
		Consistency(cqlConsistency(q.Consistency)).
		Iter()

	var (
		rows []Row
		ck   []byte
		v    []byte
	)
	for iter.Scan(&ck, &v) {
		rows = append(rows, Row{
			Clustering: append([]byte{}, ck...),
			Value:      append([]byte{}, v...),
		})
	}
	if err := iter.Close(); err != nil {
		return nil, classifyCQL(ctx, "get_range", err)
	}
	return rows, nil
}

// buildRangeQuery expects a normalized query: the lower bound, when present,
// is inclusive.
func buildRangeQuery(backing, table, partitionKey string, q RangeQuery) (string, []any) {
	var b strings.Builder
	args := []any{table, partitionKey}

	fmt.Fprintf(&b, "SELECT ck, v FROM %s WHERE tbl = ? AND pk = ?", backing)
	if q.Lower != nil {
		b.WriteString(" AND ck >= ?")
		args = append(args, q.Lower.Key)
	}
	if q.Upper != nil {
		if q.Upper.Inclusive {
			b.WriteString(" AND ck <= ?")
		} else {
			b.WriteString(" AND ck < ?")
		}
		args = append(args, q.Upper.Key)
	}
	if q.Order == Descending {
		b.WriteString(" ORDER BY ck DESC")
	} else {
		b.WriteString(" ORDER BY ck ASC")
	}
	if q.Limit > 0 {
		b.WriteString(" LIMIT ?")
		args = append(args, q.Limit)
	}
	return b.String(), args
}

func (s *CQLStore) Ping(ctx context.Context) error {
	err := s.session.Query(`SELECT release_version FROM system.local`).WithContext(ctx).Exec()
	return classifyCQL(ctx, "ping", err)
}

func (s *CQLStore) Close() error {
	s.session.Close()
	return nil
}
