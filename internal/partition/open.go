package partition

import (
	"context"
	"fmt"
	"time"
)

const (
	BackendPebble    = "pebble"
	BackendCassandra = "cassandra"
	BackendDynamoDB  = "dynamodb"
)

type Config struct {
	Backend string
	Timeout time.Duration

	PebblePath string
	PebbleSync bool

	CassandraHosts    []string
	CassandraKeyspace string
	CassandraTable    string
	Consistency       Consistency

	DynamoTable    string
	DynamoRegion   string
	DynamoEndpoint string
}

// Open connects to the configured backend and wraps it with Instrumented.
func Open(ctx context.Context, cfg Config) (*Instrumented, error) {
	var (
		store Store
		err   error
	)
	switch cfg.Backend {
	case BackendPebble, "":
		store, err = OpenPebble(PebbleOptions{Path: cfg.PebblePath, Sync: cfg.PebbleSync})
	case BackendCassandra:
		store, err = OpenCQL(CQLOptions{
			Hosts:       cfg.CassandraHosts,
			Keyspace:    cfg.CassandraKeyspace,
			Table:       cfg.CassandraTable,
			Timeout:     cfg.Timeout,
			Consistency: cfg.Consistency,
		})
	case BackendDynamoDB:
		store, err = OpenDynamo(ctx, DynamoOptions{
			Table:    cfg.DynamoTable,
			Region:   cfg.DynamoRegion,
			Endpoint: cfg.DynamoEndpoint,
		})
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	return NewInstrumented(store, cfg.Timeout), nil
}
