package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SARVESHVARADKAR123/RealChat/services/messenger/internal/partition"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, partition.BackendPebble, cfg.StoreBackend)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 3, cfg.RetryAttempts)
	assert.Equal(t, partition.ConsistencyLocalQuorum, cfg.ReadConsistencyLevel())
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "messenger.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
store_backend: cassandra
cassandra_hosts: [cass-1, cass-2]
retry_attempts: 5
store_timeout: 3s
http_addr: "8081"
`), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("RETRY_ATTEMPTS", "7")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("WRITE_CONSISTENCY", "quorum")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, partition.BackendCassandra, cfg.StoreBackend)
	assert.Equal(t, []string{"cass-1", "cass-2"}, cfg.CassandraHosts)
	assert.Equal(t, 7, cfg.RetryAttempts)
	assert.Equal(t, 3*time.Second, cfg.StoreTimeout)
	assert.Equal(t, ":8081", cfg.HTTPAddr)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)

	sc := cfg.StoreConfig()
	assert.Equal(t, partition.ConsistencyQuorum, sc.Consistency)
	assert.Equal(t, 3*time.Second, sc.Timeout)
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"Non numeric int", "RETRY_ATTEMPTS", "many"},
		{"Bad duration", "STORE_TIMEOUT", "soon"},
		{"Bad bool", "PEBBLE_SYNC", "perhaps"},
		{"Unknown backend", "STORE_BACKEND", "sqlite"},
		{"Unknown consistency", "READ_CONSISTENCY", "each_quorum"},
		{"Zero fanout", "FANOUT_CONCURRENCY", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("CONFIG_FILE", "")
			t.Setenv(tt.key, tt.val)

			_, err := Load()
			assert.ErrorContains(t, err, tt.key)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))

	_, err := Load()
	assert.Error(t, err)
}
