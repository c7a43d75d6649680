package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/SARVESHVARADKAR123/RealChat/services/messenger/internal/partition"
)

type Config struct {
	// ───── Runtime ─────
	ServiceName string `yaml:"service_name"`
	HTTPAddr    string `yaml:"http_addr"`
	ObsHTTPAddr string `yaml:"obs_http_addr"`
	LogLevel    string `yaml:"log_level"`

	// ───── Store ─────
	StoreBackend      string        `yaml:"store_backend"`
	PebblePath        string        `yaml:"pebble_path"`
	PebbleSync        bool          `yaml:"pebble_sync"`
	CassandraHosts    []string      `yaml:"cassandra_hosts"`
	CassandraKeyspace string        `yaml:"cassandra_keyspace"`
	CassandraTable    string        `yaml:"cassandra_table"`
	DynamoDBTable     string        `yaml:"dynamodb_table"`
	DynamoDBRegion    string        `yaml:"dynamodb_region"`
	DynamoDBEndpoint  string        `yaml:"dynamodb_endpoint"`
	ReadConsistency   string        `yaml:"read_consistency"`
	WriteConsistency  string        `yaml:"write_consistency"`
	StoreTimeout      time.Duration `yaml:"store_timeout"`

	// ───── Infrastructure ─────
	RedisAddr         string        `yaml:"redis_addr"`
	RosterCacheTTL    time.Duration `yaml:"roster_cache_ttl"`
	KafkaBrokers      []string      `yaml:"kafka_brokers"`
	KafkaMessageTopic string        `yaml:"kafka_message_topic"`
	KafkaRepairTopic  string        `yaml:"kafka_repair_topic"`
	KafkaRepairGroup  string        `yaml:"kafka_repair_group"`

	// ───── Send saga ─────
	RetryAttempts       int           `yaml:"retry_attempts"`
	RetryInitialBackoff time.Duration `yaml:"retry_initial_backoff"`
	RetryMaxBackoff     time.Duration `yaml:"retry_max_backoff"`
	FanoutConcurrency   int           `yaml:"fanout_concurrency"`

	// ───── Rate Limiting ─────
	RateLimitRequests int           `yaml:"rate_limit_requests"`
	RateLimitWindow   time.Duration `yaml:"rate_limit_window"`

	// ───── Observability ─────
	MetricsEnabled bool   `yaml:"metrics_enabled"`
	TracingEnabled bool   `yaml:"tracing_enabled"`
	JaegerURL      string `yaml:"jaeger_url"`
}

func Default() Config {
	return Config{
		ServiceName: "messenger",
		HTTPAddr:    ":8080",
		ObsHTTPAddr: ":9090",
		LogLevel:    "info",

		StoreBackend:      partition.BackendPebble,
		PebblePath:        "data/messenger",
		CassandraHosts:    []string{"127.0.0.1"},
		CassandraKeyspace: "messenger",
		CassandraTable:    "rows",
		DynamoDBTable:     "messenger",
		ReadConsistency:   "local_quorum",
		WriteConsistency:  "local_quorum",
		StoreTimeout:      2 * time.Second,

		RosterCacheTTL:    time.Minute,
		KafkaMessageTopic: "message.sent",
		KafkaRepairTopic:  "inbox.repair",
		KafkaRepairGroup:  "messenger-inbox-repair",

		RetryAttempts:       3,
		RetryInitialBackoff: 50 * time.Millisecond,
		RetryMaxBackoff:     time.Second,
		FanoutConcurrency:   8,

		RateLimitRequests: 100,
		RateLimitWindow:   time.Minute,

		JaegerURL: "http://jaeger:14268/api/traces",
	}
}

// Load builds the configuration from defaults, then the YAML file named by
// CONFIG_FILE, then environment variables.
func Load() (Config, error) {
	cfg := Default()

	if path := getEnv("CONFIG_FILE", ""); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	cfg.HTTPAddr = fixPort(cfg.HTTPAddr)
	cfg.ObsHTTPAddr = fixPort(cfg.ObsHTTPAddr)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}
	var err error

	cfg.ServiceName = getEnv("SERVICE_NAME", cfg.ServiceName)
	cfg.HTTPAddr = getEnv("HTTP_ADDR", cfg.HTTPAddr)
	cfg.ObsHTTPAddr = getEnv("OBS_HTTP_ADDR", cfg.ObsHTTPAddr)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)

	cfg.StoreBackend = getEnv("STORE_BACKEND", cfg.StoreBackend)
	cfg.PebblePath = getEnv("PEBBLE_PATH", cfg.PebblePath)
	cfg.PebbleSync, err = getEnvBool("PEBBLE_SYNC", cfg.PebbleSync)
	collect(err)
	cfg.CassandraHosts = getEnvSlice("CASSANDRA_HOSTS", cfg.CassandraHosts)
	cfg.CassandraKeyspace = getEnv("CASSANDRA_KEYSPACE", cfg.CassandraKeyspace)
	cfg.CassandraTable = getEnv("CASSANDRA_TABLE", cfg.CassandraTable)
	cfg.DynamoDBTable = getEnv("DYNAMODB_TABLE", cfg.DynamoDBTable)
	cfg.DynamoDBRegion = getEnv("DYNAMODB_REGION", cfg.DynamoDBRegion)
	cfg.DynamoDBEndpoint = getEnv("DYNAMODB_ENDPOINT", cfg.DynamoDBEndpoint)
	cfg.ReadConsistency = getEnv("READ_CONSISTENCY", cfg.ReadConsistency)
	cfg.WriteConsistency = getEnv("WRITE_CONSISTENCY", cfg.WriteConsistency)
	cfg.StoreTimeout, err = getEnvDuration("STORE_TIMEOUT", cfg.StoreTimeout)
	collect(err)

	cfg.RedisAddr = getEnv("REDIS_ADDR", cfg.RedisAddr)
	cfg.RosterCacheTTL, err = getEnvDuration("ROSTER_CACHE_TTL", cfg.RosterCacheTTL)
	collect(err)
	cfg.KafkaBrokers = getEnvSlice("KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.KafkaMessageTopic = getEnv("KAFKA_MESSAGE_TOPIC", cfg.KafkaMessageTopic)
	cfg.KafkaRepairTopic = getEnv("KAFKA_REPAIR_TOPIC", cfg.KafkaRepairTopic)
	cfg.KafkaRepairGroup = getEnv("KAFKA_REPAIR_GROUP", cfg.KafkaRepairGroup)

	cfg.RetryAttempts, err = getEnvInt("RETRY_ATTEMPTS", cfg.RetryAttempts)
	collect(err)
	cfg.RetryInitialBackoff, err = getEnvDuration("RETRY_INITIAL_BACKOFF", cfg.RetryInitialBackoff)
	collect(err)
	cfg.RetryMaxBackoff, err = getEnvDuration("RETRY_MAX_BACKOFF", cfg.RetryMaxBackoff)
	collect(err)
	cfg.FanoutConcurrency, err = getEnvInt("FANOUT_CONCURRENCY", cfg.FanoutConcurrency)
	collect(err)

	cfg.RateLimitRequests, err = getEnvInt("RATE_LIMIT_REQUESTS", cfg.RateLimitRequests)
	collect(err)
	cfg.RateLimitWindow, err = getEnvDuration("RATE_LIMIT_WINDOW", cfg.RateLimitWindow)
	collect(err)

	cfg.MetricsEnabled, err = getEnvBool("METRICS_ENABLED", cfg.MetricsEnabled)
	collect(err)
	cfg.TracingEnabled, err = getEnvBool("TRACING_ENABLED", cfg.TracingEnabled)
	collect(err)
	cfg.JaegerURL = getEnv("JAEGER_URL", cfg.JaegerURL)

	return errors.Join(errs...)
}

func (c Config) Validate() error {
	var errs []error

	switch c.StoreBackend {
	case partition.BackendPebble:
		if c.PebblePath == "" {
			errs = append(errs, errors.New("PEBBLE_PATH is required for the pebble backend"))
		}
	case partition.BackendCassandra:
		if len(c.CassandraHosts) == 0 || c.CassandraKeyspace == "" || c.CassandraTable == "" {
			errs = append(errs, errors.New("cassandra backend needs hosts, keyspace and table"))
		}
	case partition.BackendDynamoDB:
		if c.DynamoDBTable == "" {
			errs = append(errs, errors.New("DYNAMODB_TABLE is required for the dynamodb backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend))
	}

	if _, err := partition.ParseConsistency(c.ReadConsistency); err != nil {
		errs = append(errs, fmt.Errorf("READ_CONSISTENCY: %w", err))
	}
	if _, err := partition.ParseConsistency(c.WriteConsistency); err != nil {
		errs = append(errs, fmt.Errorf("WRITE_CONSISTENCY: %w", err))
	}
	if c.RetryAttempts <= 0 {
		errs = append(errs, errors.New("RETRY_ATTEMPTS must be positive"))
	}
	if c.RetryInitialBackoff <= 0 || c.RetryMaxBackoff < c.RetryInitialBackoff {
		errs = append(errs, errors.New("retry backoff must be positive and max >= initial"))
	}
	if c.FanoutConcurrency <= 0 {
		errs = append(errs, errors.New("FANOUT_CONCURRENCY must be positive"))
	}
	if c.StoreTimeout <= 0 {
		errs = append(errs, errors.New("STORE_TIMEOUT must be positive"))
	}
	return errors.Join(errs...)
}

// StoreConfig translates the store section for partition.Open. Call it on a
// validated Config.
func (c Config) StoreConfig() partition.Config {
	return partition.Config{
		Backend:           c.StoreBackend,
		Timeout:           c.StoreTimeout,
		PebblePath:        c.PebblePath,
		PebbleSync:        c.PebbleSync,
		CassandraHosts:    c.CassandraHosts,
		CassandraKeyspace: c.CassandraKeyspace,
		CassandraTable:    c.CassandraTable,
		Consistency:       c.WriteConsistencyLevel(),
		DynamoTable:       c.DynamoDBTable,
		DynamoRegion:      c.DynamoDBRegion,
		DynamoEndpoint:    c.DynamoDBEndpoint,
	}
}

func (c Config) ReadConsistencyLevel() partition.Consistency {
	level, _ := partition.ParseConsistency(c.ReadConsistency)
	return level
}

func (c Config) WriteConsistencyLevel() partition.Consistency {
	level, _ := partition.ParseConsistency(c.WriteConsistency)
	return level
}

func fixPort(port string) string {
	if port != "" && !strings.Contains(port, ":") {
		return ":" + port
	}
	return port
}

func getEnv(k, d string) string {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	return v
}

func getEnvInt(k string, d int) (int, error) {
	v := os.Getenv(k)
	if v == "" {
		return d, nil
	}

	i, err := strconv.Atoi(v)
	if err != nil {
		return d, fmt.Errorf("invalid int env %s: %w", k, err)
	}
	return i, nil
}

func getEnvBool(k string, d bool) (bool, error) {
	v := os.Getenv(k)
	if v == "" {
		return d, nil
	}
	b, err := strconv.ParseBool(strings.ToLower(v))
	if err != nil {
		return d, fmt.Errorf("invalid bool env %s: %w", k, err)
	}
	return b, nil
}

func getEnvDuration(k string, d time.Duration) (time.Duration, error) {
	v := os.Getenv(k)
	if v == "" {
		return d, nil
	}
	dur, err := time.ParseDuration(v)
	if err != nil {
		return d, fmt.Errorf("invalid duration env %s: %w", k, err)
	}
	return dur, nil
}

func getEnvSlice(k string, d []string) []string {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
