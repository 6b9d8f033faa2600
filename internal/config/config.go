// Package config defines the configuration structures for the caseintel
// platform. No I/O or parsing logic lives here, only plain data types and
// validation; loading is in loader.go, defaults in defaults.go.
package config

import (
	"fmt"
	"time"

	"github.com/opentenancy/caseintel/internal/infrastructure/monitoring/logging"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sub-configuration structs
// ─────────────────────────────────────────────────────────────────────────────

// ServerConfig holds HTTP server tunables.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // "debug" | "release" | "test"
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	MaxBodySize     int64         `mapstructure:"max_body_size"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// RateLimit is the per-client request budget per minute enforced by the
	// HTTP middleware. 0 disables rate limiting.
	RateLimit int `mapstructure:"rate_limit"`

	// AllowedOrigins lists origins permitted by the CORS middleware. Empty
	// disables cross-origin access.
	AllowedOrigins []string `mapstructure:"allowed_origins"`

	// APIKeys lists static keys accepted on X-API-Key. Empty leaves the API
	// open, for deployments that authenticate at the gateway.
	APIKeys []string `mapstructure:"api_keys"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConns        int           `mapstructure:"max_conns"`
	MinConns        int           `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`

	// Migrations overrides the embedded migration source with a directory
	// path. Empty means the migrations compiled into the binary.
	Migrations string `mapstructure:"migrations"`
}

// DSN renders the pgx connection string.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode)
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Mode         string        `mapstructure:"mode"` // "standalone" | "cluster"
	Addrs        []string      `mapstructure:"addrs"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// KafkaSASLConfig holds SASL authentication parameters for Kafka.
type KafkaSASLConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Mechanism string `mapstructure:"mechanism"` // "plain" | "scram-sha-256" | "scram-sha-512"
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
}

// KafkaTLSConfig holds TLS parameters for Kafka connections.
type KafkaTLSConfig struct {
	Enabled            bool `mapstructure:"enabled"`
	InsecureSkipVerify bool `mapstructure:"insecure_skip_verify"`
}

// KafkaConfig holds event-bus producer/consumer parameters.
type KafkaConfig struct {
	Brokers           []string        `mapstructure:"brokers"`
	GroupID           string          `mapstructure:"group_id"`
	Acks              string          `mapstructure:"acks"` // "all" | "one" | "none"
	BatchSize         int             `mapstructure:"batch_size"`
	BatchTimeout      time.Duration   `mapstructure:"batch_timeout"`
	ProducerRetries   int             `mapstructure:"producer_retries"`
	AutoCreateTopics  bool            `mapstructure:"auto_create_topics"`
	NumPartitions     int             `mapstructure:"num_partitions"`
	ReplicationFactor int             `mapstructure:"replication_factor"`
	SASL              KafkaSASLConfig `mapstructure:"sasl"`
	TLS               KafkaTLSConfig  `mapstructure:"tls"`
}

// MinIOConfig holds object-storage parameters for the raw-text archive.
type MinIOConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Region    string `mapstructure:"region"`
}

// OpenSearchConfig holds search cluster parameters.
type OpenSearchConfig struct {
	Enabled            bool     `mapstructure:"enabled"`
	Addresses          []string `mapstructure:"addresses"`
	Username           string   `mapstructure:"username"`
	Password           string   `mapstructure:"password"`
	Index              string   `mapstructure:"index"`
	InsecureSkipVerify bool     `mapstructure:"insecure_skip_verify"`
	BulkBatchSize      int      `mapstructure:"bulk_batch_size"`
}

// AssistConfig holds parameters for the optional AI classification service.
type AssistConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	BaseURL  string        `mapstructure:"base_url"`
	APIKey   string        `mapstructure:"api_key"`
	Timeout  time.Duration `mapstructure:"timeout"`
	MaxChars int           `mapstructure:"max_chars"`
}

// CacheConfig holds case-snapshot cache parameters.
type CacheConfig struct {
	CaseTTL time.Duration `mapstructure:"case_ttl"`
	Jitter  float64       `mapstructure:"jitter"` // fraction of TTL, [0, 1)
	Prefix  string        `mapstructure:"prefix"`
}

// PipelineConfig holds extraction-pipeline tunables.
type PipelineConfig struct {
	// DefaultState is assumed for addresses with no textual state.
	DefaultState string `mapstructure:"default_state"`

	// NearTermDays is the window within which an extracted date escalates
	// document urgency.
	NearTermDays int `mapstructure:"near_term_days"`

	// AnswerDeadlineDays is the statutory offset used to derive an answer
	// deadline from a summons date.
	AnswerDeadlineDays int `mapstructure:"answer_deadline_days"`
}

// WorkerConfig holds background-worker execution parameters.
type WorkerConfig struct {
	Concurrency    int           `mapstructure:"concurrency"`
	QueueDepth     int           `mapstructure:"queue_depth"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryBackoff   time.Duration `mapstructure:"retry_backoff"`
	HandlerTimeout time.Duration `mapstructure:"handler_timeout"`
	HealthPort     int           `mapstructure:"health_port"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Root Config
// ─────────────────────────────────────────────────────────────────────────────

// Config is the root configuration for the platform. Every infrastructure
// component and application service reads its settings from one sub-struct.
type Config struct {
	Server     ServerConfig      `mapstructure:"server"`
	Log        logging.LogConfig `mapstructure:"log"`
	Postgres   PostgresConfig    `mapstructure:"postgres"`
	Redis      RedisConfig       `mapstructure:"redis"`
	Kafka      KafkaConfig       `mapstructure:"kafka"`
	MinIO      MinIOConfig       `mapstructure:"minio"`
	OpenSearch OpenSearchConfig  `mapstructure:"opensearch"`
	Assist     AssistConfig      `mapstructure:"assist"`
	Cache      CacheConfig       `mapstructure:"cache"`
	Pipeline   PipelineConfig    `mapstructure:"pipeline"`
	Worker     WorkerConfig      `mapstructure:"worker"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Validation
// ─────────────────────────────────────────────────────────────────────────────

// Validate performs semantic validation of the fully-populated Config. It
// returns the first error found; any error is fatal at startup.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d is out of range [1, 65535]", c.Server.Port)
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("config: server.mode %q is invalid; expected debug|release|test", c.Server.Mode)
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("config: server.rate_limit must be >= 0, got %d", c.Server.RateLimit)
	}

	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|console", c.Log.Format)
	}

	if c.Postgres.Host == "" {
		return fmt.Errorf("config: postgres.host is required")
	}
	if c.Postgres.Port < 1 || c.Postgres.Port > 65535 {
		return fmt.Errorf("config: postgres.port %d is out of range [1, 65535]", c.Postgres.Port)
	}
	if c.Postgres.User == "" {
		return fmt.Errorf("config: postgres.user is required")
	}
	if c.Postgres.Database == "" {
		return fmt.Errorf("config: postgres.database is required")
	}
	if c.Postgres.MaxConns < 1 {
		return fmt.Errorf("config: postgres.max_conns must be >= 1, got %d", c.Postgres.MaxConns)
	}

	if len(c.Redis.Addrs) == 0 {
		return fmt.Errorf("config: redis.addrs must contain at least one address")
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("config: redis.db must be >= 0, got %d", c.Redis.DB)
	}
	switch c.Redis.Mode {
	case "standalone", "cluster":
	default:
		return fmt.Errorf("config: redis.mode %q is invalid; expected standalone|cluster", c.Redis.Mode)
	}

	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("config: kafka.brokers must contain at least one broker address")
	}
	if c.Kafka.GroupID == "" {
		return fmt.Errorf("config: kafka.group_id is required")
	}
	switch c.Kafka.Acks {
	case "all", "one", "none":
	default:
		return fmt.Errorf("config: kafka.acks %q is invalid; expected all|one|none", c.Kafka.Acks)
	}

	if c.MinIO.Endpoint == "" {
		return fmt.Errorf("config: minio.endpoint is required")
	}
	if c.MinIO.Bucket == "" {
		return fmt.Errorf("config: minio.bucket is required")
	}

	if c.OpenSearch.Enabled {
		if len(c.OpenSearch.Addresses) == 0 {
			return fmt.Errorf("config: opensearch.addresses must contain at least one address when enabled")
		}
		if c.OpenSearch.Index == "" {
			return fmt.Errorf("config: opensearch.index is required when enabled")
		}
	}

	if c.Assist.Enabled {
		if c.Assist.BaseURL == "" {
			return fmt.Errorf("config: assist.base_url is required when assist is enabled")
		}
		if c.Assist.Timeout <= 0 {
			return fmt.Errorf("config: assist.timeout must be positive, got %s", c.Assist.Timeout)
		}
	}

	if c.Cache.CaseTTL <= 0 {
		return fmt.Errorf("config: cache.case_ttl must be positive, got %s", c.Cache.CaseTTL)
	}
	if c.Cache.Jitter < 0 || c.Cache.Jitter >= 1 {
		return fmt.Errorf("config: cache.jitter %.2f is out of range [0, 1)", c.Cache.Jitter)
	}

	if c.Pipeline.NearTermDays < 0 {
		return fmt.Errorf("config: pipeline.near_term_days must be >= 0, got %d", c.Pipeline.NearTermDays)
	}
	if c.Pipeline.AnswerDeadlineDays < 1 {
		return fmt.Errorf("config: pipeline.answer_deadline_days must be >= 1, got %d", c.Pipeline.AnswerDeadlineDays)
	}

	if c.Worker.Concurrency < 1 {
		return fmt.Errorf("config: worker.concurrency must be >= 1, got %d", c.Worker.Concurrency)
	}

	return nil
}
