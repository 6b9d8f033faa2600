package config

import (
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// envPrefix is the environment variable prefix for every platform setting.
const envPrefix = "CASEINTEL"

// envKeys lists every configuration key so that environment variables bind
// even when the key never appears in a config file. Viper's automatic env
// lookup only covers keys it already knows about.
var envKeys = []string{
	"server.host", "server.port", "server.mode",
	"server.read_timeout", "server.write_timeout", "server.max_body_size",
	"server.shutdown_timeout", "server.rate_limit",
	"log.level", "log.format", "log.output_paths", "log.error_output_paths",
	"postgres.host", "postgres.port", "postgres.user", "postgres.password",
	"postgres.database", "postgres.ssl_mode", "postgres.max_conns",
	"postgres.min_conns", "postgres.conn_max_lifetime",
	"postgres.conn_max_idle_time", "postgres.migrations",
	"redis.mode", "redis.addrs", "redis.password", "redis.db",
	"redis.pool_size", "redis.min_idle_conns", "redis.dial_timeout",
	"redis.read_timeout", "redis.write_timeout",
	"kafka.brokers", "kafka.group_id", "kafka.acks", "kafka.batch_size",
	"kafka.batch_timeout", "kafka.producer_retries", "kafka.auto_create_topics",
	"kafka.num_partitions", "kafka.replication_factor",
	"kafka.sasl.enabled", "kafka.sasl.mechanism", "kafka.sasl.username",
	"kafka.sasl.password", "kafka.tls.enabled", "kafka.tls.insecure_skip_verify",
	"minio.endpoint", "minio.access_key", "minio.secret_key", "minio.bucket",
	"minio.use_ssl", "minio.region",
	"opensearch.enabled", "opensearch.addresses", "opensearch.username",
	"opensearch.password", "opensearch.index",
	"opensearch.insecure_skip_verify", "opensearch.bulk_batch_size",
	"assist.enabled", "assist.base_url", "assist.api_key", "assist.timeout",
	"assist.max_chars",
	"cache.case_ttl", "cache.jitter", "cache.prefix",
	"pipeline.default_state", "pipeline.near_term_days",
	"pipeline.answer_deadline_days",
	"worker.concurrency", "worker.queue_depth", "worker.max_retries",
	"worker.retry_backoff", "worker.handler_timeout", "worker.health_port",
}

// newViper builds a pre-configured viper instance: YAML file type, CASEINTEL_
// env prefix, automatic env binding, and a "." → "_" key replacer so nested
// keys like "postgres.host" resolve from CASEINTEL_POSTGRES_HOST.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}
	return v
}

// Load reads the YAML file at configPath, merges CASEINTEL_* environment
// overrides, applies defaults for unset fields, and validates the result.
func Load(configPath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read config file %q: %w", configPath, err)
	}

	return unmarshalAndFinalize(v)
}

// LoadFromEnv builds a Config from CASEINTEL_* environment variables alone,
// with no config file. Preferred for containerised deployments.
//
// Naming convention: CASEINTEL_<SECTION>_<FIELD>, for example
// CASEINTEL_POSTGRES_HOST or CASEINTEL_REDIS_ADDRS.
func LoadFromEnv() (*Config, error) {
	v := newViper()
	return unmarshalAndFinalize(v)
}

// unmarshalAndFinalize unmarshals viper state into a Config, applies defaults
// and validates.
func unmarshalAndFinalize(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal configuration: %w", err)
	}

	ApplyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}

	return cfg, nil
}

// Watch monitors configPath and invokes onChange with the re-parsed Config
// whenever the file changes on disk. Intended for hot-reloading non-critical
// settings such as log level; the caller decides which subset is safe to
// apply at runtime. A change that fails to parse or validate is dropped
// without invoking onChange.
func Watch(configPath string, onChange func(*Config)) {
	v := newViper()
	v.SetConfigFile(configPath)

	// Callers are expected to have Load-ed the same path already; the error
	// here would be a duplicate of theirs.
	_ = v.ReadInConfig()

	v.WatchConfig()
	v.OnConfigChange(func(_ fsnotify.Event) {
		cfg, err := unmarshalAndFinalize(v)
		if err != nil {
			return
		}
		onChange(cfg)
	})
}

// MustLoad wraps Load and panics on error. For use in main() where a config
// failure is always fatal.
func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("config: MustLoad failed: %v", err))
	}
	return cfg
}
