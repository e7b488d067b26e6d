package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// envPrefix is the environment variable prefix, e.g. REPORTS_REDIS_ADDR.
const envPrefix = "REPORTS"

// Defaults.
const (
	DefaultPort          = "8080"
	DefaultPublicBaseURL = "http://localhost:8080"
	DefaultRedisAddr     = "localhost:6379"
	DefaultPendingPrefix = "invalida."
	DefaultLinksPrefix   = "relatorios."
	DefaultStagingPrefix = "processando."
	DefaultStagingLease  = 5 * time.Minute
	DefaultBucket        = "relatorios"
	DefaultMinioEndpoint = "localhost:9000"
	DefaultDataset       = "fraud"
	DefaultLedgerTable   = "fraud_reports"
	DefaultStoreTimeout  = 5 * time.Second
	DefaultSweepInterval = 5 * time.Minute
	DefaultJobWorkers    = 5
	DefaultJobBuffer     = 100
	DefaultJobMaxRetries = 3
)

// Load reads configuration from defaults, an optional YAML file and
// REPORTS_* environment variables, in increasing order of precedence.
// A .env file in the working directory is loaded into the environment
// first when present. An empty configPath means no config file.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	applyDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// applyDefaults registers every key, which also makes AutomaticEnv pick up
// environment overrides for keys missing from the config file.
func applyDefaults(v *viper.Viper) {
	v.SetDefault("http.port", DefaultPort)
	v.SetDefault("http.public_base_url", DefaultPublicBaseURL)
	v.SetDefault("http.read_timeout", 15*time.Second)
	v.SetDefault("http.write_timeout", 60*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("redis.addr", DefaultRedisAddr)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pending_prefix", DefaultPendingPrefix)
	v.SetDefault("redis.links_prefix", DefaultLinksPrefix)
	v.SetDefault("redis.staging_prefix", DefaultStagingPrefix)
	v.SetDefault("redis.timeout", DefaultStoreTimeout)
	v.SetDefault("redis.staging_lease", DefaultStagingLease)

	v.SetDefault("artifacts.backend", BackendMinio)
	v.SetDefault("artifacts.bucket", DefaultBucket)
	v.SetDefault("artifacts.timeout", DefaultStoreTimeout)

	v.SetDefault("minio.endpoint", DefaultMinioEndpoint)
	v.SetDefault("minio.access_key", "")
	v.SetDefault("minio.secret_key", "")
	v.SetDefault("minio.secure", false)
	v.SetDefault("minio.region", "")

	v.SetDefault("gcs.project", "")
	v.SetDefault("gcs.location", "EU")
	v.SetDefault("gcs.endpoint", "")

	v.SetDefault("bigquery.project", "")
	v.SetDefault("bigquery.dataset", DefaultDataset)
	v.SetDefault("bigquery.table", DefaultLedgerTable)

	v.SetDefault("sweep.enabled", false)
	v.SetDefault("sweep.interval", DefaultSweepInterval)

	v.SetDefault("jobs.workers", DefaultJobWorkers)
	v.SetDefault("jobs.buffer", DefaultJobBuffer)
	v.SetDefault("jobs.max_retries", DefaultJobMaxRetries)
}
