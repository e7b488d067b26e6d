package config

import (
	"errors"
	"fmt"
	"time"
)

// Artifact store backends.
const (
	BackendMinio  = "minio"
	BackendGCS    = "gcs"
	BackendMemory = "memory"
)

// Config is the full service configuration.
type Config struct {
	HTTP      HTTPConfig      `mapstructure:"http"`
	Log       LogConfig       `mapstructure:"log"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Artifacts ArtifactsConfig `mapstructure:"artifacts"`
	Minio     MinioConfig     `mapstructure:"minio"`
	GCS       GCSConfig       `mapstructure:"gcs"`
	BigQuery  BigQueryConfig  `mapstructure:"bigquery"`
	Sweep     SweepConfig     `mapstructure:"sweep"`
	Jobs      JobsConfig      `mapstructure:"jobs"`
}

// HTTPConfig configures the API server.
type HTTPConfig struct {
	Port string `mapstructure:"port"`
	// PublicBaseURL prefixes the download links handed to clients.
	PublicBaseURL string        `mapstructure:"public_base_url"`
	ReadTimeout   time.Duration `mapstructure:"read_timeout"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
}

// LogConfig configures the zerolog logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// RedisConfig configures the fast record store.
type RedisConfig struct {
	Addr          string        `mapstructure:"addr"`
	Password      string        `mapstructure:"password"`
	DB            int           `mapstructure:"db"`
	PendingPrefix string        `mapstructure:"pending_prefix"`
	LinksPrefix   string        `mapstructure:"links_prefix"`
	StagingPrefix string        `mapstructure:"staging_prefix"`
	Timeout       time.Duration `mapstructure:"timeout"`
	// StagingLease is how long a drained batch stays reserved for the
	// generation that took it before another drain may pick it up again.
	StagingLease time.Duration `mapstructure:"staging_lease"`
}

// ArtifactsConfig selects and bounds the artifact store.
type ArtifactsConfig struct {
	Backend string        `mapstructure:"backend"`
	Bucket  string        `mapstructure:"bucket"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// MinioConfig holds the S3 compatible endpoint settings.
type MinioConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Secure    bool   `mapstructure:"secure"`
	Region    string `mapstructure:"region"`
}

// GCSConfig holds the Google Cloud Storage settings.
type GCSConfig struct {
	Project  string `mapstructure:"project"`
	Location string `mapstructure:"location"`
	Endpoint string `mapstructure:"endpoint"`
}

// BigQueryConfig configures the report ledger. An empty project disables it.
type BigQueryConfig struct {
	Project string `mapstructure:"project"`
	Dataset string `mapstructure:"dataset"`
	Table   string `mapstructure:"table"`
}

// SweepConfig configures the periodic generation sweep.
type SweepConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
}

// JobsConfig configures the in-memory job queue.
type JobsConfig struct {
	Workers    int `mapstructure:"workers"`
	Buffer     int `mapstructure:"buffer"`
	MaxRetries int `mapstructure:"max_retries"`
}

var (
	// ErrMissingPort is returned when http.port is empty.
	ErrMissingPort = errors.New("http.port is required")
	// ErrMissingRedisAddr is returned when redis.addr is empty.
	ErrMissingRedisAddr = errors.New("redis.addr is required")
	// ErrMissingBucket is returned when artifacts.bucket is empty.
	ErrMissingBucket = errors.New("artifacts.bucket is required")
	// ErrUnknownBackend is returned for an unsupported artifacts.backend.
	ErrUnknownBackend = errors.New("artifacts.backend must be one of minio, gcs, memory")
	// ErrMissingMinioEndpoint is returned when the minio backend has no endpoint.
	ErrMissingMinioEndpoint = errors.New("minio.endpoint is required for the minio backend")
	// ErrMissingGCSProject is returned when the gcs backend has no project.
	ErrMissingGCSProject = errors.New("gcs.project is required for the gcs backend")
	// ErrInvalidTimeout is returned for non-positive timeouts.
	ErrInvalidTimeout = errors.New("timeouts must be positive")
	// ErrInvalidSweepInterval is returned when the sweep is enabled without a positive interval.
	ErrInvalidSweepInterval = errors.New("sweep.interval must be positive when the sweep is enabled")
	// ErrInvalidWorkers is returned for a non-positive worker count.
	ErrInvalidWorkers = errors.New("jobs.workers must be positive")
	// ErrInvalidRetries is returned for a negative retry count.
	ErrInvalidRetries = errors.New("jobs.max_retries must be non-negative")
)

// Validate checks the configuration for values the services cannot run with.
func (c *Config) Validate() error {
	if c.HTTP.Port == "" {
		return ErrMissingPort
	}
	if c.Redis.Addr == "" {
		return ErrMissingRedisAddr
	}
	if c.Artifacts.Bucket == "" {
		return ErrMissingBucket
	}
	if c.Redis.Timeout <= 0 || c.Redis.StagingLease <= 0 || c.Artifacts.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	switch c.Artifacts.Backend {
	case BackendMinio:
		if c.Minio.Endpoint == "" {
			return ErrMissingMinioEndpoint
		}
	case BackendGCS:
		if c.GCS.Project == "" {
			return ErrMissingGCSProject
		}
	case BackendMemory:
	default:
		return fmt.Errorf("%w: got %q", ErrUnknownBackend, c.Artifacts.Backend)
	}

	if c.Sweep.Enabled && c.Sweep.Interval <= 0 {
		return ErrInvalidSweepInterval
	}
	if c.Jobs.Workers <= 0 {
		return ErrInvalidWorkers
	}
	if c.Jobs.MaxRetries < 0 {
		return ErrInvalidRetries
	}
	return nil
}

// LedgerEnabled reports whether generated reports are recorded in BigQuery.
func (c *Config) LedgerEnabled() bool {
	return c.BigQuery.Project != ""
}
