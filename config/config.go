// Package config loads engine configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all tunables for the engine and its jobs. Every field is
// overridable via an ORDSIM_-prefixed environment variable.
type Config struct {
	// DataDir is the root for local state (snapshots, databases, checkpoint).
	DataDir string `envconfig:"DATA_DIR" default:"./data"`

	// HashSize is the fingerprint grid edge; fingerprints carry HashSize²
	// bits. Changing it invalidates every stored fingerprint.
	HashSize int `envconfig:"HASH_SIZE" default:"16"`
	// TopN is the default neighbor list length.
	TopN int `envconfig:"TOP_N" default:"20"`

	// UpstreamURL is the inscription listing/content API base URL.
	UpstreamURL string `envconfig:"UPSTREAM_URL" default:"https://api.hiro.so/ordinals/v1/inscriptions"`
	// PageSize is the ingestion listing window size.
	PageSize int `envconfig:"PAGE_SIZE" default:"60"`
	// RetryBackoff is the fixed sleep between ingestion retries.
	RetryBackoff time.Duration `envconfig:"RETRY_BACKOFF" default:"10s"`
	// ContentRPS rate-limits ingestion content fetches. Zero disables.
	ContentRPS float64 `envconfig:"CONTENT_RPS" default:"0"`

	// AccelURL enables the accelerated serving tier when non-empty.
	AccelURL string `envconfig:"ACCEL_URL"`
	// AccelTimeout bounds the single accelerated-tier attempt per query.
	AccelTimeout time.Duration `envconfig:"ACCEL_TIMEOUT" default:"2s"`

	// MetricsAddr exposes Prometheus metrics when non-empty (e.g. ":9090").
	MetricsAddr string `envconfig:"METRICS_ADDR"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"` // text or json

	// SnapshotCompression selects the hash snapshot compression:
	// none, zstd, or lz4.
	SnapshotCompression string `envconfig:"SNAPSHOT_COMPRESSION" default:"zstd"`

	// BlobBackend selects where snapshots live: local, s3, or minio.
	BlobBackend string `envconfig:"BLOB_BACKEND" default:"local"`
	S3          S3Config
	Minio       MinioConfig

	// CheckpointTable switches the ingestion checkpoint from a local file to
	// a DynamoDB table when non-empty.
	CheckpointTable string `envconfig:"CHECKPOINT_TABLE"`
}

// S3Config configures the S3 blob backend. Credentials and region come from
// the standard AWS environment/config chain.
type S3Config struct {
	Bucket string `envconfig:"S3_BUCKET"`
	Prefix string `envconfig:"S3_PREFIX"`
}

// MinioConfig configures the MinIO blob backend.
type MinioConfig struct {
	Endpoint  string `envconfig:"MINIO_ENDPOINT"`
	Bucket    string `envconfig:"MINIO_BUCKET"`
	AccessKey string `envconfig:"MINIO_ACCESS_KEY"`
	SecretKey string `envconfig:"MINIO_SECRET_KEY"`
	UseSSL    bool   `envconfig:"MINIO_USE_SSL" default:"true"`
}

// Load reads the configuration from the environment. A .env file in the
// working directory is applied first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("ordsim", &cfg); err != nil {
		return nil, fmt.Errorf("process config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field consistency.
func (c *Config) Validate() error {
	if c.HashSize <= 0 {
		return fmt.Errorf("hash size must be positive, got %d", c.HashSize)
	}
	if c.TopN <= 0 {
		return fmt.Errorf("top_n must be positive, got %d", c.TopN)
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("page size must be positive, got %d", c.PageSize)
	}
	switch c.SnapshotCompression {
	case "none", "zstd", "lz4":
	default:
		return fmt.Errorf("unknown snapshot compression %q", c.SnapshotCompression)
	}
	switch c.BlobBackend {
	case "local":
	case "s3":
		if c.S3.Bucket == "" {
			return fmt.Errorf("s3 blob backend requires ORDSIM_S3_BUCKET")
		}
	case "minio":
		if c.Minio.Endpoint == "" || c.Minio.Bucket == "" {
			return fmt.Errorf("minio blob backend requires ORDSIM_MINIO_ENDPOINT and ORDSIM_MINIO_BUCKET")
		}
	default:
		return fmt.Errorf("unknown blob backend %q", c.BlobBackend)
	}
	return nil
}

// SlogLevel maps the configured log level to a slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
