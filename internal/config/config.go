package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config captures the runtime configuration for the loomdrop service and CLI.
type Config struct {
	AppPort      int
	LogLevel     string
	DatabaseURL  string
	MigrationDir string

	LoomBaseURL     string
	DownloadTimeout time.Duration
	MetadataTimeout time.Duration

	RateLimit RateLimitConfig
	Audit     AuditConfig

	APIURL    string
	OutputDir string
	UserAgent string

	ObjectStore ObjectStoreConfig
}

// RateLimitConfig controls the per-IP limiter guarding the download endpoint.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
	Burst    int
}

// AuditConfig sizes the background resolution event recorder.
type AuditConfig struct {
	Workers   int
	QueueSize int
}

// ObjectStoreConfig describes the S3-compatible bucket used as the share target.
type ObjectStoreConfig struct {
	Bucket        string
	Endpoint      string
	Region        string
	PublicBaseURL string
}

// Enabled reports whether a bucket has been configured.
func (c ObjectStoreConfig) Enabled() bool {
	return strings.TrimSpace(c.Bucket) != ""
}

// Load reads configuration from environment variables, applying sensible defaults
// for local development. A .env file in the working directory is read first when present.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, err
	}

	cfg := Config{
		AppPort:      getInt("LOOMDROP_PORT", 8080),
		LogLevel:     getString("LOOMDROP_LOG_LEVEL", "info"),
		DatabaseURL:  getString("LOOMDROP_DATABASE_URL", ""),
		MigrationDir: getString("LOOMDROP_MIGRATIONS", "migrations"),

		LoomBaseURL:     getString("LOOMDROP_LOOM_BASE_URL", "https://www.loom.com"),
		DownloadTimeout: getDuration("LOOMDROP_DOWNLOAD_TIMEOUT", 10*time.Second),
		MetadataTimeout: getDuration("LOOMDROP_METADATA_TIMEOUT", 5*time.Second),

		RateLimit: RateLimitConfig{
			Requests: getInt("LOOMDROP_RATE_LIMIT_REQUESTS", 30),
			Window:   getDuration("LOOMDROP_RATE_LIMIT_WINDOW", time.Minute),
			Burst:    getInt("LOOMDROP_RATE_LIMIT_BURST", 10),
		},
		Audit: AuditConfig{
			Workers:   getInt("LOOMDROP_AUDIT_WORKERS", 1),
			QueueSize: getInt("LOOMDROP_AUDIT_QUEUE", 64),
		},

		APIURL:    getString("LOOMDROP_API_URL", "http://localhost:8080"),
		OutputDir: getString("LOOMDROP_OUTPUT_DIR", "."),
		UserAgent: getString("LOOMDROP_USER_AGENT", ""),

		ObjectStore: ObjectStoreConfig{
			Bucket:        getString("LOOMDROP_S3_BUCKET", ""),
			Endpoint:      getString("LOOMDROP_S3_ENDPOINT", ""),
			Region:        getString("LOOMDROP_S3_REGION", "us-east-1"),
			PublicBaseURL: getString("LOOMDROP_S3_PUBLIC_BASE_URL", ""),
		},
	}

	return cfg, nil
}

// SlogLevel maps LogLevel onto a slog level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return i
}

func getDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}
