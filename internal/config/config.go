// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// DefaultPassingThreshold applies to investors that never set one.
const DefaultPassingThreshold = 0.6

// Config holds application configuration
type Config struct {
	DataDir          string // Base directory for all databases (always absolute)
	LogLevel         string
	Port             int
	DevMode          bool
	EvalWorkers      int           // Goroutines evaluating (deal, investor) pairs during a full recompute
	QueueWorkers     int           // Goroutines draining the work queue
	DefaultThreshold float64       // Passing threshold for investors that leave it unset
	SweepSchedule    string        // Cron spec (with seconds) for the periodic full sweep
	JobTimeout       time.Duration // Upper bound for one work item
	OutboxRetention  time.Duration // How long resubmission notices stay replayable

	Redis   RedisConfig
	AMQP    AMQPConfig
	Archive ArchiveConfig
}

// RedisConfig configures the optional Redis Streams sink for resubmission notices.
type RedisConfig struct {
	URL      string
	Password string
	Stream   string
}

// Enabled reports whether the sink should be wired.
func (c RedisConfig) Enabled() bool { return c.URL != "" }

// AMQPConfig configures the optional AMQP sink for resubmission notices.
type AMQPConfig struct {
	URL   string
	Queue string
}

// Enabled reports whether the sink should be wired.
func (c AMQPConfig) Enabled() bool { return c.URL != "" }

// ArchiveConfig configures the optional S3-compatible archive of published views.
type ArchiveConfig struct {
	Bucket          string
	Endpoint        string // empty = AWS default resolution
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Prefix          string
}

// Enabled reports whether views should be archived.
func (c ArchiveConfig) Enabled() bool { return c.Bucket != "" }

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("DEALFLOW_DATA_DIR", "./data")

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:          absDataDir,
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		Port:             getEnvAsInt("DEALFLOW_PORT", 8080),
		DevMode:          getEnvAsBool("DEV_MODE", false),
		EvalWorkers:      getEnvAsInt("DEALFLOW_WORKERS", 8),
		QueueWorkers:     getEnvAsInt("DEALFLOW_QUEUE_WORKERS", 4),
		DefaultThreshold: getEnvAsFloat("DEALFLOW_DEFAULT_THRESHOLD", DefaultPassingThreshold),
		SweepSchedule:    getEnv("DEALFLOW_SWEEP_SCHEDULE", "0 */15 * * * *"),
		JobTimeout:       getEnvAsDuration("DEALFLOW_JOB_TIMEOUT", 2*time.Minute),
		OutboxRetention:  getEnvAsDuration("DEALFLOW_OUTBOX_RETENTION", 30*24*time.Hour),
		Redis: RedisConfig{
			URL:      getEnv("REDIS_URL", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			Stream:   getEnv("REDIS_STREAM", "deals.resubmission"),
		},
		AMQP: AMQPConfig{
			URL:   getEnv("AMQP_URL", ""),
			Queue: getEnv("AMQP_QUEUE", "deal_resubmission_events"),
		},
		Archive: ArchiveConfig{
			Bucket:          getEnv("ARCHIVE_BUCKET", ""),
			Endpoint:        getEnv("ARCHIVE_ENDPOINT", ""),
			Region:          getEnv("ARCHIVE_REGION", "auto"),
			AccessKeyID:     getEnv("ARCHIVE_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("ARCHIVE_SECRET_ACCESS_KEY", ""),
			Prefix:          getEnv("ARCHIVE_PREFIX", "views/"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the loaded values are usable
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.EvalWorkers <= 0 {
		return fmt.Errorf("DEALFLOW_WORKERS must be positive, got %d", c.EvalWorkers)
	}
	if c.QueueWorkers <= 0 {
		return fmt.Errorf("DEALFLOW_QUEUE_WORKERS must be positive, got %d", c.QueueWorkers)
	}
	if c.DefaultThreshold < 0 || c.DefaultThreshold > 1 {
		return fmt.Errorf("DEALFLOW_DEFAULT_THRESHOLD must be within [0, 1], got %v", c.DefaultThreshold)
	}
	if c.JobTimeout <= 0 {
		return fmt.Errorf("DEALFLOW_JOB_TIMEOUT must be positive, got %s", c.JobTimeout)
	}
	if c.SweepSchedule != "" {
		parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
		if _, err := parser.Parse(c.SweepSchedule); err != nil {
			return fmt.Errorf("invalid DEALFLOW_SWEEP_SCHEDULE %q: %w", c.SweepSchedule, err)
		}
	}
	if c.Archive.Enabled() && (c.Archive.AccessKeyID == "") != (c.Archive.SecretAccessKey == "") {
		return fmt.Errorf("ARCHIVE_ACCESS_KEY_ID and ARCHIVE_SECRET_ACCESS_KEY must be set together")
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
