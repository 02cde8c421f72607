package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Database
	SQLiteDBPath string

	// Reports
	ReportsDir   string
	ReportFormat string

	// Logging
	LogLevel string

	// AMQP (optional, empty URL disables ledger events)
	AMQPURL        string
	AMQPExchange   string
	AMQPQueue      string
	PublishTimeout time.Duration

	// Worker
	WorkerConcurrency int
	RefreshInterval   time.Duration
}

var validReportFormats = []string{"json", "yaml", "csv"}

func Load() *Config {
	cfg := &Config{
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/expenses.db"),

		ReportsDir:   getEnv("REPORTS_DIR", "./data/reports"),
		ReportFormat: strings.ToLower(getEnv("REPORT_FORMAT", "json")),

		LogLevel: strings.ToLower(getEnv("LOG_LEVEL", "info")),

		AMQPURL:        getEnv("AMQP_URL", ""),
		AMQPExchange:   getEnv("AMQP_EXCHANGE", "expenses"),
		AMQPQueue:      getEnv("AMQP_QUEUE", "ledger_events"),
		PublishTimeout: getEnvDuration("PUBLISH_TIMEOUT", 5*time.Second),

		WorkerConcurrency: getEnvInt("WORKER_CONCURRENCY", 2),
		RefreshInterval:   getEnvDuration("REPORT_REFRESH_INTERVAL", time.Hour),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	} else {
		// Check if directory exists or can be created
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	if c.ReportsDir == "" {
		errors = append(errors, "reports directory cannot be empty")
	}

	isValidFormat := false
	for _, f := range validReportFormats {
		if c.ReportFormat == f {
			isValidFormat = true
			break
		}
	}
	if !isValidFormat {
		errors = append(errors, fmt.Sprintf("invalid report format '%s': must be one of %v", c.ReportFormat, validReportFormats))
	}

	if _, err := ParseLevel(c.LogLevel); err != nil {
		errors = append(errors, err.Error())
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.PublishTimeout < 100*time.Millisecond {
		errors = append(errors, fmt.Sprintf("invalid publish timeout %v: must be at least 100ms", c.PublishTimeout))
	} else if c.PublishTimeout > time.Minute {
		errors = append(errors, fmt.Sprintf("invalid publish timeout %v: must be at most 1 minute", c.PublishTimeout))
	}

	if c.WorkerConcurrency < 1 {
		errors = append(errors, fmt.Sprintf("invalid worker concurrency %d: must be at least 1", c.WorkerConcurrency))
	} else if c.WorkerConcurrency > 16 {
		errors = append(errors, fmt.Sprintf("invalid worker concurrency %d: must be at most 16", c.WorkerConcurrency))
	}

	if c.RefreshInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid report refresh interval %v: must be at least 1s", c.RefreshInterval))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// EventsEnabled reports whether ledger events should be published.
func (c *Config) EventsEnabled() bool {
	return c.AMQPURL != ""
}

// ParseLevel maps a LOG_LEVEL value to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level '%s': must be one of debug, info, warn, error", s)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
