// Package cli provides common CLI initialization utilities shared by
// cmd/expense-report and cmd/report-worker.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"expenses/internal/config"
	applog "expenses/internal/log"
	"expenses/internal/storage"
)

// SetupLogger builds the component logger for the given LOG_LEVEL and
// installs it as the slog default. Unknown levels fall back to info.
func SetupLogger(level, component string) *applog.Logger {
	lvl, err := config.ParseLevel(level)
	logger := applog.New(applog.Config{
		Level:     lvl,
		Component: component,
		Output:    os.Stderr,
	})
	applog.SetDefault(logger)
	if err != nil {
		logger.Warn("Falling back to info log level", applog.FieldError, err)
	}
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *applog.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// InitSQLite opens the ledger database at dbPath.
// Returns the repository or exits the process on failure.
func InitSQLite(logger *applog.Logger, dbPath string) *storage.SQLiteRepository {
	repo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", applog.FieldError, err, applog.FieldPath, dbPath)
		os.Exit(1)
	}
	return repo
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that is closed once cleanup has run.
func GracefulShutdown(logger *applog.Logger, timeout time.Duration, cleanup func()) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
		case <-ctx.Done():
		}

		cancel()

		finished := make(chan struct{})
		go func() {
			if cleanup != nil {
				cleanup()
			}
			close(finished)
		}()

		select {
		case <-finished:
			logger.Info("Shutdown complete")
		case <-time.After(timeout):
			logger.Warn("Shutdown timeout reached")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled and cleanup finished.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
