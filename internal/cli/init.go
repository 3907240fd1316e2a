// Package cli holds the start-up steps shared by cmd/spendly and
// cmd/spendly-worker.
package cli

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"spendly/internal/backend"
	"spendly/internal/config"
	"spendly/internal/log"
	"spendly/internal/storage"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the process logger from the configured level and
// format and installs it as the slog default.
func SetupLogger(cfg *config.Config, component string, out io.Writer) *log.Logger {
	logger := log.New(log.Config{
		Level:     log.ParseLevel(cfg.LogLevel),
		Component: component,
		Format:    log.Format(cfg.LogFormat),
		Output:    out,
	})
	log.SetDefault(logger)
	return logger
}

// Validate runs every check and joins their failures.
func Validate(checks ...func() error) error {
	var errs []error
	for _, check := range checks {
		if err := check(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Bootstrap loads .env and configuration, sets up logging and validates.
// The process exits on invalid configuration.
func Bootstrap(component string, extra ...func(*config.Config) error) (*config.Config, *log.Logger) {
	LoadEnvFile()
	cfg := config.Load()
	logger := SetupLogger(cfg, component, os.Stdout)

	checks := []func() error{cfg.Validate}
	for _, fn := range extra {
		checks = append(checks, func() error { return fn(cfg) })
	}
	if err := Validate(checks...); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg, logger
}

// OpenStore opens the store the configuration selects.
func OpenStore(cfg *config.Config, logger *log.Logger) (storage.Store, error) {
	return backend.Open(backend.Config{
		Type:         backend.Type(cfg.DataBackend),
		SQLiteDBPath: cfg.SQLiteDBPath,
	}, logger)
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
