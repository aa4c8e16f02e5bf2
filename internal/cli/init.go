// Package cli provides the bootstrap shared by the finboard subcommands.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"finboard/internal/backend"
	"finboard/internal/config"
	applog "finboard/internal/log"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the text logger for the given level, writing to w,
// and installs it as the slog default.
func SetupLogger(w io.Writer, level string) *applog.Logger {
	lvl, err := applog.ParseLevel(level)
	logger := applog.NewText(w, lvl, applog.ComponentApp)
	if err != nil {
		logger.Warn("Unknown log level, using info", applog.FieldError, err)
	}
	applog.SetDefault(logger)
	return logger
}

// Bootstrap loads .env and the environment, validates the configuration
// and returns it with a logger at the configured level.
func Bootstrap() (*config.Config, *applog.Logger, error) {
	LoadEnvFile()
	cfg := config.Load()
	logger := SetupLogger(os.Stderr, cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		return nil, logger, err
	}
	return cfg, logger, nil
}

// OpenTokenStore opens the configured token slot backend. Close the result
// when done.
func OpenTokenStore(ctx context.Context, cfg *config.Config, logger *applog.Logger, initialToken string) (*backend.BackendResult, error) {
	bc, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	bc.InitialToken = initialToken
	res, err := backend.NewFactory(logger).CreateBackend(ctx, bc)
	if err != nil {
		return nil, fmt.Errorf("open token store: %w", err)
	}
	return res, nil
}

// SignalContext returns a context canceled on SIGINT or SIGTERM.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}
