package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/doodlesbykumbi/schoolhost/pkg/app"
	"github.com/doodlesbykumbi/schoolhost/pkg/config"
	"github.com/doodlesbykumbi/schoolhost/pkg/logging"
)

// loadConfig reads and validates the configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*logrus.Logger, error) {
	return logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
}

// openApp wires the components against the PostgreSQL registry and cluster.
func openApp() (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}
	backends, err := app.Postgres(cfg, nil)
	if err != nil {
		return nil, err
	}
	return app.New(cfg, logger, backends, nil)
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func closeApp(a *app.App) {
	if err := a.Close(); err != nil {
		a.Logger.WithError(err).Warn("failed to close connections")
	}
}
