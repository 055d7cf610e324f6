package db

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Config holds database connection configuration
type Config struct {
	// URL is the postgres connection URL.
	URL string
	// Debug turns on gorm SQL logging.
	Debug bool
	// MaxOpenConns caps the pool when positive.
	MaxOpenConns int
}

// Connect establishes a gorm connection to a single database.
func Connect(cfg Config) (*gorm.DB, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("database url is required")
	}

	// Default to silent logging unless debug is requested
	logMode := logger.Silent
	if cfg.Debug {
		logMode = logger.Info
	}

	db, err := gorm.Open(
		postgres.New(postgres.Config{
			DSN:                  cfg.URL,
			PreferSimpleProtocol: true, // disables implicit prepared statement usage
		}),
		&gorm.Config{
			Logger: logger.Default.LogMode(logMode),
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to access connection pool: %w", err)
		}
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MaxOpenConns)
	}

	return db, nil
}

// WithTimeout bounds ctx by d. A non-positive d leaves ctx unbounded.
func WithTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// TenantOpener returns a function opening tenant databases on the server
// addressed by base.
func TenantOpener(base string, maxOpen int, debug bool) func(ctx context.Context, name string) (*gorm.DB, error) {
	return func(_ context.Context, name string) (*gorm.DB, error) {
		url, err := DatabaseURL(base, name)
		if err != nil {
			return nil, err
		}
		return Connect(Config{URL: url, Debug: debug, MaxOpenConns: maxOpen})
	}
}
