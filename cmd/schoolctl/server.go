package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/doodlesbykumbi/schoolhost/pkg/app"
	"github.com/doodlesbykumbi/schoolhost/pkg/config"
	"github.com/doodlesbykumbi/schoolhost/pkg/server"
	"github.com/doodlesbykumbi/schoolhost/pkg/server/endpoints"
)

const shutdownTimeout = 15 * time.Second

func defaultBindAddress() string {
	if addr := os.Getenv("BIND_ADDRESS"); addr != "" {
		return addr
	}
	return "0.0.0.0"
}

func defaultPort() string {
	if port := os.Getenv("PORT"); port != "" {
		return port
	}
	return "8000"
}

func defaultPortInt() int {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			return p
		}
	}
	return 8000
}

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the tenancy API server",
	Long: `Run the tenancy API server.

The server requires DATABASE_URL unless --in-memory is set. By default the
registry migrations are run on startup. Use --no-migrate to skip.

With --in-memory the registry and tenant databases live in process memory
and nothing survives a restart. It is meant for local development.`,
	Run: func(cmd *cobra.Command, args []string) {
		host, _ := cmd.Flags().GetString("bind-address")
		port, _ := cmd.Flags().GetString("port")
		inMemory, _ := cmd.Flags().GetBool("in-memory")
		noMigrate, _ := cmd.Flags().GetBool("no-migrate")

		if err := runServer(host, port, inMemory, noMigrate); err != nil {
			fmt.Fprintf(os.Stderr, "Server failed: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)

	serverCmd.Flags().StringP("port", "p", defaultPort(), "server listen port")
	serverCmd.Flags().StringP("bind-address", "b", defaultBindAddress(), "server bind address")
	serverCmd.Flags().Bool("no-migrate", false, "skip running registry migrations on start")
	serverCmd.Flags().Bool("in-memory", false, "keep the registry and tenant databases in memory")
}

func runServer(host, port string, inMemory, noMigrate bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	if cfg.AdminTokenSecret == "" {
		logger.Warn("SCHOOLHOST_ADMIN_TOKEN_SECRET is not set; the admin API rejects every request")
	}

	var backends *app.Backends
	if inMemory {
		backends, _, _ = app.Memory()
		logger.Warn("running with in-memory storage")
	} else {
		if cfg.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL environment variable is required")
		}
		if !noMigrate {
			logger.Info("running registry migrations")
			if err := runMigrations(); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
		}
		if backends, err = app.Postgres(cfg, nil); err != nil {
			return err
		}
	}

	a, err := app.New(cfg, logger, backends, nil)
	if err != nil {
		return err
	}
	defer closeApp(a)

	ctx, stop := signalContext()
	defer stop()

	if n, err := a.RestoreRateLimits(ctx); err != nil {
		logger.WithError(err).Warn("failed to restore rate limit windows")
	} else if n > 0 {
		logger.WithField("windows", n).Info("restored rate limit windows")
	}

	s := server.NewServer(cfg, logger, a.Components(), host, port)
	endpoints.RegisterAll(s)

	// The limiter gets its own context so queued decisions are persisted
	// after the server has stopped taking requests.
	limiterCtx, stopLimiter := context.WithCancel(context.Background())
	limiterDone := make(chan struct{})
	go func() {
		defer close(limiterDone)
		_ = a.Limiter.Run(limiterCtx)
	}()
	defer func() {
		stopLimiter()
		<-limiterDone
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infof("Running server at http://%s:%s...", host, port)
		if err := s.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info("shutting down")
		return s.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		err := config.Watch(gctx, cfg.ConfigFilePath(), logger, func(next *config.Config) {
			if lvl, err := logrus.ParseLevel(next.LogLevel); err == nil {
				logger.SetLevel(lvl)
			}
		})
		if err != nil {
			// A missing config directory only disables reloading.
			logger.WithError(err).Debug("configuration watch disabled")
		}
		return nil
	})
	return g.Wait()
}
