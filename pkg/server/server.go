package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/doodlesbykumbi/schoolhost/pkg/config"
	"github.com/doodlesbykumbi/schoolhost/pkg/metrics"
	"github.com/doodlesbykumbi/schoolhost/pkg/migrator"
	"github.com/doodlesbykumbi/schoolhost/pkg/provision"
	"github.com/doodlesbykumbi/schoolhost/pkg/quota"
	"github.com/doodlesbykumbi/schoolhost/pkg/ratelimit"
	"github.com/doodlesbykumbi/schoolhost/pkg/server/middleware"
	"github.com/doodlesbykumbi/schoolhost/pkg/server/store"
	"github.com/doodlesbykumbi/schoolhost/pkg/tenant"
)

// Server holds the router and every component the endpoints call.
type Server struct {
	Config      *config.Config
	Router      *mux.Router
	Logger      *logrus.Logger
	Metrics     *metrics.Metrics
	Gatherer    prometheus.Gatherer
	Health      []store.HealthStore
	Directory   *tenant.Directory
	Resolver    *tenant.Resolver
	Binder      *tenant.Binder
	Provisioner *provision.Provisioner
	Migrator    *migrator.Migrator
	Quota       *quota.Tracker
	Limiter     *ratelimit.Limiter
	AdminAuth   *middleware.AdminAuthenticator
	srv         *http.Server
}

// Components are the collaborators handed to NewServer.
type Components struct {
	Metrics     *metrics.Metrics
	Gatherer    prometheus.Gatherer
	Health      []store.HealthStore
	Directory   *tenant.Directory
	Resolver    *tenant.Resolver
	Binder      *tenant.Binder
	Provisioner *provision.Provisioner
	Migrator    *migrator.Migrator
	Quota       *quota.Tracker
	Limiter     *ratelimit.Limiter
	AdminAuth   *middleware.AdminAuthenticator
}

func NewServer(
	cfg *config.Config,
	logger *logrus.Logger,
	c Components,
	host string,
	port string,
) *Server {
	router := mux.NewRouter().UseEncodedPath()
	router.Use(
		middleware.RequestID(logger),
		middleware.Metrics(c.Metrics),
	)
	if cfg.GlobalRateLimitEnabled {
		router.Use(middleware.GlobalRateLimit(middleware.GlobalLimitConfig{
			RequestsPerSecond: cfg.GlobalRateLimitRPS,
			Store:             cfg.RateLimitStorage,
			RedisURL:          cfg.RedisURL,
		}, logger, c.Metrics))
	}

	srv := &http.Server{
		Handler:           handlers.CombinedLoggingHandler(logger.Writer(), handlers.RecoveryHandler()(router)),
		Addr:              host + ":" + port,
		WriteTimeout:      60 * time.Second,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return &Server{
		Config:      cfg,
		Router:      router,
		Logger:      logger,
		Metrics:     c.Metrics,
		Gatherer:    c.Gatherer,
		Health:      c.Health,
		Directory:   c.Directory,
		Resolver:    c.Resolver,
		Binder:      c.Binder,
		Provisioner: c.Provisioner,
		Migrator:    c.Migrator,
		Quota:       c.Quota,
		Limiter:     c.Limiter,
		AdminAuth:   c.AdminAuth,
		srv:         srv,
	}
}

// Admin wraps h with admin token authentication.
func (s *Server) Admin(h http.HandlerFunc) http.Handler {
	return s.AdminAuth.Middleware(h)
}

// Tenanted wraps h with tenant resolution and the tenant rate limit.
func (s *Server) Tenanted(h http.HandlerFunc) http.Handler {
	resolve := middleware.ResolveTenant(s.Resolver, s.Config.SessionCookie, s.Logger)
	limit := middleware.TenantRateLimit(s.Limiter, s.Directory, s.Logger)
	return resolve(limit(h))
}

func (s *Server) Start() error {
	return s.srv.ListenAndServe()
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
