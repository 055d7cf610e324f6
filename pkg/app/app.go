// Package app wires the components of the tenancy core from a Config.
package app

import (
	"context"
	"fmt"

	"github.com/benbjohnson/clock"
	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/doodlesbykumbi/schoolhost/pkg/audit"
	"github.com/doodlesbykumbi/schoolhost/pkg/config"
	"github.com/doodlesbykumbi/schoolhost/pkg/db"
	"github.com/doodlesbykumbi/schoolhost/pkg/metrics"
	"github.com/doodlesbykumbi/schoolhost/pkg/migrator"
	"github.com/doodlesbykumbi/schoolhost/pkg/provision"
	"github.com/doodlesbykumbi/schoolhost/pkg/quota"
	"github.com/doodlesbykumbi/schoolhost/pkg/ratelimit"
	"github.com/doodlesbykumbi/schoolhost/pkg/server"
	"github.com/doodlesbykumbi/schoolhost/pkg/server/middleware"
	"github.com/doodlesbykumbi/schoolhost/pkg/server/store"
	gormstore "github.com/doodlesbykumbi/schoolhost/pkg/server/store/gorm"
	"github.com/doodlesbykumbi/schoolhost/pkg/server/store/memory"
	"github.com/doodlesbykumbi/schoolhost/pkg/session"
	"github.com/doodlesbykumbi/schoolhost/pkg/tenant"
)

const sessionPrefix = "schoolhost:session"

// Backends are the storage collaborators of an App.
type Backends struct {
	Registry  store.RegistryStore
	Cluster   store.Cluster
	Connector store.Connector
	// Evictor is optional.
	Evictor provision.Evictor
	Health  []store.HealthStore
	closers []func() error
}

// Postgres connects to the registry and the cluster described by cfg.
func Postgres(cfg *config.Config, m *metrics.Metrics) (*Backends, error) {
	registryDB, err := db.Connect(db.Config{URL: cfg.DatabaseURL, Debug: cfg.LogLevel == "trace"})
	if err != nil {
		return nil, err
	}
	adminURL := cfg.AdminDatabaseURL
	if adminURL == "" {
		adminURL = cfg.DatabaseURL
	}
	cluster, err := db.OpenCluster(adminURL, cfg.QueryTimeout)
	if err != nil {
		return nil, err
	}
	conns := tenant.NewConnections(db.TenantOpener(adminURL, cfg.TenantMaxOpenConns, cfg.LogLevel == "trace"), m)

	b := &Backends{
		Registry:  gormstore.NewRegistryStore(registryDB),
		Cluster:   cluster,
		Connector: gormstore.NewConnector(conns),
		Evictor:   conns,
		Health:    []store.HealthStore{gormstore.NewHealthStore(registryDB)},
	}
	b.closers = append(b.closers, conns.Close, cluster.Close, func() error {
		sqlDB, err := registryDB.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	})
	return b, nil
}

// Memory returns in-memory backends whose registry holds the default plan
// catalog. Nothing survives a restart.
func Memory() (*Backends, *memory.Registry, *memory.Cluster) {
	registry := memory.NewRegistry()
	for _, p := range memory.DefaultPlans() {
		registry.AddPlan(p)
	}
	cluster := memory.NewCluster()
	return &Backends{
		Registry:  registry,
		Cluster:   cluster,
		Connector: cluster,
		Health:    []store.HealthStore{registry},
	}, registry, cluster
}

// App holds every wired component.
type App struct {
	Config   *config.Config
	Logger   *logrus.Logger
	Clock    clock.Clock
	Gatherer *prometheus.Registry
	Metrics  *metrics.Metrics
	Backends *Backends

	Locks       *tenant.Locker
	Directory   *tenant.Directory
	Sessions    session.Store
	Resolver    *tenant.Resolver
	Binder      *tenant.Binder
	Recorder    *audit.Recorder
	Provisioner *provision.Provisioner
	Migrator    *migrator.Migrator
	Quota       *quota.Tracker
	Mirror      *ratelimit.StoreMirror
	Limiter     *ratelimit.Limiter
	AdminAuth   *middleware.AdminAuthenticator

	closers []func() error
}

// New wires the components on top of b. A nil clk means the wall clock.
func New(cfg *config.Config, logger *logrus.Logger, b *Backends, clk clock.Clock) (*App, error) {
	if clk == nil {
		clk = clock.New()
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	a := &App{
		Config:   cfg,
		Logger:   logger,
		Clock:    clk,
		Gatherer: reg,
		Metrics:  m,
		Backends: b,
		Locks:    tenant.NewLocker(),
		closers:  append([]func() error(nil), b.closers...),
	}

	policy := tenant.RetryPolicy{Timeout: cfg.QueryTimeout, Attempts: cfg.RetryAttempts, Interval: cfg.RetryInterval}
	a.Directory = tenant.NewDirectory(b.Registry, b.Connector, policy).WithDefaultPlan(cfg.DefaultPlan)

	sessions, err := a.sessionStore()
	if err != nil {
		return nil, err
	}
	a.Sessions = sessions

	cache, err := tenant.NewCache(cfg.TenantCacheSize, cfg.TenantCacheTTL, clk)
	if err != nil {
		return nil, err
	}
	a.Resolver = tenant.NewResolver(b.Registry, sessions, cache, tenant.ResolverConfig{
		BaseDomain: cfg.BaseDomain,
		Reserved:   cfg.ReservedSubdomains,
		Timeout:    cfg.QueryTimeout,
	}, logger, m)
	a.Binder = tenant.NewBinder(b.Registry, sessions, cfg.QueryTimeout, logger)

	a.Recorder = audit.NewRecorder(audit.NewLogger(logger.Out), logger, clk)

	a.Provisioner = provision.New(provision.Config{
		DatabasePrefix: cfg.TenantDatabasePrefix,
		TrialDays:      cfg.TrialDays,
		DefaultPlan:    cfg.DefaultPlan,
		Timeout:        cfg.QueryTimeout,
		RetryAttempts:  cfg.RetryAttempts,
		RetryInterval:  cfg.RetryInterval,
	}, provision.Deps{
		Registry:  b.Registry,
		Cluster:   b.Cluster,
		Connector: b.Connector,
		Locks:     a.Locks,
		Recorder:  a.Recorder,
		Evictor:   b.Evictor,
		Clock:     clk,
		Logger:    logger,
		Metrics:   m,
	})

	a.Migrator = migrator.New(migrator.Config{
		Concurrency:    cfg.MigrationConcurrency,
		RelaxIntegrity: cfg.DisableIntegrityChecks,
		Timeout:        cfg.QueryTimeout,
		RetryAttempts:  cfg.RetryAttempts,
		RetryInterval:  cfg.RetryInterval,
	}, a.Directory, a.Locks, a.Recorder, clk, logger, m)

	a.Quota = quota.NewTracker(a.Directory, a.Recorder, quota.Config{
		WarningPercent:  cfg.QuotaWarningPercent,
		CriticalPercent: cfg.QuotaCriticalPercent,
		AlertCooldown:   cfg.QuotaAlertCooldown,
		Timeout:         cfg.QueryTimeout,
	}, clk, logger, m)

	a.Mirror = ratelimit.NewStoreMirror(a.Directory, a.Recorder, cfg.QueryTimeout)
	a.Limiter = ratelimit.New(ratelimit.Config{
		Shards:        cfg.RateLimitShards,
		DefaultLimit:  cfg.RateLimitDefaultLimit,
		DefaultWindow: cfg.RateLimitDefaultWindow,
		MirrorBuffer:  cfg.RateLimitMirrorBuffer,
		SweepInterval: cfg.RateLimitSweepInterval,
	}, a.Mirror, clk, logger, m).WithRecorder(a.Recorder)

	a.AdminAuth = middleware.NewAdminAuthenticator(cfg.AdminTokenSecret, clk)
	return a, nil
}

func (a *App) sessionStore() (session.Store, error) {
	if a.Config.SessionStore != config.StorageRedis {
		return session.NewMemoryStore(a.Config.SessionTTL, a.Clock), nil
	}
	opts, err := redis.ParseURL(a.Config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)
	a.closers = append(a.closers, client.Close)
	return session.NewRedisStore(client, sessionPrefix, a.Config.SessionTTL), nil
}

// Components returns what the HTTP server needs.
func (a *App) Components() server.Components {
	return server.Components{
		Metrics:     a.Metrics,
		Gatherer:    a.Gatherer,
		Health:      a.Backends.Health,
		Directory:   a.Directory,
		Resolver:    a.Resolver,
		Binder:      a.Binder,
		Provisioner: a.Provisioner,
		Migrator:    a.Migrator,
		Quota:       a.Quota,
		Limiter:     a.Limiter,
		AdminAuth:   a.AdminAuth,
	}
}

// RestoreRateLimits reloads the persisted windows of every migratable
// tenant into the limiter.
func (a *App) RestoreRateLimits(ctx context.Context) (int, error) {
	tenants, err := a.Backends.Registry.ListMigratableTenants(ctx)
	if err != nil {
		return 0, err
	}
	return a.Mirror.Restore(ctx, a.Limiter, tenants)
}

// Close releases every connection in reverse order of acquisition.
func (a *App) Close() error {
	var result *multierror.Error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
