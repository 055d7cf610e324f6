package migrator

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/doodlesbykumbi/schoolhost/pkg/audit"
	"github.com/doodlesbykumbi/schoolhost/pkg/db"
	"github.com/doodlesbykumbi/schoolhost/pkg/errs"
	"github.com/doodlesbykumbi/schoolhost/pkg/metrics"
	"github.com/doodlesbykumbi/schoolhost/pkg/model"
	"github.com/doodlesbykumbi/schoolhost/pkg/schema"
	"github.com/doodlesbykumbi/schoolhost/pkg/server/store"
	"github.com/doodlesbykumbi/schoolhost/pkg/tenant"
)

// Config holds migration settings.
type Config struct {
	// Concurrency bounds how many tenants MigrateAll migrates at once.
	Concurrency int
	// RelaxIntegrity turns foreign key enforcement off while tables are
	// upgraded.
	RelaxIntegrity bool
	Timeout        time.Duration
	RetryAttempts  int
	RetryInterval  time.Duration
}

// TenantResult is the outcome of migrating one tenant.
type TenantResult struct {
	TenantID     int64           `json:"tenant_id"`
	Database     string          `json:"database"`
	Version      int             `json:"version"`
	Success      bool            `json:"success"`
	Tables       schema.Outcomes `json:"-"`
	FailedTables []string        `json:"failed_tables,omitempty"`
	SeededRows   int64           `json:"seeded_rows"`
	Error        string          `json:"error,omitempty"`
}

// Summary is the outcome of MigrateAll.
type Summary struct {
	Migrated int             `json:"migrated"`
	Failed   int             `json:"failed"`
	Results  []*TenantResult `json:"results"`
}

// Migrator upgrades tenant databases.
type Migrator struct {
	dir      *tenant.Directory
	locks    *tenant.Locker
	recorder *audit.Recorder
	clock    clock.Clock
	logger   logrus.FieldLogger
	metrics  *metrics.Metrics
	cfg      Config
}

// New creates a new Migrator. locks must be shared with the provisioner
// so a tenant is never provisioned and migrated at once.
func New(cfg Config, dir *tenant.Directory, locks *tenant.Locker, recorder *audit.Recorder, clk clock.Clock, logger logrus.FieldLogger, m *metrics.Metrics) *Migrator {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if clk == nil {
		clk = clock.New()
	}
	if locks == nil {
		locks = tenant.NewLocker()
	}
	return &Migrator{
		dir:      dir,
		locks:    locks,
		recorder: recorder,
		clock:    clk,
		logger:   logger,
		metrics:  m,
		cfg:      cfg,
	}
}

// MigrateTenant looks the tenant up by id and migrates it.
func (m *Migrator) MigrateTenant(ctx context.Context, tenantID int64) (*TenantResult, error) {
	t, err := m.dir.Tenant(ctx, tenantID)
	if err != nil {
		return nil, errs.Wrap("migrator.Migrate", tenantID, err)
	}
	return m.Migrate(ctx, t)
}

// Migrate upgrades the database of t to the current catalog. The result
// is returned along with any error.
func (m *Migrator) Migrate(ctx context.Context, t *model.Tenant) (*TenantResult, error) {
	const op = "migrator.Migrate"
	start := m.clock.Now()

	res := &TenantResult{TenantID: t.ID, Database: t.Database(), Version: schema.Version()}
	if !t.HasDatabase() {
		m.observe("invalid", start)
		return res, &errs.Error{Code: errs.ENotFound, Op: op, TenantID: t.ID, Msg: "tenant has no database"}
	}
	if !t.Status.Migratable() {
		m.observe("invalid", start)
		return res, &errs.Error{Code: errs.EInvalid, Op: op, TenantID: t.ID, Msg: fmt.Sprintf("tenant is %s", t.Status)}
	}

	unlock := m.locks.Lock(tenant.LockKey(t.ID))
	defer unlock()

	log := m.logger.WithFields(logrus.Fields{"tenant_id": t.ID, "database": res.Database, "op": op})
	ts, err := m.dir.Database(ctx, t)
	if err == nil {
		err = m.migrate(ctx, ts, res, log)
	}
	if err == nil {
		err = m.stamp(ctx, t.ID)
	}

	res.Success = err == nil
	if err != nil {
		err = errs.Wrap(op, t.ID, err)
		res.Error = err.Error()
		log.WithError(err).Error("tenant migration failed")
		m.observe("failed", start)
	} else {
		log.WithField("version", res.Version).Info("tenant migrated")
		m.observe("success", start)
	}
	m.audit(ctx, ts, res, err)
	return res, err
}

func (m *Migrator) migrate(ctx context.Context, ts store.TenantStore, res *TenantResult, log logrus.FieldLogger) error {
	err := ts.WithSchemaLock(ctx, m.cfg.RelaxIntegrity, func(s store.SchemaStore) error {
		tables := schema.Tables()
		res.Tables = make(schema.Outcomes, 0, len(tables))
		failed := map[string]bool{}
		for _, table := range tables {
			err := s.UpgradeTable(ctx, table)
			res.Tables = append(res.Tables, schema.Outcome{Table: table.Name, Required: table.Required, Err: err})
			if err != nil {
				failed[table.Name] = true
				res.FailedTables = append(res.FailedTables, table.Name)
				log.WithError(err).WithField("table", table.Name).Warn("failed to upgrade table")
			}
		}
		for _, seed := range schema.DefaultSeeds() {
			if failed[seed.Table] {
				continue
			}
			n, err := s.Seed(ctx, seed)
			if err != nil {
				return fmt.Errorf("seed %s: %w", seed.Table, err)
			}
			res.SeededRows += n
		}
		return nil
	})
	if err != nil {
		return err
	}
	if failed := res.Tables.Failed(); len(failed) > 0 {
		return &errs.Error{
			Code: errs.EPartialFailure,
			Msg:  fmt.Sprintf("%d tables failed", len(failed)),
			Err:  failed.Err(),
		}
	}
	return nil
}

func (m *Migrator) stamp(ctx context.Context, tenantID int64) error {
	return db.Retry(ctx, m.cfg.RetryAttempts, m.cfg.RetryInterval, func(ctx context.Context) error {
		ctx, cancel := db.WithTimeout(ctx, m.cfg.Timeout)
		defer cancel()
		return m.dir.Registry().StampMigration(ctx, tenantID, schema.Version(), m.clock.Now().UTC())
	})
}

// MigrateAll migrates every migratable tenant. Per-tenant failures are
// counted in the summary; the error is only set when the tenant list
// could not be read or ctx ended.
func (m *Migrator) MigrateAll(ctx context.Context) (*Summary, error) {
	var tenants []model.Tenant
	err := db.Retry(ctx, m.cfg.RetryAttempts, m.cfg.RetryInterval, func(ctx context.Context) error {
		ctx, cancel := db.WithTimeout(ctx, m.cfg.Timeout)
		defer cancel()
		var err error
		tenants, err = m.dir.Registry().ListMigratableTenants(ctx)
		return err
	})
	if err != nil {
		return nil, errs.Wrap("migrator.MigrateAll", 0, err)
	}

	results := make([]*TenantResult, len(tenants))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.Concurrency)
	for i := range tenants {
		i, t := i, tenants[i]
		g.Go(func() error {
			if gctx.Err() != nil {
				results[i] = &TenantResult{TenantID: t.ID, Database: t.Database(), Version: schema.Version(), Error: gctx.Err().Error()}
				return nil
			}
			results[i], _ = m.Migrate(gctx, &t)
			return nil
		})
	}
	_ = g.Wait()

	summary := &Summary{Results: results}
	for _, r := range results {
		if r.Success {
			summary.Migrated++
		} else {
			summary.Failed++
		}
	}
	m.logger.WithFields(logrus.Fields{"migrated": summary.Migrated, "failed": summary.Failed}).Info("migration run finished")
	return summary, ctx.Err()
}

func (m *Migrator) audit(ctx context.Context, sink store.AuditStore, res *TenantResult, err error) {
	event := audit.TenantMigratedEvent{
		TenantID:     res.TenantID,
		Database:     res.Database,
		Version:      res.Version,
		FailedTables: res.FailedTables,
		Success:      err == nil,
	}
	if err != nil {
		event.ErrorMessage = err.Error()
	}
	m.recorder.Record(ctx, sink, event)
}

func (m *Migrator) observe(result string, start time.Time) {
	if m.metrics == nil {
		return
	}
	m.metrics.MigrationTotal.WithLabelValues(result).Inc()
	m.metrics.MigrationDuration.Observe(m.clock.Since(start).Seconds())
}
