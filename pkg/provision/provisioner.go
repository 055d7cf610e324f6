package provision

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/doodlesbykumbi/schoolhost/pkg/audit"
	"github.com/doodlesbykumbi/schoolhost/pkg/db"
	"github.com/doodlesbykumbi/schoolhost/pkg/errs"
	"github.com/doodlesbykumbi/schoolhost/pkg/metrics"
	"github.com/doodlesbykumbi/schoolhost/pkg/model"
	"github.com/doodlesbykumbi/schoolhost/pkg/quota"
	"github.com/doodlesbykumbi/schoolhost/pkg/schema"
	"github.com/doodlesbykumbi/schoolhost/pkg/server/store"
	"github.com/doodlesbykumbi/schoolhost/pkg/tenant"
)

// Config holds provisioning settings.
type Config struct {
	DatabasePrefix string
	TrialDays      int
	// DefaultPlan is the plan code of the initial subscription, also used
	// for tenants that reference no plan.
	DefaultPlan   string
	BcryptCost    int
	Timeout       time.Duration
	RetryAttempts int
	RetryInterval time.Duration
}

// Evictor forgets cached handles of a dropped database.
type Evictor interface {
	Evict(name string) error
}

// Deps are the collaborators of a Provisioner. Recorder, Evictor, Clock
// and Metrics are optional.
type Deps struct {
	Registry  store.RegistryStore
	Cluster   store.Cluster
	Connector store.Connector
	Locks     *tenant.Locker
	Recorder  *audit.Recorder
	Evictor   Evictor
	Clock     clock.Clock
	Logger    logrus.FieldLogger
	Metrics   *metrics.Metrics
}

// Provisioner creates and drops tenant databases.
type Provisioner struct {
	Deps
	cfg Config
}

// New creates a new Provisioner
func New(cfg Config, deps Deps) *Provisioner {
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	if cfg.DefaultPlan == "" {
		cfg.DefaultPlan = model.TierFree
	}
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}
	if deps.Locks == nil {
		deps.Locks = tenant.NewLocker()
	}
	return &Provisioner{Deps: deps, cfg: cfg}
}

// Provision creates the database of a registered tenant, applies the
// schema catalog, seeds it and creates its first administrator. The tenant
// is only marked ready in the registry when every step succeeded.
//
// A run whose required tables failed returns the result with a partial
// failure error. Cancelling ctx does not remove a database that was
// already created. Calling Provision again for a tenant that is still
// unassigned resumes in that database: tables and seeds are reapplied and
// an administrator or subscription that already exists is kept.
func (p *Provisioner) Provision(ctx context.Context, req Request) (*Result, error) {
	const op = "provision.Provision"
	start := p.Clock.Now()

	if err := req.Validate(); err != nil {
		p.observe("invalid", start)
		return nil, err
	}

	unlock, ok := p.Locks.TryLock(tenant.LockKey(req.TenantID))
	if !ok {
		p.observe("conflict", start)
		return nil, &errs.Error{Code: errs.EConflict, Op: op, TenantID: req.TenantID, Msg: "provisioning already in progress"}
	}
	defer unlock()

	log := p.Logger.WithFields(logrus.Fields{"tenant_id": req.TenantID, "op": op})
	res, err := p.provision(ctx, req, log)
	switch {
	case err == nil:
		p.observe("success", start)
		log.WithField("database", res.Database).Info("tenant provisioned")
	case errs.Is(err, errs.EPartialFailure):
		p.observe("partial", start)
	case errs.Is(err, errs.EConflict):
		p.observe("conflict", start)
	case errs.Is(err, errs.EInvalid):
		p.observe("invalid", start)
	default:
		p.observe("failed", start)
	}
	if err != nil {
		log.WithError(err).Error("tenant provisioning failed")
	}
	return res, err
}

func (p *Provisioner) provision(ctx context.Context, req Request, log logrus.FieldLogger) (*Result, error) {
	const op = "provision.Provision"
	id := req.TenantID

	var t *model.Tenant
	err := p.retry(ctx, func(ctx context.Context) error {
		var err error
		t, err = p.Registry.FindTenant(ctx, id)
		return err
	})
	if errs.Is(err, errs.ENotFound) {
		return nil, &errs.Error{Code: errs.EInvalid, Op: op, TenantID: id, Msg: "tenant is not registered"}
	}
	if err != nil {
		return nil, errs.Wrap(op, id, err)
	}
	if t.Status == model.TenantStatusDeleted || t.Status == model.TenantStatusCancelled {
		return nil, &errs.Error{Code: errs.EInvalid, Op: op, TenantID: id, Msg: fmt.Sprintf("tenant is %s", t.Status)}
	}
	if t.HasDatabase() {
		return nil, &errs.Error{Code: errs.EConflict, Op: op, TenantID: id, Msg: fmt.Sprintf("tenant already has database %s", t.Database())}
	}

	plan, err := p.plan(ctx, t)
	if err != nil {
		return nil, errs.Wrap(op, id, err)
	}

	name := db.TenantDatabaseName(p.cfg.DatabasePrefix, id)
	res := &Result{TenantID: id, Database: name, Version: schema.Version()}
	log = log.WithField("database", name)

	var exists bool
	err = p.retry(ctx, func(ctx context.Context) error {
		var err error
		exists, err = p.Cluster.DatabaseExists(ctx, name)
		return err
	})
	if err != nil {
		return nil, errs.Wrap(op, id, err)
	}
	if !exists {
		// Not retried: a timed out attempt may have been applied, and a
		// retry would then report the database as taken.
		_, err = p.withTimeout(ctx, func(ctx context.Context) (int64, error) {
			return 0, p.Cluster.CreateDatabase(ctx, name)
		})
		switch {
		case errs.Is(err, errs.EConflict):
			exists = true
		case err != nil:
			p.cleanup(name, log)
			p.audit(ctx, nil, req, res, err)
			return nil, errs.Wrap(op, id, err)
		default:
			log.Info("database created")
		}
	}
	if exists {
		res.Resumed = true
		log.Warn("resuming provisioning in existing database")
	}

	ts, err := p.Connector.Database(ctx, name)
	if err != nil {
		p.audit(ctx, nil, req, res, err)
		return res, errs.Wrap(op, id, err)
	}

	res.Tables = p.createTables(ctx, ts, log)
	for _, o := range res.Tables.Failed() {
		res.FailedTables = append(res.FailedTables, o.Table)
	}
	if failed := res.Tables.RequiredFailed(); len(failed) > 0 {
		err := &errs.Error{
			Code:     errs.EPartialFailure,
			Op:       op,
			TenantID: id,
			Msg:      fmt.Sprintf("%d required tables failed", len(failed)),
			Err:      failed.Err(),
		}
		p.audit(ctx, ts, req, res, err)
		return res, err
	}

	failed := map[string]bool{}
	for _, table := range res.FailedTables {
		failed[table] = true
	}
	for _, seed := range schema.DefaultSeeds() {
		if failed[seed.Table] {
			continue
		}
		n, err := p.withTimeout(ctx, func(ctx context.Context) (int64, error) { return ts.Seed(ctx, seed) })
		if err != nil {
			p.audit(ctx, ts, req, res, err)
			return res, errs.Wrap(op, id, fmt.Errorf("seed %s: %w", seed.Table, err))
		}
		res.SeededRows += n
	}

	if err := p.ensureAdmin(ctx, ts, req.Admin, res); err != nil {
		p.audit(ctx, ts, req, res, err)
		return res, errs.Wrap(op, id, err)
	}

	now := p.Clock.Now().UTC()
	trialEnds := now.AddDate(0, 0, p.cfg.TrialDays)
	if err := p.initialRows(ctx, ts, plan, now, trialEnds, res.Resumed); err != nil {
		p.audit(ctx, ts, req, res, err)
		return res, errs.Wrap(op, id, err)
	}

	if err := p.markReady(ctx, id, name, trialEnds, now); err != nil {
		p.audit(ctx, ts, req, res, err)
		return res, errs.Wrap(op, id, err)
	}

	res.Success = true
	p.audit(ctx, ts, req, res, nil)
	return res, nil
}

func (p *Provisioner) plan(ctx context.Context, t *model.Tenant) (*model.SubscriptionPlan, error) {
	var plan *model.SubscriptionPlan
	err := p.retry(ctx, func(ctx context.Context) error {
		var err error
		if t.PlanID > 0 {
			plan, err = p.Registry.FindPlan(ctx, t.PlanID)
		} else {
			plan, err = p.Registry.FindPlanByCode(ctx, p.cfg.DefaultPlan)
		}
		return err
	})
	return plan, err
}

// createTables applies every catalog table, continuing past failures.
func (p *Provisioner) createTables(ctx context.Context, ts store.TenantStore, log logrus.FieldLogger) schema.Outcomes {
	tables := schema.Tables()
	outcomes := make(schema.Outcomes, 0, len(tables))
	for _, table := range tables {
		_, err := p.withTimeout(ctx, func(ctx context.Context) (int64, error) {
			return 0, ts.CreateTable(ctx, table)
		})
		outcomes = append(outcomes, schema.Outcome{Table: table.Name, Required: table.Required, Err: err})
		if err != nil {
			if p.Metrics != nil {
				p.Metrics.ProvisionTableFailures.Inc()
			}
			log.WithError(err).WithFields(logrus.Fields{"table": table.Name, "required": table.Required}).Warn("failed to create table")
		}
	}
	return outcomes
}

// ensureAdmin creates the first administrator unless a resumed run finds
// one already there.
func (p *Provisioner) ensureAdmin(ctx context.Context, ts store.TenantStore, admin Admin, res *Result) error {
	if res.Resumed {
		n, err := p.withTimeout(ctx, func(ctx context.Context) (int64, error) {
			return ts.CountUsersWithRole(ctx, model.RoleSchoolAdmin)
		})
		if err != nil {
			return fmt.Errorf("count administrators: %w", err)
		}
		if n > 0 {
			return nil
		}
	}
	return p.createAdmin(ctx, ts, admin, res)
}

func (p *Provisioner) createAdmin(ctx context.Context, ts store.TenantStore, admin Admin, res *Result) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(admin.Password), p.cfg.BcryptCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	user := &model.User{
		Name:         admin.Name,
		Email:        admin.Email,
		Phone:        admin.Phone,
		PasswordHash: string(hash),
		Status:       "active",
		CreatedAt:    p.Clock.Now().UTC(),
	}
	ctx, cancel := db.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()
	if err := ts.CreateAdmin(ctx, user, model.RoleSchoolAdmin); err != nil {
		return fmt.Errorf("create administrator: %w", err)
	}
	res.AdminID = user.ID
	return nil
}

func (p *Provisioner) initialRows(ctx context.Context, ts store.TenantStore, plan *model.SubscriptionPlan, now, trialEnds time.Time, resumed bool) error {
	ctx, cancel := db.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	if err := ts.InitStorageUsage(ctx, quota.Limits(plan), now); err != nil {
		return fmt.Errorf("initialise storage usage: %w", err)
	}
	if resumed {
		n, err := ts.CountRows(ctx, "subscriptions")
		if err != nil {
			return fmt.Errorf("count subscriptions: %w", err)
		}
		if n > 0 {
			return nil
		}
	}
	sub := &model.Subscription{
		PlanCode:  p.cfg.DefaultPlan,
		Status:    "trial",
		StartedAt: now,
		EndsAt:    &trialEnds,
		CreatedAt: now,
	}
	if err := ts.CreateSubscription(ctx, sub); err != nil {
		return fmt.Errorf("create subscription: %w", err)
	}
	return nil
}

// markReady assigns the database in the registry. The write is guarded,
// so it is not retried: a timed out attempt may have been applied.
func (p *Provisioner) markReady(ctx context.Context, id int64, name string, trialEnds, now time.Time) error {
	ctx, cancel := db.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()
	if err := p.Registry.AssignDatabase(ctx, id, name, trialEnds); err != nil {
		return err
	}
	return p.Registry.StampMigration(ctx, id, schema.Version(), now)
}

// cleanup drops a database whose creation failed half way.
func (p *Provisioner) cleanup(name string, log logrus.FieldLogger) {
	ctx, cancel := db.WithTimeout(context.Background(), p.cfg.Timeout)
	defer cancel()
	if err := p.Cluster.DropDatabase(ctx, name); err != nil {
		log.WithError(err).Warn("failed to drop partially created database")
	}
}

func (p *Provisioner) audit(ctx context.Context, sink store.AuditStore, req Request, res *Result, err error) {
	event := audit.TenantProvisionedEvent{
		TenantID:     req.TenantID,
		Database:     res.Database,
		AdminEmail:   req.Admin.Email,
		ClientIP:     req.ClientIP,
		FailedTables: res.FailedTables,
		Success:      err == nil,
	}
	if err != nil {
		event.ErrorMessage = err.Error()
	}
	p.Recorder.Record(ctx, sink, event)
}

func (p *Provisioner) observe(result string, start time.Time) {
	if p.Metrics == nil {
		return
	}
	p.Metrics.ProvisionTotal.WithLabelValues(result).Inc()
	p.Metrics.ProvisionDuration.Observe(p.Clock.Since(start).Seconds())
}

func (p *Provisioner) retry(ctx context.Context, op func(context.Context) error) error {
	return db.Retry(ctx, p.cfg.RetryAttempts, p.cfg.RetryInterval, func(ctx context.Context) error {
		ctx, cancel := db.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
		return op(ctx)
	})
}

func (p *Provisioner) withTimeout(ctx context.Context, fn func(context.Context) (int64, error)) (int64, error) {
	ctx, cancel := db.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()
	return fn(ctx)
}
