package tenant

import (
	"context"
	"time"

	"github.com/doodlesbykumbi/schoolhost/pkg/db"
	"github.com/doodlesbykumbi/schoolhost/pkg/errs"
	"github.com/doodlesbykumbi/schoolhost/pkg/model"
	"github.com/doodlesbykumbi/schoolhost/pkg/server/store"
)

// RetryPolicy bounds registry lookups.
type RetryPolicy struct {
	Timeout  time.Duration
	Attempts int
	Interval time.Duration
}

// Directory looks tenants up in the registry and hands out the store of
// their database.
type Directory struct {
	registry    store.RegistryStore
	connector   store.Connector
	policy      RetryPolicy
	defaultPlan string
}

// NewDirectory creates a new Directory
func NewDirectory(registry store.RegistryStore, connector store.Connector, policy RetryPolicy) *Directory {
	return &Directory{registry: registry, connector: connector, policy: policy}
}

// WithDefaultPlan sets the plan code used for tenants without a plan.
func (d *Directory) WithDefaultPlan(code string) *Directory {
	d.defaultPlan = code
	return d
}

// Registry returns the underlying registry store.
func (d *Directory) Registry() store.RegistryStore {
	return d.registry
}

// Tenant returns the tenant with the given id. Deleted tenants are not
// found.
func (d *Directory) Tenant(ctx context.Context, tenantID int64) (*model.Tenant, error) {
	var t *model.Tenant
	err := d.retry(ctx, func(ctx context.Context) error {
		var err error
		t, err = d.registry.FindTenant(ctx, tenantID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if t.Status == model.TenantStatusDeleted {
		return nil, errs.NotFound("tenant.Directory", "tenant %d is deleted", tenantID)
	}
	return t, nil
}

// Plan returns the subscription plan of t, or the default plan when t has
// none.
func (d *Directory) Plan(ctx context.Context, t *model.Tenant) (*model.SubscriptionPlan, error) {
	if t.PlanID <= 0 && d.defaultPlan == "" {
		return nil, errs.NotFound("tenant.Directory", "tenant %d has no plan", t.ID)
	}
	var plan *model.SubscriptionPlan
	err := d.retry(ctx, func(ctx context.Context) error {
		var err error
		if t.PlanID > 0 {
			plan, err = d.registry.FindPlan(ctx, t.PlanID)
		} else {
			plan, err = d.registry.FindPlanByCode(ctx, d.defaultPlan)
		}
		return err
	})
	return plan, err
}

// Open returns the tenant and the store of its database. Tenants without
// an assigned database are not found.
func (d *Directory) Open(ctx context.Context, tenantID int64) (*model.Tenant, store.TenantStore, error) {
	t, err := d.Tenant(ctx, tenantID)
	if err != nil {
		return nil, nil, err
	}
	ts, err := d.Database(ctx, t)
	if err != nil {
		return nil, nil, err
	}
	return t, ts, nil
}

// Database returns the store of t's database.
func (d *Directory) Database(ctx context.Context, t *model.Tenant) (store.TenantStore, error) {
	if !t.HasDatabase() {
		return nil, errs.NotFound("tenant.Directory", "tenant %d has no database", t.ID)
	}
	return d.connector.Database(ctx, t.Database())
}

func (d *Directory) retry(ctx context.Context, op func(context.Context) error) error {
	return db.Retry(ctx, d.policy.Attempts, d.policy.Interval, func(ctx context.Context) error {
		ctx, cancel := db.WithTimeout(ctx, d.policy.Timeout)
		defer cancel()
		return op(ctx)
	})
}
