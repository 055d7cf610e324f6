package store

import (
	"context"
	"time"

	"github.com/doodlesbykumbi/schoolhost/pkg/model"
)

// RegistryStore abstracts the shared platform registry: tenants and the
// subscription plan catalog.
type RegistryStore interface {
	HealthStore

	// FindTenant returns the tenant with the given id, including deleted ones.
	FindTenant(ctx context.Context, id int64) (*model.Tenant, error)

	// FindTenantBySlug returns the non-deleted tenant with the given slug.
	FindTenantBySlug(ctx context.Context, slug string) (*model.Tenant, error)

	// ListMigratableTenants returns tenants that have a database and a
	// migratable status, ordered by id.
	ListMigratableTenants(ctx context.Context) ([]model.Tenant, error)

	// AssignDatabase records the tenant's database name. The write only
	// succeeds while no name is assigned; otherwise it fails with a conflict.
	// A pending tenant moves to trial, ending at trialEndsAt.
	AssignDatabase(ctx context.Context, tenantID int64, name string, trialEndsAt time.Time) error

	// StampMigration records the schema version the tenant database is at.
	StampMigration(ctx context.Context, tenantID int64, version int, at time.Time) error

	// UpdateStatus changes the tenant's lifecycle status.
	UpdateStatus(ctx context.Context, tenantID int64, status model.TenantStatus) error

	FindPlan(ctx context.Context, id int64) (*model.SubscriptionPlan, error)
	FindPlanByCode(ctx context.Context, code string) (*model.SubscriptionPlan, error)
}
