package gorm

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/doodlesbykumbi/schoolhost/pkg/errs"
	"github.com/doodlesbykumbi/schoolhost/pkg/model"
	"github.com/doodlesbykumbi/schoolhost/pkg/server/store"
)

// Ensure RegistryStore implements store.RegistryStore
var _ store.RegistryStore = (*RegistryStore)(nil)

// RegistryStore implements store.RegistryStore using GORM
type RegistryStore struct {
	*HealthStore
	db *gorm.DB
}

// NewRegistryStore creates a new RegistryStore
func NewRegistryStore(db *gorm.DB) *RegistryStore {
	return &RegistryStore{HealthStore: NewHealthStore(db), db: db}
}

func (s *RegistryStore) FindTenant(ctx context.Context, id int64) (*model.Tenant, error) {
	var tenant model.Tenant
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&tenant).Error; err != nil {
		return nil, lookupError("registry.FindTenant", err, "tenant %d not found", id)
	}
	return &tenant, nil
}

func (s *RegistryStore) FindTenantBySlug(ctx context.Context, slug string) (*model.Tenant, error) {
	var tenant model.Tenant
	err := s.db.WithContext(ctx).
		Where("slug = ? AND status <> ?", slug, model.TenantStatusDeleted.String()).
		First(&tenant).Error
	if err != nil {
		return nil, lookupError("registry.FindTenantBySlug", err, "tenant %q not found", slug)
	}
	return &tenant, nil
}

func (s *RegistryStore) ListMigratableTenants(ctx context.Context) ([]model.Tenant, error) {
	statuses := make([]string, 0, 3)
	for _, st := range model.MigratableStatuses() {
		statuses = append(statuses, st.String())
	}

	var tenants []model.Tenant
	err := s.db.WithContext(ctx).
		Where("database_name IS NOT NULL AND status IN ?", statuses).
		Order("id").
		Find(&tenants).Error
	if err != nil {
		return nil, errs.Classify("registry.ListMigratableTenants", err)
	}
	return tenants, nil
}

func (s *RegistryStore) AssignDatabase(ctx context.Context, tenantID int64, name string, trialEndsAt time.Time) error {
	const op = "registry.AssignDatabase"
	pending, trial := model.TenantStatusPending.String(), model.TenantStatusTrial.String()

	res := s.db.WithContext(ctx).Exec(`
		UPDATE tenants
		SET database_name = ?,
		    trial_ends_at = CASE WHEN status = ? THEN ? ELSE trial_ends_at END,
		    status = CASE WHEN status = ? THEN ? ELSE status END,
		    updated_at = now()
		WHERE id = ? AND database_name IS NULL
	`, name, pending, trialEndsAt, pending, trial, tenantID)
	if res.Error != nil {
		return errs.Wrap(op, tenantID, res.Error)
	}
	if res.RowsAffected == 0 {
		return &errs.Error{Code: errs.EConflict, Op: op, TenantID: tenantID, Msg: "database already assigned"}
	}
	return nil
}

func (s *RegistryStore) StampMigration(ctx context.Context, tenantID int64, version int, at time.Time) error {
	res := s.db.WithContext(ctx).Exec(
		`UPDATE tenants SET migration_version = ?, migrated_at = ?, updated_at = now() WHERE id = ?`,
		version, at, tenantID,
	)
	if res.Error != nil {
		return errs.Wrap("registry.StampMigration", tenantID, res.Error)
	}
	if res.RowsAffected == 0 {
		return errs.NotFound("registry.StampMigration", "tenant %d not found", tenantID)
	}
	return nil
}

func (s *RegistryStore) UpdateStatus(ctx context.Context, tenantID int64, status model.TenantStatus) error {
	res := s.db.WithContext(ctx).Exec(
		`UPDATE tenants SET status = ?, updated_at = now() WHERE id = ?`,
		status.String(), tenantID,
	)
	if res.Error != nil {
		return errs.Wrap("registry.UpdateStatus", tenantID, res.Error)
	}
	if res.RowsAffected == 0 {
		return errs.NotFound("registry.UpdateStatus", "tenant %d not found", tenantID)
	}
	return nil
}

func (s *RegistryStore) FindPlan(ctx context.Context, id int64) (*model.SubscriptionPlan, error) {
	var plan model.SubscriptionPlan
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&plan).Error; err != nil {
		return nil, lookupError("registry.FindPlan", err, "plan %d not found", id)
	}
	return &plan, nil
}

func (s *RegistryStore) FindPlanByCode(ctx context.Context, code string) (*model.SubscriptionPlan, error) {
	var plan model.SubscriptionPlan
	if err := s.db.WithContext(ctx).Where("code = ?", code).First(&plan).Error; err != nil {
		return nil, lookupError("registry.FindPlanByCode", err, "plan %q not found", code)
	}
	return &plan, nil
}
