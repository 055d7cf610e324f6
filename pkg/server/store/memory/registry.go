package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/doodlesbykumbi/schoolhost/pkg/errs"
	"github.com/doodlesbykumbi/schoolhost/pkg/model"
	"github.com/doodlesbykumbi/schoolhost/pkg/server/store"
)

var _ store.RegistryStore = (*Registry)(nil)

// Registry implements store.RegistryStore in memory.
type Registry struct {
	mu        sync.RWMutex
	tenants   map[int64]*model.Tenant
	plans     map[int64]*model.SubscriptionPlan
	nextID    int64
	down      error
	assignErr error
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tenants: map[int64]*model.Tenant{},
		plans:   map[int64]*model.SubscriptionPlan{},
	}
}

// DefaultPlans mirrors the plan catalog seeded by the registry migrations.
func DefaultPlans() []model.SubscriptionPlan {
	return []model.SubscriptionPlan{
		{ID: 1, Code: "free", Name: "Free", Tier: model.TierFree, StorageLimitMB: 500, APIRateLimit: 60, APIRateWindowSeconds: 60},
		{ID: 2, Code: "starter", Name: "Starter", Tier: model.TierStarter, StorageLimitMB: 2048, APIRateLimit: 300, APIRateWindowSeconds: 60, PriceCents: 2900},
		{ID: 3, Code: "professional", Name: "Professional", Tier: model.TierProfessional, StorageLimitMB: 10240, APIRateLimit: 1200, APIRateWindowSeconds: 60, PriceCents: 9900},
		{ID: 4, Code: "enterprise", Name: "Enterprise", Tier: model.TierEnterprise, StorageLimitMB: 51200, APIRateLimit: 6000, APIRateWindowSeconds: 60, PriceCents: 29900},
	}
}

// AddPlan stores plan, replacing any plan with the same id.
func (r *Registry) AddPlan(plan model.SubscriptionPlan) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := plan
	r.plans[p.ID] = &p
}

// AddTenant registers tenant. A zero id is assigned the next free one.
// Slugs are unique among non-deleted tenants.
func (r *Registry) AddTenant(tenant model.Tenant) (*model.Tenant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if tenant.Status != model.TenantStatusDeleted {
		for _, existing := range r.tenants {
			if existing.Slug == tenant.Slug && existing.Status != model.TenantStatusDeleted {
				return nil, errs.Conflict("registry.AddTenant", "slug %q is taken", tenant.Slug)
			}
		}
	}
	if tenant.ID == 0 {
		r.nextID++
		tenant.ID = r.nextID
	} else if tenant.ID > r.nextID {
		r.nextID = tenant.ID
	}
	if _, ok := r.tenants[tenant.ID]; ok {
		return nil, errs.Conflict("registry.AddTenant", "tenant %d exists", tenant.ID)
	}
	now := time.Now()
	if tenant.CreatedAt.IsZero() {
		tenant.CreatedAt = now
	}
	tenant.UpdatedAt = now

	t := tenant
	r.tenants[t.ID] = &t
	out := t
	return &out, nil
}

// SetUnavailable makes every call fail with err until it is called with nil.
func (r *Registry) SetUnavailable(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.down = err
}

// FailAssign makes AssignDatabase fail with err until it is called with
// nil.
func (r *Registry) FailAssign(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assignErr = err
}

func (r *Registry) CheckConnectivity(ctx context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.down
}

func (r *Registry) FindTenant(ctx context.Context, id int64) (*model.Tenant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.down != nil {
		return nil, r.down
	}
	t, ok := r.tenants[id]
	if !ok {
		return nil, errs.NotFound("registry.FindTenant", "tenant %d not found", id)
	}
	out := *t
	return &out, nil
}

func (r *Registry) FindTenantBySlug(ctx context.Context, slug string) (*model.Tenant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.down != nil {
		return nil, r.down
	}
	for _, t := range r.tenants {
		if t.Slug == slug && t.Status != model.TenantStatusDeleted {
			out := *t
			return &out, nil
		}
	}
	return nil, errs.NotFound("registry.FindTenantBySlug", "tenant %q not found", slug)
}

func (r *Registry) ListMigratableTenants(ctx context.Context) ([]model.Tenant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.down != nil {
		return nil, r.down
	}
	var out []model.Tenant
	for _, t := range r.tenants {
		if t.HasDatabase() && t.Status.Migratable() {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *Registry) AssignDatabase(ctx context.Context, tenantID int64, name string, trialEndsAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.down != nil {
		return r.down
	}
	if r.assignErr != nil {
		return r.assignErr
	}
	t, ok := r.tenants[tenantID]
	if !ok || t.HasDatabase() {
		return &errs.Error{Code: errs.EConflict, Op: "registry.AssignDatabase", TenantID: tenantID, Msg: "database already assigned"}
	}
	n := name
	t.DatabaseName = &n
	if t.Status == model.TenantStatusPending {
		t.Status = model.TenantStatusTrial
		ends := trialEndsAt
		t.TrialEndsAt = &ends
	}
	t.UpdatedAt = time.Now()
	return nil
}

func (r *Registry) StampMigration(ctx context.Context, tenantID int64, version int, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.down != nil {
		return r.down
	}
	t, ok := r.tenants[tenantID]
	if !ok {
		return errs.NotFound("registry.StampMigration", "tenant %d not found", tenantID)
	}
	stamped := at
	t.MigrationVersion = version
	t.MigratedAt = &stamped
	return nil
}

func (r *Registry) UpdateStatus(ctx context.Context, tenantID int64, status model.TenantStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.down != nil {
		return r.down
	}
	t, ok := r.tenants[tenantID]
	if !ok {
		return errs.NotFound("registry.UpdateStatus", "tenant %d not found", tenantID)
	}
	t.Status = status
	t.UpdatedAt = time.Now()
	return nil
}

func (r *Registry) FindPlan(ctx context.Context, id int64) (*model.SubscriptionPlan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.down != nil {
		return nil, r.down
	}
	p, ok := r.plans[id]
	if !ok {
		return nil, errs.NotFound("registry.FindPlan", "plan %d not found", id)
	}
	out := *p
	return &out, nil
}

func (r *Registry) FindPlanByCode(ctx context.Context, code string) (*model.SubscriptionPlan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.down != nil {
		return nil, r.down
	}
	for _, p := range r.plans {
		if p.Code == code {
			out := *p
			return &out, nil
		}
	}
	return nil, errs.NotFound("registry.FindPlanByCode", "plan %q not found", code)
}
