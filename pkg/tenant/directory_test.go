package tenant

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doodlesbykumbi/schoolhost/pkg/errs"
	"github.com/doodlesbykumbi/schoolhost/pkg/model"
	"github.com/doodlesbykumbi/schoolhost/pkg/server/store/memory"
)

func TestDirectory(t *testing.T) {
	ctx := context.Background()
	registry := memory.NewRegistry()
	for _, p := range memory.DefaultPlans() {
		registry.AddPlan(p)
	}
	cluster := memory.NewCluster()
	require.NoError(t, cluster.CreateDatabase(ctx, "school_1"))

	name := "school_1"
	for _, tenant := range []model.Tenant{
		{ID: 1, Slug: "one", Status: model.TenantStatusActive, PlanID: 2, DatabaseName: &name},
		{ID: 2, Slug: "two", Status: model.TenantStatusPending, PlanID: 1},
		{ID: 3, Slug: "three", Status: model.TenantStatusDeleted, PlanID: 1, DatabaseName: &name},
	} {
		_, err := registry.AddTenant(tenant)
		require.NoError(t, err)
	}
	dir := NewDirectory(registry, cluster, RetryPolicy{})

	tenant, ts, err := dir.Open(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "school_1", ts.Name())

	plan, err := dir.Plan(ctx, tenant)
	require.NoError(t, err)
	assert.Equal(t, "starter", plan.Code)

	_, _, err = dir.Open(ctx, 2)
	assert.True(t, errs.Is(err, errs.ENotFound))
	_, _, err = dir.Open(ctx, 3)
	assert.True(t, errs.Is(err, errs.ENotFound))
	_, _, err = dir.Open(ctx, 404)
	assert.True(t, errs.Is(err, errs.ENotFound))
}

func TestDirectoryDefaultPlan(t *testing.T) {
	ctx := context.Background()
	registry := memory.NewRegistry()
	for _, p := range memory.DefaultPlans() {
		registry.AddPlan(p)
	}
	planless := &model.Tenant{ID: 7, Slug: "planless"}

	_, err := NewDirectory(registry, memory.NewCluster(), RetryPolicy{}).Plan(ctx, planless)
	assert.True(t, errs.Is(err, errs.ENotFound))

	plan, err := NewDirectory(registry, memory.NewCluster(), RetryPolicy{}).WithDefaultPlan("free").Plan(ctx, planless)
	require.NoError(t, err)
	assert.Equal(t, "free", plan.Code)
}
