package migrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doodlesbykumbi/schoolhost/pkg/audit"
	"github.com/doodlesbykumbi/schoolhost/pkg/errs"
	"github.com/doodlesbykumbi/schoolhost/pkg/logging"
	"github.com/doodlesbykumbi/schoolhost/pkg/model"
	"github.com/doodlesbykumbi/schoolhost/pkg/schema"
	"github.com/doodlesbykumbi/schoolhost/pkg/server/store/memory"
	"github.com/doodlesbykumbi/schoolhost/pkg/tenant"
)

type fixture struct {
	registry *memory.Registry
	cluster  *memory.Cluster
	locks    *tenant.Locker
	migrator *Migrator
}

func newFixture(t *testing.T, concurrency int) *fixture {
	t.Helper()
	f := &fixture{
		registry: memory.NewRegistry(),
		cluster:  memory.NewCluster(),
		locks:    tenant.NewLocker(),
	}
	for _, p := range memory.DefaultPlans() {
		f.registry.AddPlan(p)
	}
	clk := clock.NewMock()
	clk.Set(time.Date(2024, 9, 1, 8, 0, 0, 0, time.UTC))
	dir := tenant.NewDirectory(f.registry, f.cluster, tenant.RetryPolicy{Attempts: 1, Interval: time.Millisecond})
	recorder := audit.NewRecorder(audit.NewLogger(io.Discard), logging.Discard(), clk)
	f.migrator = New(Config{Concurrency: concurrency, RelaxIntegrity: true}, dir, f.locks, recorder, clk, logging.Discard(), nil)
	return f
}

// addTenant registers a tenant whose database exists but holds no tables.
func (f *fixture) addTenant(t *testing.T, id int64, status model.TenantStatus) *memory.Database {
	t.Helper()
	name := fmt.Sprintf("school_%d", id)
	require.NoError(t, f.cluster.CreateDatabase(context.Background(), name))
	_, err := f.registry.AddTenant(model.Tenant{
		ID:           id,
		Slug:         fmt.Sprintf("school-%d", id),
		Status:       status,
		PlanID:       1,
		DatabaseName: &name,
	})
	require.NoError(t, err)
	return f.cluster.Get(name)
}

func TestMigrate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1)
	database := f.addTenant(t, 7, model.TenantStatusActive)

	res, err := f.migrator.MigrateTenant(ctx, 7)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "school_7", res.Database)
	assert.EqualValues(t, schema.SeedRowCount(), res.SeededRows)
	assert.Empty(t, res.FailedTables)
	assert.Equal(t, 1, database.RelaxedRuns())

	tables, err := database.ListTables(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, schema.TableNames(), tables)

	tn, err := f.registry.FindTenant(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, schema.Version(), tn.MigrationVersion)
	require.NotNil(t, tn.MigratedAt)
	assert.Equal(t, time.Date(2024, 9, 1, 8, 0, 0, 0, time.UTC), tn.MigratedAt.UTC())

	logs := database.AuditLogs()
	require.Len(t, logs, 1)
	assert.Equal(t, "tenant-migrate", logs[0].Action)
}

func TestMigrateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1)
	database := f.addTenant(t, 7, model.TenantStatusTrial)

	_, err := f.migrator.MigrateTenant(ctx, 7)
	require.NoError(t, err)
	first, _ := database.ListTables(ctx)
	roles, _ := database.CountRows(ctx, "roles")

	res, err := f.migrator.MigrateTenant(ctx, 7)
	require.NoError(t, err)
	assert.Zero(t, res.SeededRows)

	second, _ := database.ListTables(ctx)
	assert.Equal(t, first, second)
	again, _ := database.CountRows(ctx, "roles")
	assert.Equal(t, roles, again)
	assert.EqualValues(t, 7, again)
}

func TestMigrateRestoresMissingTable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1)
	database := f.addTenant(t, 7, model.TenantStatusActive)

	_, err := f.migrator.MigrateTenant(ctx, 7)
	require.NoError(t, err)
	database.DropTable("feature_flags")
	database.DropTable("grading_scales")

	res, err := f.migrator.MigrateTenant(ctx, 7)
	require.NoError(t, err)
	assert.True(t, database.HasColumn("feature_flags", "flag_key"))
	assert.EqualValues(t, 6, res.SeededRows)
}

func TestMigrateTableFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1)
	database := f.addTenant(t, 7, model.TenantStatusActive)
	database.FailTable("events", errors.New("lock timeout"))

	res, err := f.migrator.MigrateTenant(ctx, 7)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.EPartialFailure))
	assert.False(t, res.Success)
	assert.Equal(t, []string{"events"}, res.FailedTables)
	assert.Contains(t, res.Error, "events")

	tables, _ := database.ListTables(ctx)
	assert.Len(t, tables, len(schema.TableNames())-1)

	tn, _ := f.registry.FindTenant(ctx, 7)
	assert.Zero(t, tn.MigrationVersion)
	assert.Nil(t, tn.MigratedAt)
}

func TestMigrateRejectsTenant(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1)
	f.addTenant(t, 7, model.TenantStatusCancelled)
	_, err := f.registry.AddTenant(model.Tenant{ID: 8, Slug: "fresh", Status: model.TenantStatusPending})
	require.NoError(t, err)

	_, err = f.migrator.MigrateTenant(ctx, 7)
	assert.True(t, errs.Is(err, errs.EInvalid))

	_, err = f.migrator.MigrateTenant(ctx, 8)
	assert.True(t, errs.Is(err, errs.ENotFound))

	_, err = f.migrator.MigrateTenant(ctx, 99)
	assert.True(t, errs.Is(err, errs.ENotFound))
}

func TestMigrateWaitsForTenantLock(t *testing.T) {
	f := newFixture(t, 1)
	f.addTenant(t, 7, model.TenantStatusActive)

	unlock := f.locks.Lock(tenant.LockKey(7))
	done := make(chan error, 1)
	go func() {
		_, err := f.migrator.MigrateTenant(context.Background(), 7)
		done <- err
	}()

	select {
	case <-done:
		t.Fatal("migration ran while the tenant lock was held")
	case <-time.After(50 * time.Millisecond):
	}
	unlock()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("migration did not finish after the lock was released")
	}
}

func TestMigrateAll(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 2)
	for id := int64(1); id <= 5; id++ {
		f.addTenant(t, id, model.TenantStatusActive)
	}
	f.addTenant(t, 6, model.TenantStatusCancelled)
	f.cluster.Get("school_3").SetUnavailable(&errs.Error{Code: errs.EUnavailable, Msg: "connection reset"})

	summary, err := f.migrator.MigrateAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, summary.Migrated)
	assert.Equal(t, 1, summary.Failed)
	require.Len(t, summary.Results, 5)
	for _, r := range summary.Results {
		assert.Equal(t, r.TenantID != 3, r.Success, "tenant %d", r.TenantID)
	}

	tables, _ := f.cluster.Get("school_6").ListTables(ctx)
	assert.Empty(t, tables)
}

func TestMigrateAllRegistryDown(t *testing.T) {
	f := newFixture(t, 2)
	f.registry.SetUnavailable(&errs.Error{Code: errs.EUnavailable, Msg: "registry down"})

	summary, err := f.migrator.MigrateAll(context.Background())
	assert.Nil(t, summary)
	assert.True(t, errs.Is(err, errs.EUnavailable))
}
