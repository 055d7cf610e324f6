package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTenantStatusCodecs(t *testing.T) {
	data, err := json.Marshal(TenantStatusSuspended)
	require.NoError(t, err)
	assert.Equal(t, `"suspended"`, string(data))

	var s TenantStatus
	require.NoError(t, json.Unmarshal([]byte(`"TRIAL"`), &s))
	assert.Equal(t, TenantStatusTrial, s)

	v, err := TenantStatusDeleted.Value()
	require.NoError(t, err)
	assert.Equal(t, "deleted", v)

	require.NoError(t, s.Scan([]byte("active")))
	assert.Equal(t, TenantStatusActive, s)
	assert.Error(t, s.Scan("archived"))
}

func TestTenantStatusMigratable(t *testing.T) {
	for _, s := range TenantStatusValues() {
		want := s == TenantStatusTrial || s == TenantStatusActive || s == TenantStatusSuspended
		assert.Equal(t, want, s.Migratable(), s.String())
	}
	assert.Len(t, MigratableStatuses(), 3)
}

func TestTenantDatabase(t *testing.T) {
	var tenant Tenant
	assert.False(t, tenant.HasDatabase())
	assert.Equal(t, "", tenant.Database())

	name := "school_42"
	tenant.DatabaseName = &name
	assert.True(t, tenant.HasDatabase())
	assert.Equal(t, "school_42", tenant.Database())
}

func TestStorageCategory(t *testing.T) {
	assert.Len(t, Categories(), 4)
	assert.True(t, CategoryFiles.Concrete())
	assert.False(t, CategoryTotal.Concrete())
	assert.True(t, CategoryTotal.Valid())
	assert.False(t, StorageCategory("videos").Valid())
}

func TestStorageLimitBytes(t *testing.T) {
	plan := SubscriptionPlan{StorageLimitMB: 500}
	assert.EqualValues(t, 500*1024*1024, plan.StorageLimitBytes())
}
