package model

import "time"

//go:generate go run github.com/dmarkham/enumer -type TenantStatus -trimprefix TenantStatus -transform lower -json -sql -yaml -output tenant_status.gen.go

// TenantStatus is the lifecycle state of a tenant in the platform registry.
type TenantStatus int

const (
	TenantStatusPending TenantStatus = iota
	TenantStatusTrial
	TenantStatusActive
	TenantStatusSuspended
	TenantStatusCancelled
	TenantStatusDeleted
)

// Migratable reports whether tenants in this state take part in batch
// migrations. Pending tenants have no database yet and cancelled or
// deleted ones are frozen.
func (s TenantStatus) Migratable() bool {
	switch s {
	case TenantStatusTrial, TenantStatusActive, TenantStatusSuspended:
		return true
	}
	return false
}

// MigratableStatuses lists the statuses for which Migratable is true.
func MigratableStatuses() []TenantStatus {
	return []TenantStatus{TenantStatusTrial, TenantStatusActive, TenantStatusSuspended}
}

// Tenant is a school registered on the platform.
type Tenant struct {
	ID     int64        `gorm:"column:id;primaryKey" json:"id"`
	Slug   string       `gorm:"column:slug" json:"slug"`
	Name   string       `gorm:"column:name" json:"name"`
	Status TenantStatus `gorm:"column:status" json:"status"`
	// DatabaseName is written once, when provisioning completes.
	DatabaseName     *string    `gorm:"column:database_name" json:"database_name,omitempty"`
	PlanID           int64      `gorm:"column:plan_id" json:"plan_id"`
	TrialEndsAt      *time.Time `gorm:"column:trial_ends_at" json:"trial_ends_at,omitempty"`
	MigrationVersion int        `gorm:"column:migration_version" json:"migration_version"`
	MigratedAt       *time.Time `gorm:"column:migrated_at" json:"migrated_at,omitempty"`
	CreatedAt        time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Tenant) TableName() string {
	return "tenants"
}

// HasDatabase reports whether a database has been assigned.
func (t Tenant) HasDatabase() bool {
	return t.DatabaseName != nil && *t.DatabaseName != ""
}

// Database returns the assigned database name or "".
func (t Tenant) Database() string {
	if t.DatabaseName == nil {
		return ""
	}
	return *t.DatabaseName
}
