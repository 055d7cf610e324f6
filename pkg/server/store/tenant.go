package store

import (
	"context"
	"time"

	"github.com/doodlesbykumbi/schoolhost/pkg/model"
	"github.com/doodlesbykumbi/schoolhost/pkg/schema"
)

// Connector hands out the store of a tenant database by name.
type Connector interface {
	Database(ctx context.Context, name string) (TenantStore, error)
}

// TenantStore is every operation run against one tenant database.
type TenantStore interface {
	HealthStore
	SchemaStore
	ProvisionStore
	UsageStore
	AlertStore
	RateLimitStore
	AuditStore

	// Name returns the database name.
	Name() string
}

// SchemaStore applies catalog tables and seeds.
type SchemaStore interface {
	// ListTables returns the tables present in the database.
	ListTables(ctx context.Context) ([]string, error)

	// CreateTable creates the table and its indexes if absent.
	CreateTable(ctx context.Context, table schema.Table) error

	// UpgradeTable creates the table if absent, then adds missing columns
	// and indexes.
	UpgradeTable(ctx context.Context, table schema.Table) error

	// Seed inserts the seed rows that are absent and returns how many were
	// inserted.
	Seed(ctx context.Context, seed schema.Seed) (int64, error)

	CountRows(ctx context.Context, table string) (int64, error)

	// WithSchemaLock runs fn in a single transaction holding the
	// database's schema lock. When relaxIntegrity is set, foreign key
	// enforcement is off until the transaction ends.
	WithSchemaLock(ctx context.Context, relaxIntegrity bool, fn func(SchemaStore) error) error
}

// ProvisionStore writes the rows a fresh tenant database starts with.
type ProvisionStore interface {
	// CreateAdmin inserts user bound to the named role and sets user.ID.
	CreateAdmin(ctx context.Context, user *model.User, roleName string) error

	CountUsersWithRole(ctx context.Context, roleName string) (int64, error)

	// InitStorageUsage inserts one zeroed usage row per category. Existing
	// rows are left alone.
	InitStorageUsage(ctx context.Context, limits map[model.StorageCategory]int64, at time.Time) error

	CreateSubscription(ctx context.Context, sub *model.Subscription) error
}

// UsageStore reads and updates storage usage counters.
type UsageStore interface {
	// HasUsageTable reports whether the database predates quota tracking.
	HasUsageTable(ctx context.Context) (bool, error)

	// Usage returns the counter of one category.
	Usage(ctx context.Context, category model.StorageCategory) (*model.StorageUsage, error)

	AllUsage(ctx context.Context) ([]model.StorageUsage, error)

	// AddUsage applies delta to the category counter in one statement,
	// clamping at zero and refreshing limit_bytes and last_calculated. A
	// positive delta is only applied while the result stays within limit
	// (limit <= 0 means unlimited). It reports whether the delta was
	// applied and returns the counter after the call.
	AddUsage(ctx context.Context, category model.StorageCategory, delta, limit int64, at time.Time) (bool, *model.StorageUsage, error)
}

// AlertStore manages system alerts. Alerts are resolved, never deleted.
type AlertStore interface {
	// OpenAlert returns the newest unresolved alert of the type and
	// severity, or nil.
	OpenAlert(ctx context.Context, alertType, severity string) (*model.SystemAlert, error)

	RaiseAlert(ctx context.Context, alert *model.SystemAlert) error

	// ResolveAlerts resolves every open alert of the type.
	ResolveAlerts(ctx context.Context, alertType string, at time.Time) (int64, error)
}

// RateLimitStore persists the mirror of in-memory rate limit windows.
type RateLimitStore interface {
	// SaveRateLimit upserts the record keyed by endpoint and client.
	SaveRateLimit(ctx context.Context, record model.RateLimitRecord) error

	// LoadRateLimits returns the records whose window is still open at now.
	LoadRateLimits(ctx context.Context, now time.Time) ([]model.RateLimitRecord, error)
}

// AuditStore appends audit and security log entries.
type AuditStore interface {
	SaveAuditLog(ctx context.Context, entry *model.AuditLog) error
	SaveSecurityLog(ctx context.Context, entry *model.SecurityLog) error
}
