// Package model defines the GORM models of the platform registry and of
// the operational tables every tenant database carries.
//
// # Registry Models
//
//   - Tenant: a school, its lifecycle status and its assigned database
//   - SubscriptionPlan: plan catalog with the storage allowance in megabytes
//
// # Tenant Database Models
//
//   - StorageUsage: used and limit bytes per storage category
//   - SystemAlert: quota threshold alerts
//   - RateLimitRecord: persisted mirror of in-memory rate limit windows
//   - AuditLog, SecurityLog: append-only event records
//   - Role, User, Subscription: rows written during provisioning
//
// Column names here must match the schema package; both are the wire
// contract across the migration boundary.
package model
