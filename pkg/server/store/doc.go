// Package store provides storage abstractions for the tenancy core.
//
// This package defines interfaces for database operations, allowing the
// provisioner, migrator, quota tracker and HTTP endpoints to be decoupled
// from the specific database implementation. This enables easier testing
// with mocks and an in-memory backend.
//
// # Available Stores
//
//   - RegistryStore: tenants and subscription plans in the shared registry
//   - Cluster: CREATE/DROP DATABASE on the hosting server
//   - Connector: hands out the TenantStore of a tenant database
//   - TenantStore: schema, provisioning, usage, alerts, rate limit mirror
//     and audit logs of one tenant database
//
// # Implementations
//
//   - store/gorm: postgres through GORM
//   - store/memory: maps guarded by a mutex, for tests and local runs
//
// # Errors
//
// Implementations return *errs.Error values so callers can branch on
// errs.ENotFound, errs.EConflict or errs.EUnavailable:
//
//	tenant, err := registry.FindTenant(ctx, 42)
//	if errs.Is(err, errs.ENotFound) {
//	    // Handle not found
//	}
package store
