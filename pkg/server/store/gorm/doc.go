// Package gorm provides GORM-based implementations of the store interfaces
// defined in the parent store package.
//
// RegistryStore works on the shared platform registry. TenantStore works
// on one tenant database and is handed out by Connector, which sits on a
// per-database connection cache. Driver errors are classified into
// *errs.Error values before they leave this package.
package gorm
