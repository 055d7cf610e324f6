// Package tenant resolves requests to tenants and holds the process wide
// per-tenant state: the lookup cache, the database handle cache and the
// keyed locks serializing provisioning and migrations.
//
// Resolution order is subdomain, then first path segment, then the tenant
// bound to the client session. Deleted tenants never resolve.
package tenant
