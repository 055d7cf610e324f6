// Package server provides the HTTP server of the tenancy core.
//
// The Server struct holds the gorilla/mux router and the components the
// endpoints call. Every request passes the request id, metrics and,
// when enabled, the global per-address rate limit middleware. Access
// logs are written in combined log format to the logrus writer.
//
// # Endpoints
//
// API endpoints are registered via the endpoints subpackage:
//
//	endpoints.RegisterAll(srv)
//
// Admin routes require a bearer token issued with the admin secret:
//
//   - POST /tenants/{id}/provision - create the tenant database
//   - POST /tenants/{id}/migrate - upgrade one tenant database
//   - POST /tenants/migrate - upgrade every tenant database
//   - DELETE /tenants/{id}/database - drop a cancelled tenant's database
//   - GET|POST /tenants/{id}/quota/{category} - check or record usage
//   - POST /tenants/{id}/ratelimit - consult the rate limiter
//   - PUT /sessions/{sid} - bind a session to a tenant
//
// Public routes:
//
//   - GET /api/tenant - the tenant resolved for the request
//   - GET /, /healthz, /metrics
package server
