// Command schoolctl runs and administers the school platform tenancy core.
//
// The tenancy core gives every school its own PostgreSQL database. It
// provisions those databases from a versioned schema catalog, keeps them
// migrated, tracks per-category storage quotas and enforces per-tenant
// API rate limits. Requests are mapped to a tenant by subdomain, URL path
// prefix or session.
//
// # Architecture
//
//   - pkg/schema: the versioned catalog of tenant tables and seed rows
//   - pkg/provision: creates and drops tenant databases
//   - pkg/migrator: brings tenant databases up to the catalog version
//   - pkg/quota: storage usage accounting and threshold alerts
//   - pkg/ratelimit: sliding window limiter mirrored to tenant databases
//   - pkg/tenant: tenant resolution, session binding and per-tenant locks
//   - pkg/server: HTTP server, middleware and endpoints
//   - pkg/app: wires the components from a Config
//
// # Quick Start
//
//	# Create the registry schema and plan catalog
//	schoolctl db migrate
//
//	# Start the server
//	schoolctl server
//
//	# Provision a pending tenant
//	schoolctl tenant provision 42 --name "Ada Admin" --email ada@example.org \
//	    --phone +15550100 --password-stdin < password.txt
//
// # Environment Variables
//
//   - DATABASE_URL: registry PostgreSQL connection string
//   - ADMIN_DATABASE_URL: connection used to create and drop tenant databases
//   - SCHOOLHOST_BASE_DOMAIN: domain tenant subdomains hang off
//   - SCHOOLHOST_ADMIN_TOKEN_SECRET: HS256 secret of the admin API
//   - SCHOOLHOST_LOG_LEVEL: log level (debug, info, warn, error)
//   - REDIS_URL: redis for sessions and the global rate limit
//   - PORT: server port (default: 8000)
package main
