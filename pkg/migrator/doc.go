// Package migrator brings existing tenant databases up to the current
// schema catalog.
//
// A migration of one tenant runs inside the database's schema lock: absent
// tables are created, missing columns and indexes are added and the default
// seed rows are inserted where absent. Running it twice leaves the
// database unchanged. The registry is stamped with the catalog version
// only when every table applied.
//
// MigrateAll fans the per-tenant migrations out over a bounded worker
// pool. A failing tenant never stops the others.
package migrator
