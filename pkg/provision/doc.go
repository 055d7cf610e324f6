// Package provision creates the isolated database of a tenant and brings
// it to a usable state: every catalog table, the default seed rows, the
// first administrator, zeroed storage counters and a trial subscription.
//
// Table failures do not stop the run. They are collected as
// schema.Outcomes and the run only fails when a required table is
// missing. A database without an administrator is never marked ready.
package provision
