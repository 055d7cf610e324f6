// Package memory provides in-memory implementations of the store
// interfaces. They back unit tests and `schoolctl server --in-memory`.
//
// Failures can be injected per table (Database.FailTable), for the admin
// insert (Database.FailAdmin) and for database creation
// (Cluster.FailCreate), which lets tests drive the partial-failure paths
// of provisioning and migration.
package memory
