// Package quota accounts tenant storage against the allowance of their
// subscription plan.
//
// The plan allowance is split across the storage categories by tier.
// Usage counters only move by additive deltas applied in a single guarded
// SQL statement, so concurrent writers never lose updates and a positive
// delta can never take a counter past its limit.
//
// Tenant databases created before quota tracking existed have no
// storage_usage table. They are reported as unlimited.
package quota
