// Package audit records tenant lifecycle, quota and rate limit events.
//
// Every event is written as an RFC5424 syslog line and, when the tenant
// database is reachable, appended to its audit_logs or security_logs
// table.
//
// # Event Types
//
//   - TenantProvisionedEvent, TenantMigratedEvent, DatabaseDroppedEvent
//   - QuotaEvent: threshold alerts and refused usage updates
//   - RateLimitExceededEvent: denied requests (security log)
//
// # Usage
//
//	rec := audit.NewRecorder(audit.NewLogger(os.Stdout), log, nil)
//	rec.Record(ctx, tenantStore, audit.QuotaEvent{...})
package audit
