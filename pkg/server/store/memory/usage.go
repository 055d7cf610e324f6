package memory

import (
	"context"
	"sort"
	"time"

	"github.com/doodlesbykumbi/schoolhost/pkg/errs"
	"github.com/doodlesbykumbi/schoolhost/pkg/model"
)

func (d *Database) HasUsageTable(ctx context.Context) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.down != nil {
		return false, d.down
	}
	_, ok := d.tables["storage_usage"]
	return ok, nil
}

func (d *Database) Usage(ctx context.Context, category model.StorageCategory) (*model.StorageUsage, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.down != nil {
		return nil, d.down
	}
	if _, ok := d.tables["storage_usage"]; !ok {
		return nil, d.missing("store.Usage", "storage_usage")
	}
	u, ok := d.usage[category]
	if !ok {
		return nil, errs.NotFound("store.Usage", "no usage recorded for %s", category)
	}
	out := *u
	return &out, nil
}

func (d *Database) AllUsage(ctx context.Context) ([]model.StorageUsage, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.down != nil {
		return nil, d.down
	}
	if _, ok := d.tables["storage_usage"]; !ok {
		return nil, d.missing("store.AllUsage", "storage_usage")
	}
	out := make([]model.StorageUsage, 0, len(d.usage))
	for _, u := range d.usage {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out, nil
}

func (d *Database) AddUsage(ctx context.Context, category model.StorageCategory, delta, limit int64, at time.Time) (bool, *model.StorageUsage, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.down != nil {
		return false, nil, d.down
	}
	if _, ok := d.tables["storage_usage"]; !ok {
		return false, nil, d.missing("store.AddUsage", "storage_usage")
	}

	u, ok := d.usage[category]
	if !ok {
		u = &model.StorageUsage{ID: int64(len(d.usage) + 1), Category: category, LimitBytes: limit, LastCalculated: at}
		d.usage[category] = u
		d.counts["storage_usage"]++
	}

	if delta > 0 && limit > 0 && u.UsedBytes+delta > limit {
		out := *u
		return false, &out, nil
	}
	u.UsedBytes += delta
	if u.UsedBytes < 0 {
		u.UsedBytes = 0
	}
	u.LimitBytes = limit
	u.LastCalculated = at
	out := *u
	return true, &out, nil
}

func (d *Database) OpenAlert(ctx context.Context, alertType, severity string) (*model.SystemAlert, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.down != nil {
		return nil, d.down
	}
	for i := len(d.alerts) - 1; i >= 0; i-- {
		a := d.alerts[i]
		if a.AlertType == alertType && a.Severity == severity && !a.Resolved {
			return &a, nil
		}
	}
	return nil, nil
}

func (d *Database) RaiseAlert(ctx context.Context, alert *model.SystemAlert) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.down != nil {
		return d.down
	}
	if _, ok := d.tables["system_alerts"]; !ok {
		return d.missing("store.RaiseAlert", "system_alerts")
	}
	alert.ID = int64(len(d.alerts) + 1)
	d.alerts = append(d.alerts, *alert)
	d.counts["system_alerts"]++
	return nil
}

func (d *Database) ResolveAlerts(ctx context.Context, alertType string, at time.Time) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.down != nil {
		return 0, d.down
	}
	var n int64
	for i := range d.alerts {
		if d.alerts[i].AlertType == alertType && !d.alerts[i].Resolved {
			resolvedAt := at
			d.alerts[i].Resolved = true
			d.alerts[i].ResolvedAt = &resolvedAt
			n++
		}
	}
	return n, nil
}

func rateLimitKey(endpoint, clientID string) string {
	return endpoint + "\x00" + clientID
}

func (d *Database) SaveRateLimit(ctx context.Context, record model.RateLimitRecord) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.down != nil {
		return d.down
	}
	if _, ok := d.tables["rate_limits"]; !ok {
		return d.missing("store.SaveRateLimit", "rate_limits")
	}
	key := rateLimitKey(record.Endpoint, record.ClientID)
	existing, ok := d.rateLimits[key]
	if ok && existing.UpdatedAt.After(record.UpdatedAt) {
		return nil
	}
	if !ok {
		d.counts["rate_limits"]++
	}
	d.rateLimits[key] = record
	return nil
}

func (d *Database) LoadRateLimits(ctx context.Context, now time.Time) ([]model.RateLimitRecord, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.down != nil {
		return nil, d.down
	}
	var out []model.RateLimitRecord
	for _, r := range d.rateLimits {
		if r.WindowEnd.After(now) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return rateLimitKey(out[i].Endpoint, out[i].ClientID) < rateLimitKey(out[j].Endpoint, out[j].ClientID)
	})
	return out, nil
}

func (d *Database) SaveAuditLog(ctx context.Context, entry *model.AuditLog) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.down != nil {
		return d.down
	}
	if _, ok := d.tables["audit_logs"]; !ok {
		return d.missing("store.SaveAuditLog", "audit_logs")
	}
	entry.ID = int64(len(d.auditLogs) + 1)
	d.auditLogs = append(d.auditLogs, *entry)
	d.counts["audit_logs"]++
	return nil
}

func (d *Database) SaveSecurityLog(ctx context.Context, entry *model.SecurityLog) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.down != nil {
		return d.down
	}
	if _, ok := d.tables["security_logs"]; !ok {
		return d.missing("store.SaveSecurityLog", "security_logs")
	}
	entry.ID = int64(len(d.securityLogs) + 1)
	d.securityLogs = append(d.securityLogs, *entry)
	d.counts["security_logs"]++
	return nil
}
