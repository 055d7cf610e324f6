package audit

import (
	"fmt"
	"strconv"
)

// Quota actions.
const (
	QuotaAlert    = "alert"
	QuotaRejected = "rejected"
	QuotaResolved = "resolved"
)

// QuotaEvent records a storage quota alert or a refused usage update.
type QuotaEvent struct {
	TenantID int64
	Category string
	Action   string
	// Level is the alert severity (warning, critical) for alerts.
	Level      string
	Used       int64
	Limit      int64
	Delta      int64
	Percentage float64
}

func (e QuotaEvent) MessageID() string {
	return "quota"
}

func (e QuotaEvent) Message() string {
	switch e.Action {
	case QuotaRejected:
		return fmt.Sprintf("tenant %d: refused %d bytes of %s storage (%d of %d bytes used)", e.TenantID, e.Delta, e.Category, e.Used, e.Limit)
	case QuotaResolved:
		return fmt.Sprintf("tenant %d: %s storage back under threshold (%.1f%%)", e.TenantID, e.Category, e.Percentage)
	default:
		return fmt.Sprintf("tenant %d: %s storage at %.1f%% of quota (%s)", e.TenantID, e.Category, e.Percentage, e.Level)
	}
}

func (e QuotaEvent) Severity() Severity {
	switch {
	case e.Action == QuotaResolved:
		return SeverityInfo
	case e.Action == QuotaRejected, e.Level == "critical":
		return SeverityCritical
	default:
		return SeverityWarning
	}
}

func (e QuotaEvent) Facility() int {
	return FacilityLocal0
}

func (e QuotaEvent) StructuredData() map[string]map[string]string {
	sd := map[string]map[string]string{
		SDIDTenant: {
			"id": strconv.FormatInt(e.TenantID, 10),
		},
		SDIDQuota: {
			"category":   e.Category,
			"used":       strconv.FormatInt(e.Used, 10),
			"limit":      strconv.FormatInt(e.Limit, 10),
			"percentage": strconv.FormatFloat(e.Percentage, 'f', 2, 64),
		},
		SDIDAction: {
			"operation": "quota-" + e.Action,
		},
	}
	if e.Action == QuotaRejected {
		sd[SDIDQuota]["delta"] = strconv.FormatInt(e.Delta, 10)
	}
	if e.Level != "" {
		sd[SDIDQuota]["level"] = e.Level
	}
	return sd
}

func (e QuotaEvent) Entity() (string, string) {
	return "storage_usage", e.Category
}
