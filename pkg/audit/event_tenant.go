package audit

import (
	"fmt"
	"strconv"
	"strings"
)

// TenantProvisionedEvent is emitted when provisioning of a tenant
// database finishes, successfully or not.
type TenantProvisionedEvent struct {
	TenantID     int64
	Database     string
	AdminEmail   string
	ClientIP     string
	FailedTables []string
	Success      bool
	ErrorMessage string
}

func (e TenantProvisionedEvent) MessageID() string {
	return "tenant-provision"
}

func (e TenantProvisionedEvent) Message() string {
	if e.Success {
		return fmt.Sprintf("provisioned database %s for tenant %d", e.Database, e.TenantID)
	}
	msg := fmt.Sprintf("failed to provision database %s for tenant %d", e.Database, e.TenantID)
	if len(e.FailedTables) > 0 {
		msg += fmt.Sprintf(" (failed tables: %s)", strings.Join(e.FailedTables, ", "))
	}
	if e.ErrorMessage != "" {
		msg += ": " + e.ErrorMessage
	}
	return msg
}

func (e TenantProvisionedEvent) Severity() Severity {
	if e.Success {
		return SeverityNotice
	}
	return SeverityError
}

func (e TenantProvisionedEvent) Facility() int {
	return FacilityLocal0
}

func (e TenantProvisionedEvent) StructuredData() map[string]map[string]string {
	sd := map[string]map[string]string{
		SDIDTenant: {
			"id":       strconv.FormatInt(e.TenantID, 10),
			"database": e.Database,
		},
		SDIDAction: {
			"operation": "provision",
			"result":    result(e.Success),
		},
	}
	if e.AdminEmail != "" {
		sd[SDIDTenant]["admin"] = e.AdminEmail
	}
	if e.ClientIP != "" {
		sd[SDIDClient] = map[string]string{"ip": e.ClientIP}
	}
	return sd
}

func (e TenantProvisionedEvent) Entity() (string, string) {
	return "tenant", strconv.FormatInt(e.TenantID, 10)
}

// TenantMigratedEvent is emitted after a tenant database migration.
type TenantMigratedEvent struct {
	TenantID     int64
	Database     string
	Version      int
	FailedTables []string
	Success      bool
	ErrorMessage string
}

func (e TenantMigratedEvent) MessageID() string {
	return "tenant-migrate"
}

func (e TenantMigratedEvent) Message() string {
	if e.Success {
		return fmt.Sprintf("migrated database %s of tenant %d to version %d", e.Database, e.TenantID, e.Version)
	}
	msg := fmt.Sprintf("failed to migrate database %s of tenant %d to version %d", e.Database, e.TenantID, e.Version)
	if len(e.FailedTables) > 0 {
		msg += fmt.Sprintf(" (failed tables: %s)", strings.Join(e.FailedTables, ", "))
	}
	if e.ErrorMessage != "" {
		msg += ": " + e.ErrorMessage
	}
	return msg
}

func (e TenantMigratedEvent) Severity() Severity {
	if e.Success {
		return SeverityInfo
	}
	return SeverityError
}

func (e TenantMigratedEvent) Facility() int {
	return FacilityLocal0
}

func (e TenantMigratedEvent) StructuredData() map[string]map[string]string {
	return map[string]map[string]string{
		SDIDTenant: {
			"id":       strconv.FormatInt(e.TenantID, 10),
			"database": e.Database,
			"version":  strconv.Itoa(e.Version),
		},
		SDIDAction: {
			"operation": "migrate",
			"result":    result(e.Success),
		},
	}
}

func (e TenantMigratedEvent) Entity() (string, string) {
	return "tenant", strconv.FormatInt(e.TenantID, 10)
}

// DatabaseDroppedEvent is emitted when a tenant database is dropped.
type DatabaseDroppedEvent struct {
	TenantID     int64
	Database     string
	Actor        string
	Success      bool
	ErrorMessage string
}

func (e DatabaseDroppedEvent) MessageID() string {
	return "tenant-drop"
}

func (e DatabaseDroppedEvent) Message() string {
	if e.Success {
		return fmt.Sprintf("%s dropped database %s of tenant %d", e.Actor, e.Database, e.TenantID)
	}
	msg := fmt.Sprintf("%s failed to drop database %s of tenant %d", e.Actor, e.Database, e.TenantID)
	if e.ErrorMessage != "" {
		msg += ": " + e.ErrorMessage
	}
	return msg
}

func (e DatabaseDroppedEvent) Severity() Severity {
	if e.Success {
		return SeverityWarning
	}
	return SeverityError
}

func (e DatabaseDroppedEvent) Facility() int {
	return FacilityAuthPriv
}

func (e DatabaseDroppedEvent) StructuredData() map[string]map[string]string {
	return map[string]map[string]string{
		SDIDTenant: {
			"id":       strconv.FormatInt(e.TenantID, 10),
			"database": e.Database,
		},
		SDIDAction: {
			"operation": "drop",
			"actor":     e.Actor,
			"result":    result(e.Success),
		},
	}
}
