package provision

import (
	"strings"

	"github.com/doodlesbykumbi/schoolhost/pkg/errs"
	"github.com/doodlesbykumbi/schoolhost/pkg/schema"
)

const minPasswordLength = 8

// Admin is the initial administrator of a tenant.
type Admin struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

// Request asks for the database of one tenant.
type Request struct {
	TenantID int64 `json:"tenant_id"`
	Admin    Admin `json:"admin"`
	// ClientIP is recorded in the audit trail.
	ClientIP string `json:"-"`
}

// Validate checks the request without any I/O.
func (r Request) Validate() error {
	const op = "provision.Validate"
	if r.TenantID <= 0 {
		return errs.Invalid(op, "tenant id must be positive")
	}
	var missing []string
	if strings.TrimSpace(r.Admin.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(r.Admin.Email) == "" {
		missing = append(missing, "email")
	}
	if strings.TrimSpace(r.Admin.Phone) == "" {
		missing = append(missing, "phone")
	}
	if r.Admin.Password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return errs.Invalid(op, "admin %s required", strings.Join(missing, ", "))
	}
	if !strings.Contains(r.Admin.Email, "@") {
		return errs.Invalid(op, "admin email %q is not an email address", r.Admin.Email)
	}
	if len(r.Admin.Password) < minPasswordLength {
		return errs.Invalid(op, "admin password must be at least %d characters", minPasswordLength)
	}
	return nil
}

// Result describes a provisioning run.
type Result struct {
	TenantID int64  `json:"tenant_id"`
	Database string `json:"database"`
	// Success is only set once the tenant is ready for use.
	Success bool            `json:"success"`
	Version int             `json:"version"`
	Tables  schema.Outcomes `json:"-"`
	// FailedTables lists tables that could not be created.
	FailedTables []string `json:"failed_tables,omitempty"`
	SeededRows   int64    `json:"seeded_rows"`
	AdminID      int64    `json:"admin_id,omitempty"`
	// Resumed is set when the run continued in a database left by an
	// earlier attempt that never marked the tenant ready.
	Resumed bool `json:"resumed,omitempty"`
}
