package model

import "time"

// Alert severities.
const (
	AlertWarning  = "warning"
	AlertCritical = "critical"
)

// SystemAlert is raised when a tenant crosses a threshold. Alerts are never
// deleted, only resolved.
type SystemAlert struct {
	ID         int64      `gorm:"column:id;primaryKey" json:"id"`
	AlertType  string     `gorm:"column:alert_type" json:"alert_type"`
	Severity   string     `gorm:"column:severity" json:"severity"`
	Message    string     `gorm:"column:message" json:"message"`
	Resolved   bool       `gorm:"column:resolved" json:"resolved"`
	CreatedAt  time.Time  `gorm:"column:created_at" json:"created_at"`
	ResolvedAt *time.Time `gorm:"column:resolved_at" json:"resolved_at,omitempty"`
}

func (SystemAlert) TableName() string {
	return "system_alerts"
}

// RateLimitRecord mirrors an in-memory rate limit window.
type RateLimitRecord struct {
	ID           int64     `gorm:"column:id;primaryKey" json:"-"`
	Endpoint     string    `gorm:"column:endpoint" json:"endpoint"`
	ClientID     string    `gorm:"column:client_id" json:"client_id"`
	RequestCount int       `gorm:"column:request_count" json:"request_count"`
	WindowStart  time.Time `gorm:"column:window_start" json:"window_start"`
	WindowEnd    time.Time `gorm:"column:window_end" json:"window_end"`
	Blocked      bool      `gorm:"column:blocked" json:"blocked"`
	UpdatedAt    time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (RateLimitRecord) TableName() string {
	return "rate_limits"
}
