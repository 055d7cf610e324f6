package model

import "time"

// AuditLog is an append-only record of a privileged action.
type AuditLog struct {
	ID         int64     `gorm:"column:id;primaryKey" json:"id"`
	UserID     *int64    `gorm:"column:user_id" json:"user_id,omitempty"`
	Action     string    `gorm:"column:action" json:"action"`
	EntityType string    `gorm:"column:entity_type" json:"entity_type"`
	EntityID   string    `gorm:"column:entity_id" json:"entity_id"`
	Details    string    `gorm:"column:details" json:"details"`
	IPAddress  string    `gorm:"column:ip_address" json:"ip_address"`
	CreatedAt  time.Time `gorm:"column:created_at" json:"created_at"`
}

func (AuditLog) TableName() string {
	return "audit_logs"
}

// SecurityLog is an append-only record of a security event.
type SecurityLog struct {
	ID        int64     `gorm:"column:id;primaryKey" json:"id"`
	EventType string    `gorm:"column:event_type" json:"event_type"`
	Severity  string    `gorm:"column:severity" json:"severity"`
	IPAddress string    `gorm:"column:ip_address" json:"ip_address"`
	Details   string    `gorm:"column:details" json:"details"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
}

func (SecurityLog) TableName() string {
	return "security_logs"
}
