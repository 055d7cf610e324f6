package model

import "time"

// StorageCategory partitions a tenant's storage quota.
type StorageCategory string

const (
	CategoryDatabase    StorageCategory = "database"
	CategoryFiles       StorageCategory = "files"
	CategoryBackups     StorageCategory = "backups"
	CategoryAttachments StorageCategory = "attachments"

	// CategoryTotal is the implicit sum of every category. It has no row.
	CategoryTotal StorageCategory = "total"
)

// Categories returns the concrete categories in a stable order.
func Categories() []StorageCategory {
	return []StorageCategory{CategoryDatabase, CategoryFiles, CategoryBackups, CategoryAttachments}
}

// Valid reports whether c is a concrete category or the total.
func (c StorageCategory) Valid() bool {
	return c == CategoryTotal || c.Concrete()
}

// Concrete reports whether c has its own usage row.
func (c StorageCategory) Concrete() bool {
	for _, cat := range Categories() {
		if c == cat {
			return true
		}
	}
	return false
}

// StorageUsage is one row of a tenant's storage_usage table.
type StorageUsage struct {
	ID             int64           `gorm:"column:id;primaryKey" json:"-"`
	Category       StorageCategory `gorm:"column:category" json:"category"`
	UsedBytes      int64           `gorm:"column:used_bytes" json:"used_bytes"`
	LimitBytes     int64           `gorm:"column:limit_bytes" json:"limit_bytes"`
	LastCalculated time.Time       `gorm:"column:last_calculated" json:"last_calculated"`
}

func (StorageUsage) TableName() string {
	return "storage_usage"
}
