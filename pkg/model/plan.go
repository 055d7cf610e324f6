package model

import "time"

// Plan tiers. A tier selects the per-category storage split.
const (
	TierFree         = "free"
	TierStarter      = "starter"
	TierProfessional = "professional"
	TierEnterprise   = "enterprise"
)

const bytesPerMB = 1024 * 1024

// SubscriptionPlan is a row of the registry plan catalog.
type SubscriptionPlan struct {
	ID                   int64     `gorm:"column:id;primaryKey" json:"id"`
	Code                 string    `gorm:"column:code" json:"code"`
	Name                 string    `gorm:"column:name" json:"name"`
	Tier                 string    `gorm:"column:tier" json:"tier"`
	StorageLimitMB       int64     `gorm:"column:storage_limit_mb" json:"storage_limit_mb"`
	APIRateLimit         int       `gorm:"column:api_rate_limit" json:"api_rate_limit"`
	APIRateWindowSeconds int       `gorm:"column:api_rate_window_seconds" json:"api_rate_window_seconds"`
	PriceCents           int64     `gorm:"column:price_cents" json:"price_cents"`
	CreatedAt            time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (SubscriptionPlan) TableName() string {
	return "subscription_plans"
}

// StorageLimitBytes converts the plan's megabyte allowance into bytes.
// Zero or negative means unlimited.
func (p SubscriptionPlan) StorageLimitBytes() int64 {
	return p.StorageLimitMB * bytesPerMB
}

// Subscription is the tenant side record of the plan a school is on.
type Subscription struct {
	ID        int64      `gorm:"column:id;primaryKey" json:"id"`
	PlanCode  string     `gorm:"column:plan_code" json:"plan_code"`
	Status    string     `gorm:"column:status" json:"status"`
	StartedAt time.Time  `gorm:"column:started_at" json:"started_at"`
	EndsAt    *time.Time `gorm:"column:ends_at" json:"ends_at,omitempty"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (Subscription) TableName() string {
	return "subscriptions"
}
