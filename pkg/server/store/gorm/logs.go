package gorm

import (
	"context"
	"time"

	"github.com/doodlesbykumbi/schoolhost/pkg/errs"
	"github.com/doodlesbykumbi/schoolhost/pkg/model"
)

// SaveRateLimit upserts the mirror row. Writes arrive asynchronously, so
// an older snapshot never overwrites a newer one.
func (s *TenantStore) SaveRateLimit(ctx context.Context, record model.RateLimitRecord) error {
	err := s.db.WithContext(ctx).Exec(`
		INSERT INTO rate_limits (endpoint, client_id, request_count, window_start, window_end, blocked, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (endpoint, client_id) DO UPDATE SET
			request_count = EXCLUDED.request_count,
			window_start = EXCLUDED.window_start,
			window_end = EXCLUDED.window_end,
			blocked = EXCLUDED.blocked,
			updated_at = EXCLUDED.updated_at
		WHERE rate_limits.updated_at <= EXCLUDED.updated_at
	`,
		record.Endpoint,
		record.ClientID,
		record.RequestCount,
		record.WindowStart,
		record.WindowEnd,
		record.Blocked,
		record.UpdatedAt,
	).Error
	return errs.Classify("store.SaveRateLimit", err)
}

func (s *TenantStore) LoadRateLimits(ctx context.Context, now time.Time) ([]model.RateLimitRecord, error) {
	var records []model.RateLimitRecord
	if err := s.db.WithContext(ctx).Where("window_end > ?", now).Find(&records).Error; err != nil {
		return nil, errs.Classify("store.LoadRateLimits", err)
	}
	return records, nil
}

func (s *TenantStore) SaveAuditLog(ctx context.Context, entry *model.AuditLog) error {
	return errs.Classify("store.SaveAuditLog", s.db.WithContext(ctx).Create(entry).Error)
}

func (s *TenantStore) SaveSecurityLog(ctx context.Context, entry *model.SecurityLog) error {
	return errs.Classify("store.SaveSecurityLog", s.db.WithContext(ctx).Create(entry).Error)
}
