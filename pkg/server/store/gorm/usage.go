package gorm

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/doodlesbykumbi/schoolhost/pkg/errs"
	"github.com/doodlesbykumbi/schoolhost/pkg/model"
)

func (s *TenantStore) HasUsageTable(ctx context.Context) (bool, error) {
	var exists bool
	err := s.db.WithContext(ctx).Raw(`
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = current_schema() AND table_name = ?
		)
	`, model.StorageUsage{}.TableName()).Scan(&exists).Error
	if err != nil {
		return false, errs.Classify("store.HasUsageTable", err)
	}
	return exists, nil
}

func (s *TenantStore) Usage(ctx context.Context, category model.StorageCategory) (*model.StorageUsage, error) {
	var usage model.StorageUsage
	if err := s.db.WithContext(ctx).Where("category = ?", string(category)).First(&usage).Error; err != nil {
		return nil, lookupError("store.Usage", err, "no usage recorded for %s", category)
	}
	return &usage, nil
}

func (s *TenantStore) AllUsage(ctx context.Context) ([]model.StorageUsage, error) {
	var rows []model.StorageUsage
	if err := s.db.WithContext(ctx).Order("category").Find(&rows).Error; err != nil {
		return nil, errs.Classify("store.AllUsage", err)
	}
	return rows, nil
}

func (s *TenantStore) AddUsage(ctx context.Context, category model.StorageCategory, delta, limit int64, at time.Time) (bool, *model.StorageUsage, error) {
	var (
		applied bool
		usage   model.StorageUsage
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Exec(
			`INSERT INTO storage_usage (category, used_bytes, limit_bytes, last_calculated) VALUES (?, 0, ?, ?) ON CONFLICT (category) DO NOTHING`,
			string(category), limit, at,
		).Error
		if err != nil {
			return err
		}

		query := `UPDATE storage_usage SET used_bytes = GREATEST(used_bytes + ?, 0), limit_bytes = ?, last_calculated = ? WHERE category = ?`
		args := []interface{}{delta, limit, at, string(category)}
		if delta > 0 && limit > 0 {
			query += ` AND used_bytes + ? <= ?`
			args = append(args, delta, limit)
		}
		res := tx.Exec(query, args...)
		if res.Error != nil {
			return res.Error
		}
		applied = res.RowsAffected > 0

		return tx.Where("category = ?", string(category)).First(&usage).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil, errs.NotFound("store.AddUsage", "no usage recorded for %s", category)
		}
		return false, nil, errs.Classify("store.AddUsage", err)
	}
	return applied, &usage, nil
}

func (s *TenantStore) OpenAlert(ctx context.Context, alertType, severity string) (*model.SystemAlert, error) {
	var alert model.SystemAlert
	err := s.db.WithContext(ctx).
		Where("alert_type = ? AND severity = ? AND resolved = ?", alertType, severity, false).
		Order("created_at DESC").
		First(&alert).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Classify("store.OpenAlert", err)
	}
	return &alert, nil
}

func (s *TenantStore) RaiseAlert(ctx context.Context, alert *model.SystemAlert) error {
	return errs.Classify("store.RaiseAlert", s.db.WithContext(ctx).Create(alert).Error)
}

func (s *TenantStore) ResolveAlerts(ctx context.Context, alertType string, at time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Exec(
		`UPDATE system_alerts SET resolved = ?, resolved_at = ? WHERE alert_type = ? AND resolved = ?`,
		true, at, alertType, false,
	)
	if res.Error != nil {
		return 0, errs.Classify("store.ResolveAlerts", res.Error)
	}
	return res.RowsAffected, nil
}
