package quota

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"

	"github.com/doodlesbykumbi/schoolhost/pkg/audit"
	"github.com/doodlesbykumbi/schoolhost/pkg/db"
	"github.com/doodlesbykumbi/schoolhost/pkg/errs"
	"github.com/doodlesbykumbi/schoolhost/pkg/metrics"
	"github.com/doodlesbykumbi/schoolhost/pkg/model"
	"github.com/doodlesbykumbi/schoolhost/pkg/server/store"
	"github.com/doodlesbykumbi/schoolhost/pkg/tenant"
)

// Config holds the quota thresholds.
type Config struct {
	// WarningPercent and CriticalPercent are the usage percentages at
	// which warning and critical alerts are raised.
	WarningPercent  float64
	CriticalPercent float64
	// AlertCooldown suppresses a repeated alert of the same type and
	// severity for a tenant. Zero means an alert is only suppressed while
	// an unresolved one exists.
	AlertCooldown time.Duration
	// Timeout bounds every tenant database call.
	Timeout time.Duration
}

// Status is the outcome of a quota check.
type Status struct {
	Category   model.StorageCategory `json:"category"`
	Exceeded   bool                  `json:"exceeded"`
	Used       int64                 `json:"used_bytes"`
	Limit      int64                 `json:"limit_bytes"`
	Percentage float64               `json:"percentage"`
	// Unlimited is set for tenants without quota tracking or without a
	// storage allowance.
	Unlimited bool `json:"unlimited"`
}

func newStatus(category model.StorageCategory, used, limit int64) *Status {
	st := &Status{Category: category, Used: used, Limit: limit}
	if limit <= 0 {
		st.Unlimited = true
		return st
	}
	st.Percentage = float64(used) / float64(limit) * 100
	st.Exceeded = used >= limit
	return st
}

type alertKey struct {
	tenantID  int64
	alertType string
	severity  string
}

// Tracker accounts storage usage against plan limits.
type Tracker struct {
	dir      *tenant.Directory
	recorder *audit.Recorder
	cfg      Config
	clock    clock.Clock
	logger   logrus.FieldLogger
	metrics  *metrics.Metrics

	mu        sync.Mutex
	lastAlert map[alertKey]time.Time
}

// NewTracker creates a new Tracker. A nil clk means the wall clock.
func NewTracker(dir *tenant.Directory, recorder *audit.Recorder, cfg Config, clk clock.Clock, logger logrus.FieldLogger, m *metrics.Metrics) *Tracker {
	if clk == nil {
		clk = clock.New()
	}
	return &Tracker{
		dir:       dir,
		recorder:  recorder,
		cfg:       cfg,
		clock:     clk,
		logger:    logger,
		metrics:   m,
		lastAlert: map[alertKey]time.Time{},
	}
}

// AlertType returns the system alert type used for category.
func AlertType(category model.StorageCategory) string {
	return "storage_" + string(category)
}

// CheckLimit reports usage of category against the tenant's limit.
// "total" aggregates every category. Crossing a threshold raises an
// alert; dropping below the warning threshold resolves open ones.
func (t *Tracker) CheckLimit(ctx context.Context, tenantID int64, category model.StorageCategory) (*Status, error) {
	const op = "quota.CheckLimit"
	if !category.Valid() {
		return nil, errs.Invalid(op, "unknown storage category %q", category)
	}

	plan, ts, err := t.open(ctx, tenantID)
	if err != nil {
		return nil, errs.Wrap(op, tenantID, err)
	}

	ctx, cancel := db.WithTimeout(ctx, t.cfg.Timeout)
	defer cancel()

	has, err := ts.HasUsageTable(ctx)
	if err != nil {
		return nil, errs.Wrap(op, tenantID, err)
	}
	if !has {
		t.count(category, "unlimited")
		return &Status{Category: category, Unlimited: true}, nil
	}

	used, err := t.used(ctx, ts, category)
	if err != nil {
		return nil, errs.Wrap(op, tenantID, err)
	}

	st := newStatus(category, used, Limit(plan, category))
	switch {
	case st.Unlimited:
		t.count(category, "unlimited")
	case st.Exceeded:
		t.count(category, "exceeded")
	default:
		t.count(category, "ok")
	}
	t.evaluateAlerts(ctx, ts, tenantID, st)
	return st, nil
}

// UpdateUsage applies delta bytes to category. A positive delta that would
// take usage over the limit is refused with a quota exceeded error and
// nothing is recorded. Negative deltas are always applied, clamped at
// zero.
func (t *Tracker) UpdateUsage(ctx context.Context, tenantID int64, category model.StorageCategory, delta int64) (bool, error) {
	const op = "quota.UpdateUsage"
	if !category.Concrete() {
		return false, errs.Invalid(op, "usage can only be recorded for a concrete category, got %q", category)
	}

	plan, ts, err := t.open(ctx, tenantID)
	if err != nil {
		return false, errs.Wrap(op, tenantID, err)
	}
	if delta == 0 {
		return true, nil
	}

	ctx, cancel := db.WithTimeout(ctx, t.cfg.Timeout)
	defer cancel()

	has, err := ts.HasUsageTable(ctx)
	if err != nil {
		return false, errs.Wrap(op, tenantID, err)
	}
	if !has {
		return true, nil
	}

	limit := Limit(plan, category)
	// Not retried: a timed out write may have been applied.
	applied, usage, err := ts.AddUsage(ctx, category, delta, limit, t.clock.Now().UTC())
	if err != nil {
		return false, errs.Wrap(op, tenantID, err)
	}

	log := t.logger.WithFields(logrus.Fields{"tenant_id": tenantID, "category": category, "delta": delta})
	if !applied {
		if t.metrics != nil {
			t.metrics.QuotaRejections.WithLabelValues(string(category)).Inc()
		}
		st := newStatus(category, usage.UsedBytes, limit)
		t.recorder.Record(ctx, ts, audit.QuotaEvent{
			TenantID:   tenantID,
			Category:   string(category),
			Action:     audit.QuotaRejected,
			Used:       st.Used,
			Limit:      st.Limit,
			Delta:      delta,
			Percentage: st.Percentage,
		})
		log.WithField("used", usage.UsedBytes).Info("storage quota exceeded")
		return false, &errs.Error{
			Code:     errs.EQuotaExceeded,
			Op:       op,
			TenantID: tenantID,
			Msg:      fmt.Sprintf("%s quota exceeded: %d of %d bytes used, %d requested", category, usage.UsedBytes, limit, delta),
		}
	}

	log.WithField("used", usage.UsedBytes).Debug("storage usage updated")
	t.evaluateAlerts(ctx, ts, tenantID, newStatus(category, usage.UsedBytes, limit))
	return true, nil
}

func (t *Tracker) open(ctx context.Context, tenantID int64) (*model.SubscriptionPlan, store.TenantStore, error) {
	tn, ts, err := t.dir.Open(ctx, tenantID)
	if err != nil {
		return nil, nil, err
	}
	plan, err := t.dir.Plan(ctx, tn)
	if err != nil {
		return nil, nil, err
	}
	return plan, ts, nil
}

func (t *Tracker) used(ctx context.Context, ts store.TenantStore, category model.StorageCategory) (int64, error) {
	if category == model.CategoryTotal {
		rows, err := ts.AllUsage(ctx)
		if err != nil {
			return 0, err
		}
		var sum int64
		for _, r := range rows {
			sum += r.UsedBytes
		}
		return sum, nil
	}

	u, err := ts.Usage(ctx, category)
	if errs.Is(err, errs.ENotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return u.UsedBytes, nil
}

// evaluateAlerts raises or resolves the alert of st's category. Alert
// failures are logged and never fail the quota operation.
func (t *Tracker) evaluateAlerts(ctx context.Context, ts store.TenantStore, tenantID int64, st *Status) {
	if st.Unlimited {
		return
	}
	alertType := AlertType(st.Category)
	log := t.logger.WithFields(logrus.Fields{"tenant_id": tenantID, "alert_type": alertType})

	var severity string
	switch {
	case st.Percentage >= t.cfg.CriticalPercent:
		severity = model.AlertCritical
	case st.Percentage >= t.cfg.WarningPercent:
		severity = model.AlertWarning
	default:
		n, err := ts.ResolveAlerts(ctx, alertType, t.clock.Now().UTC())
		if err != nil {
			log.WithError(err).Warn("failed to resolve storage alerts")
			return
		}
		if n > 0 {
			t.forget(tenantID, alertType)
			t.recorder.Record(ctx, ts, audit.QuotaEvent{
				TenantID:   tenantID,
				Category:   string(st.Category),
				Action:     audit.QuotaResolved,
				Used:       st.Used,
				Limit:      st.Limit,
				Percentage: st.Percentage,
			})
		}
		return
	}

	key := alertKey{tenantID: tenantID, alertType: alertType, severity: severity}
	now := t.clock.Now()
	if t.coolingDown(key, now) {
		return
	}

	open, err := ts.OpenAlert(ctx, alertType, severity)
	if err != nil {
		log.WithError(err).Warn("failed to look up storage alerts")
		return
	}
	if open != nil {
		return
	}

	alert := &model.SystemAlert{
		AlertType: alertType,
		Severity:  severity,
		Message:   fmt.Sprintf("%s storage at %.1f%% of quota (%d of %d bytes)", st.Category, st.Percentage, st.Used, st.Limit),
		CreatedAt: now.UTC(),
	}
	if err := ts.RaiseAlert(ctx, alert); err != nil {
		log.WithError(err).Warn("failed to raise storage alert")
		return
	}
	t.remember(key, now)
	if t.metrics != nil {
		t.metrics.QuotaAlerts.WithLabelValues(severity).Inc()
	}
	t.recorder.Record(ctx, ts, audit.QuotaEvent{
		TenantID:   tenantID,
		Category:   string(st.Category),
		Action:     audit.QuotaAlert,
		Level:      severity,
		Used:       st.Used,
		Limit:      st.Limit,
		Percentage: st.Percentage,
	})
	log.WithField("severity", severity).Warn(alert.Message)
}

func (t *Tracker) coolingDown(key alertKey, now time.Time) bool {
	if t.cfg.AlertCooldown <= 0 {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	last, ok := t.lastAlert[key]
	return ok && now.Sub(last) < t.cfg.AlertCooldown
}

func (t *Tracker) remember(key alertKey, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastAlert[key] = now
}

func (t *Tracker) forget(tenantID int64, alertType string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for key := range t.lastAlert {
		if key.tenantID == tenantID && key.alertType == alertType {
			delete(t.lastAlert, key)
		}
	}
}

func (t *Tracker) count(category model.StorageCategory, outcome string) {
	if t.metrics != nil {
		t.metrics.QuotaChecks.WithLabelValues(string(category), outcome).Inc()
	}
}
