package ratelimit

import (
	"context"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/doodlesbykumbi/schoolhost/pkg/audit"
	"github.com/doodlesbykumbi/schoolhost/pkg/db"
	"github.com/doodlesbykumbi/schoolhost/pkg/model"
	"github.com/doodlesbykumbi/schoolhost/pkg/tenant"
)

// Mirror persists rate limit decisions. It is called from the limiter's
// background worker, never from Allow.
type Mirror interface {
	Write(ctx context.Context, tenantID int64, record model.RateLimitRecord, denied bool, limit int) error
}

type mirrorItem struct {
	tenantID int64
	record   model.RateLimitRecord
	limit    int
	denied   bool
}

func deniedEvent(tenantID int64, record model.RateLimitRecord, limit int) audit.RateLimitExceededEvent {
	return audit.RateLimitExceededEvent{
		TenantID: tenantID,
		Endpoint: record.Endpoint,
		ClientID: record.ClientID,
		Limit:    limit,
		Count:    record.RequestCount,
	}
}

// enqueue hands item to the background worker in decision order. Allowed
// decisions only take the first MirrorBuffer slots so a burst of them
// cannot crowd out denials.
func (l *Limiter) enqueue(item mirrorItem) {
	if l.queue == nil {
		return
	}
	l.queueMu.Lock()
	defer l.queueMu.Unlock()
	if !item.denied && len(l.queue) >= l.cfg.MirrorBuffer {
		l.dropped()
		return
	}
	select {
	case l.queue <- item:
	default:
		l.dropped()
	}
}

func (l *Limiter) dropped() {
	if l.metrics != nil {
		l.metrics.RateLimitMirrorDropped.Inc()
	}
}

func (l *Limiter) write(ctx context.Context, item mirrorItem) {
	if err := l.mirror.Write(ctx, item.tenantID, item.record, item.denied, item.limit); err != nil {
		l.logger.WithError(err).WithFields(logrus.Fields{
			"tenant_id": item.tenantID,
			"endpoint":  item.record.Endpoint,
		}).Warn("failed to mirror rate limit window")
	}
}

// StoreMirror writes decisions to the rate_limits table of the tenant
// database and persists denials to its security log. The syslog line of a
// denial is written by the limiter itself.
type StoreMirror struct {
	dir      *tenant.Directory
	recorder *audit.Recorder
	timeout  time.Duration
}

// NewStoreMirror creates a new StoreMirror
func NewStoreMirror(dir *tenant.Directory, recorder *audit.Recorder, timeout time.Duration) *StoreMirror {
	return &StoreMirror{dir: dir, recorder: recorder, timeout: timeout}
}

func (m *StoreMirror) Write(ctx context.Context, tenantID int64, record model.RateLimitRecord, denied bool, limit int) error {
	ctx, cancel := db.WithTimeout(ctx, m.timeout)
	defer cancel()

	_, ts, err := m.dir.Open(ctx, tenantID)
	if err != nil {
		return err
	}
	if denied {
		m.recorder.Persist(ctx, ts, deniedEvent(tenantID, record, limit))
	}
	return ts.SaveRateLimit(ctx, record)
}

// Restore loads the open windows of every tenant into l.
func (m *StoreMirror) Restore(ctx context.Context, l *Limiter, tenants []model.Tenant) (int, error) {
	var result *multierror.Error
	restored := 0
	for _, t := range tenants {
		if !t.HasDatabase() {
			continue
		}
		ts, err := m.dir.Database(ctx, &t)
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}
		lctx, cancel := db.WithTimeout(ctx, m.timeout)
		records, err := ts.LoadRateLimits(lctx, l.clock.Now())
		cancel()
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}
		restored += l.Restore(t.ID, records)
	}
	return restored, result.ErrorOrNil()
}
