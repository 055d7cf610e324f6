package ratelimit

import (
	"context"
	"hash/fnv"
	"strconv"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"

	"github.com/doodlesbykumbi/schoolhost/pkg/audit"
	"github.com/doodlesbykumbi/schoolhost/pkg/metrics"
	"github.com/doodlesbykumbi/schoolhost/pkg/model"
)

// Decision is the outcome of Allow.
type Decision struct {
	Allowed   bool      `json:"allowed"`
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
	// RetryAfter is set on denied requests.
	RetryAfter time.Duration `json:"retry_after,omitempty"`
}

// Key identifies a rate limit window.
type Key struct {
	TenantID int64
	Endpoint string
	ClientID string
}

type window struct {
	count   int
	limit   int
	start   time.Time
	end     time.Time
	blocked bool
}

type shard struct {
	mu      sync.Mutex
	windows map[Key]*window
}

// Config tunes the limiter.
type Config struct {
	// Shards is the number of independently locked partitions.
	Shards int
	// DefaultLimit and DefaultWindow apply when Allow is called with a
	// non-positive limit or window.
	DefaultLimit  int
	DefaultWindow time.Duration
	// MirrorBuffer bounds the allowed decisions waiting to be persisted.
	// Denials may use as many slots again on top of it. Decisions that do
	// not fit are dropped.
	MirrorBuffer int
	// SweepInterval is how often Run evicts expired windows.
	SweepInterval time.Duration
}

// Limiter is a fixed window rate limiter keyed by tenant, endpoint and
// client. The in-memory windows decide; the mirror only records.
type Limiter struct {
	cfg      Config
	shards   []*shard
	clock    clock.Clock
	mirror   Mirror
	queueMu  sync.Mutex
	queue    chan mirrorItem
	recorder *audit.Recorder
	logger   logrus.FieldLogger
	metrics  *metrics.Metrics
}

// New creates a new Limiter. mirror may be nil. A nil clk means the wall
// clock.
func New(cfg Config, mirror Mirror, clk clock.Clock, logger logrus.FieldLogger, m *metrics.Metrics) *Limiter {
	if cfg.Shards <= 0 {
		cfg.Shards = 1
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 60
	}
	if cfg.DefaultWindow <= 0 {
		cfg.DefaultWindow = time.Minute
	}
	if clk == nil {
		clk = clock.New()
	}
	l := &Limiter{
		cfg:     cfg,
		shards:  make([]*shard, cfg.Shards),
		clock:   clk,
		mirror:  mirror,
		logger:  logger,
		metrics: m,
	}
	for i := range l.shards {
		l.shards[i] = &shard{windows: map[Key]*window{}}
	}
	if mirror != nil {
		l.queue = make(chan mirrorItem, 2*cfg.MirrorBuffer)
	}
	return l
}

// WithRecorder makes Allow emit a rate limit exceeded event for every
// denied request before it returns.
func (l *Limiter) WithRecorder(r *audit.Recorder) *Limiter {
	l.recorder = r
	return l
}

func (l *Limiter) shardFor(key Key) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(strconv.FormatInt(key.TenantID, 10)))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(key.Endpoint))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(key.ClientID))
	return l.shards[h.Sum32()%uint32(len(l.shards))]
}

// Allow counts one request against the window of (tenantID, endpoint,
// clientID). The window starts with the first request and resets once the
// clock passes its end. A request is denied when the window already holds
// limit requests. Checking and counting happen under one lock.
func (l *Limiter) Allow(ctx context.Context, tenantID int64, endpoint, clientID string, limit int, period time.Duration) Decision {
	if limit <= 0 {
		limit = l.cfg.DefaultLimit
	}
	if period <= 0 {
		period = l.cfg.DefaultWindow
	}
	key := Key{TenantID: tenantID, Endpoint: endpoint, ClientID: clientID}
	now := l.clock.Now()

	s := l.shardFor(key)
	s.mu.Lock()
	w, ok := s.windows[key]
	if !ok && l.metrics != nil {
		l.metrics.RateLimitWindows.Inc()
	}
	if !ok || now.After(w.end) {
		w = &window{start: now, end: now.Add(period)}
		s.windows[key] = w
	}
	w.limit = limit

	d := Decision{Limit: limit, ResetAt: w.end}
	if w.count >= limit {
		w.blocked = true
		d.RetryAfter = w.end.Sub(now)
	} else {
		w.count++
		d.Allowed = true
	}
	d.Remaining = limit - w.count
	if d.Remaining < 0 {
		d.Remaining = 0
	}
	record := model.RateLimitRecord{
		Endpoint:     endpoint,
		ClientID:     clientID,
		RequestCount: w.count,
		WindowStart:  w.start,
		WindowEnd:    w.end,
		Blocked:      w.blocked,
		UpdatedAt:    now,
	}
	s.mu.Unlock()

	if l.metrics != nil {
		result := "allowed"
		if !d.Allowed {
			result = "denied"
		}
		l.metrics.RateLimitDecisions.WithLabelValues(result).Inc()
	}
	if !d.Allowed {
		l.logger.WithFields(logrus.Fields{
			"tenant_id": tenantID,
			"endpoint":  endpoint,
			"client_id": clientID,
			"limit":     limit,
		}).Info("rate limit exceeded")
		l.recorder.Record(ctx, nil, deniedEvent(tenantID, record, limit))
	}
	l.enqueue(mirrorItem{tenantID: tenantID, record: record, limit: limit, denied: !d.Allowed})
	return d
}

// Restore seeds windows from persisted records, e.g. after a restart.
// Expired records and keys that already have a newer window are skipped.
func (l *Limiter) Restore(tenantID int64, records []model.RateLimitRecord) int {
	now := l.clock.Now()
	restored := 0
	for _, r := range records {
		if !r.WindowEnd.After(now) {
			continue
		}
		key := Key{TenantID: tenantID, Endpoint: r.Endpoint, ClientID: r.ClientID}
		s := l.shardFor(key)
		s.mu.Lock()
		if existing, ok := s.windows[key]; !ok || existing.end.Before(r.WindowEnd) {
			if !ok && l.metrics != nil {
				l.metrics.RateLimitWindows.Inc()
			}
			s.windows[key] = &window{
				count:   r.RequestCount,
				start:   r.WindowStart,
				end:     r.WindowEnd,
				blocked: r.Blocked,
			}
			restored++
		}
		s.mu.Unlock()
	}
	return restored
}

// Sweep evicts windows whose end has passed and returns how many it
// removed.
func (l *Limiter) Sweep() int {
	now := l.clock.Now()
	removed := 0
	for _, s := range l.shards {
		s.mu.Lock()
		for key, w := range s.windows {
			if now.After(w.end) {
				delete(s.windows, key)
				removed++
			}
		}
		s.mu.Unlock()
	}
	if l.metrics != nil && removed > 0 {
		l.metrics.RateLimitWindows.Sub(float64(removed))
	}
	return removed
}

// Len returns the number of live windows.
func (l *Limiter) Len() int {
	n := 0
	for _, s := range l.shards {
		s.mu.Lock()
		n += len(s.windows)
		s.mu.Unlock()
	}
	return n
}

// Run persists mirrored decisions and sweeps expired windows until ctx is
// done. Decisions still queued when ctx ends are written before Run
// returns.
func (l *Limiter) Run(ctx context.Context) error {
	var tick <-chan time.Time
	if l.cfg.SweepInterval > 0 {
		ticker := l.clock.Ticker(l.cfg.SweepInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			l.drain()
			return ctx.Err()
		case item := <-l.queue:
			l.write(context.Background(), item)
		case <-tick:
			if n := l.Sweep(); n > 0 {
				l.logger.WithField("removed", n).Debug("swept expired rate limit windows")
			}
		}
	}
}

func (l *Limiter) drain() {
	for {
		select {
		case item := <-l.queue:
			l.write(context.Background(), item)
		default:
			return
		}
	}
}
