package ratelimit

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doodlesbykumbi/schoolhost/pkg/audit"
	"github.com/doodlesbykumbi/schoolhost/pkg/logging"
	"github.com/doodlesbykumbi/schoolhost/pkg/model"
	"github.com/doodlesbykumbi/schoolhost/pkg/schema"
	"github.com/doodlesbykumbi/schoolhost/pkg/server/store/memory"
	"github.com/doodlesbykumbi/schoolhost/pkg/tenant"
)

type fakeMirror struct {
	mu      sync.Mutex
	records []model.RateLimitRecord
	denied  int
}

func (f *fakeMirror) Write(_ context.Context, _ int64, record model.RateLimitRecord, denied bool, _ int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, record)
	if denied {
		f.denied++
	}
	return nil
}

func (f *fakeMirror) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records), f.denied
}

func TestAllowWindow(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewMock()
	l := New(Config{Shards: 4}, nil, clk, logging.Discard(), nil)

	for i := 1; i <= 5; i++ {
		d := l.Allow(ctx, 42, "/api/students", "10.0.0.1", 5, time.Minute)
		require.True(t, d.Allowed, "request %d", i)
		assert.Equal(t, 5-i, d.Remaining)
	}

	d := l.Allow(ctx, 42, "/api/students", "10.0.0.1", 5, time.Minute)
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
	assert.Equal(t, time.Minute, d.RetryAfter)
	assert.Equal(t, clk.Now().Add(time.Minute), d.ResetAt)

	t.Run("other keys are independent", func(t *testing.T) {
		assert.True(t, l.Allow(ctx, 42, "/api/students", "10.0.0.2", 5, time.Minute).Allowed)
		assert.True(t, l.Allow(ctx, 43, "/api/students", "10.0.0.1", 5, time.Minute).Allowed)
		assert.True(t, l.Allow(ctx, 42, "/api/fees", "10.0.0.1", 5, time.Minute).Allowed)
	})

	t.Run("window end is inclusive", func(t *testing.T) {
		clk.Add(time.Minute)
		assert.False(t, l.Allow(ctx, 42, "/api/students", "10.0.0.1", 5, time.Minute).Allowed)
	})

	t.Run("window resets after it elapses", func(t *testing.T) {
		clk.Add(time.Second)
		d := l.Allow(ctx, 42, "/api/students", "10.0.0.1", 5, time.Minute)
		assert.True(t, d.Allowed)
		assert.Equal(t, 4, d.Remaining)
	})
}

func TestAllowDefaults(t *testing.T) {
	l := New(Config{DefaultLimit: 2, DefaultWindow: time.Second}, nil, clock.NewMock(), logging.Discard(), nil)
	ctx := context.Background()
	assert.True(t, l.Allow(ctx, 1, "/", "c", 0, 0).Allowed)
	d := l.Allow(ctx, 1, "/", "c", 0, 0)
	assert.True(t, d.Allowed)
	assert.Equal(t, 2, d.Limit)
	assert.False(t, l.Allow(ctx, 1, "/", "c", 0, 0).Allowed)
}

func TestAllowIsAtomic(t *testing.T) {
	l := New(Config{Shards: 8}, nil, clock.NewMock(), logging.Discard(), nil)
	ctx := context.Background()

	var allowed int32
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Allow(ctx, 7, "/login", "1.2.3.4", 10, time.Minute).Allowed {
				atomic.AddInt32(&allowed, 1)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 10, allowed)
}

func TestSweepAndRestore(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewMock()
	l := New(Config{Shards: 2}, nil, clk, logging.Discard(), nil)

	l.Allow(ctx, 1, "/a", "c", 5, time.Minute)
	l.Allow(ctx, 1, "/b", "c", 5, time.Hour)
	clk.Add(2 * time.Minute)
	assert.Equal(t, 1, l.Sweep())
	assert.Equal(t, 1, l.Len())

	now := clk.Now()
	restored := l.Restore(2, []model.RateLimitRecord{
		{Endpoint: "/a", ClientID: "c", RequestCount: 5, WindowStart: now.Add(-time.Second), WindowEnd: now.Add(time.Minute), Blocked: true},
		{Endpoint: "/b", ClientID: "c", RequestCount: 1, WindowStart: now.Add(-time.Hour), WindowEnd: now.Add(-time.Minute)},
	})
	assert.Equal(t, 1, restored)
	assert.False(t, l.Allow(ctx, 2, "/a", "c", 5, time.Minute).Allowed)
	assert.True(t, l.Allow(ctx, 2, "/b", "c", 5, time.Minute).Allowed)
}

func TestMirror(t *testing.T) {
	clk := clock.NewMock()
	mirror := &fakeMirror{}
	l := New(Config{Shards: 2, MirrorBuffer: 16}, mirror, clk, logging.Discard(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	for i := 0; i < 3; i++ {
		l.Allow(context.Background(), 1, "/login", "c", 2, time.Minute)
	}
	require.Eventually(t, func() bool {
		n, _ := mirror.counts()
		return n == 3
	}, time.Second, 5*time.Millisecond)
	_, denied := mirror.counts()
	assert.Equal(t, 1, denied)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestMirrorDropsWhenFull(t *testing.T) {
	mirror := &fakeMirror{}
	l := New(Config{MirrorBuffer: 1}, mirror, clock.NewMock(), logging.Discard(), nil)

	for i := 0; i < 5; i++ {
		l.Allow(context.Background(), 1, "/", "c", 10, time.Minute)
	}
	assert.Len(t, l.queue, 1)

	l.drain()
	n, _ := mirror.counts()
	assert.Equal(t, 1, n)
}

func TestDenialsSurviveFullMirror(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewMock()
	var syslog bytes.Buffer
	recorder := audit.NewRecorder(audit.NewLogger(&syslog), logging.Discard(), clk)
	mirror := &fakeMirror{}
	l := New(Config{MirrorBuffer: 5}, mirror, clk, logging.Discard(), nil).WithRecorder(recorder)

	for i := 0; i < 6; i++ {
		l.Allow(ctx, 9, "/login", "1.2.3.4", 5, time.Minute)
	}
	assert.Equal(t, 1, strings.Count(syslog.String(), " rate-limit "), "denial is logged before Allow returns")

	t.Run("allowed decisions cannot use the denial reserve", func(t *testing.T) {
		l.Allow(ctx, 9, "/login", "5.6.7.8", 5, time.Minute)
		assert.Len(t, l.queue, 6)
	})

	l.drain()
	n, denied := mirror.counts()
	assert.Equal(t, 6, n)
	assert.Equal(t, 1, denied)
	assert.True(t, mirror.records[5].Blocked)
}

func TestStoreMirror(t *testing.T) {
	ctx := context.Background()
	registry := memory.NewRegistry()
	name := "school_5"
	tn, err := registry.AddTenant(model.Tenant{ID: 5, Slug: "five", Status: model.TenantStatusActive, DatabaseName: &name})
	require.NoError(t, err)

	cluster := memory.NewCluster()
	require.NoError(t, cluster.CreateDatabase(ctx, name))
	database := cluster.Get(name)
	for _, table := range []string{"rate_limits", "security_logs"} {
		def, ok := schema.Lookup(table)
		require.True(t, ok)
		require.NoError(t, database.CreateTable(ctx, def))
	}

	clk := clock.NewMock()
	var syslog bytes.Buffer
	recorder := audit.NewRecorder(audit.NewLogger(&syslog), logging.Discard(), clk)
	dir := tenant.NewDirectory(registry, cluster, tenant.RetryPolicy{})
	mirror := NewStoreMirror(dir, recorder, time.Second)
	l := New(Config{MirrorBuffer: 8}, mirror, clk, logging.Discard(), nil).WithRecorder(recorder)

	l.Allow(ctx, 5, "/login", "1.2.3.4", 1, time.Minute)
	l.Allow(ctx, 5, "/login", "1.2.3.4", 1, time.Minute)
	l.drain()

	require.Len(t, database.SecurityLogs(), 1)
	assert.Equal(t, "rate_limit_exceeded", database.SecurityLogs()[0].EventType)
	assert.Equal(t, 1, strings.Count(syslog.String(), " rate-limit "))

	records, err := database.LoadRateLimits(ctx, clk.Now())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 1, records[0].RequestCount)
	assert.True(t, records[0].Blocked)

	fresh := New(Config{}, nil, clk, logging.Discard(), nil)
	restored, err := mirror.Restore(ctx, fresh, []model.Tenant{*tn})
	require.NoError(t, err)
	assert.Equal(t, 1, restored)
	assert.False(t, fresh.Allow(ctx, 5, "/login", "1.2.3.4", 1, time.Minute).Allowed)
}
