package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doodlesbykumbi/schoolhost/pkg/logging"
	"github.com/doodlesbykumbi/schoolhost/pkg/metrics"
	"github.com/doodlesbykumbi/schoolhost/pkg/model"
	"github.com/doodlesbykumbi/schoolhost/pkg/ratelimit"
	"github.com/doodlesbykumbi/schoolhost/pkg/server/store/memory"
	"github.com/doodlesbykumbi/schoolhost/pkg/session"
	"github.com/doodlesbykumbi/schoolhost/pkg/tenant"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		forwarded  string
		expected   string
	}{
		{"remote address", "198.51.100.7:5123", "", "198.51.100.7"},
		{"forwarded chain", "10.0.0.1:80", "203.0.113.9, 10.0.0.1", "203.0.113.9"},
		{"no port", "198.51.100.7", "", "198.51.100.7"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			assert.Equal(t, tt.expected, ClientIP(req))
		})
	}
}

func TestRequestID(t *testing.T) {
	var scoped bool
	handler := RequestID(logging.Discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scoped = logging.FromContext(r.Context(), nil) != nil
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
	generated := w.Header().Get(RequestIDHeader)
	assert.Len(t, generated, 36)

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(RequestIDHeader, "6f1d7a52-0c8e-4b8e-9d4a-2f3c1b0a9e87")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, "6f1d7a52-0c8e-4b8e-9d4a-2f3c1b0a9e87", w.Header().Get(RequestIDHeader))

	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set(RequestIDHeader, "<script>")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.NotEqual(t, "<script>", w.Header().Get(RequestIDHeader))
	assert.True(t, scoped)
}

type tenantFixture struct {
	router   *mux.Router
	registry *memory.Registry
	limiter  *ratelimit.Limiter
}

func newTenantFixture(t *testing.T) *tenantFixture {
	t.Helper()
	registry := memory.NewRegistry()
	for _, p := range memory.DefaultPlans() {
		registry.AddPlan(p)
	}
	registry.AddPlan(model.SubscriptionPlan{ID: 9, Code: "tiny", Tier: model.TierFree, APIRateLimit: 2, APIRateWindowSeconds: 60})
	_, err := registry.AddTenant(model.Tenant{ID: 1, Slug: "greenfield", Status: model.TenantStatusActive, PlanID: 9})
	require.NoError(t, err)

	clk := clock.NewMock()
	cache, err := tenant.NewCache(16, time.Minute, clk)
	require.NoError(t, err)
	resolver := tenant.NewResolver(registry, session.NewMemoryStore(time.Hour, clk), cache,
		tenant.ResolverConfig{BaseDomain: "schools.test", Reserved: []string{"www"}}, logging.Discard(), nil)
	dir := tenant.NewDirectory(registry, memory.NewCluster(), tenant.RetryPolicy{})
	limiter := ratelimit.New(ratelimit.Config{Shards: 2}, nil, clk, logging.Discard(), nil)

	router := mux.NewRouter()
	router.Use(ResolveTenant(resolver, "sid", logging.Discard()), TenantRateLimit(limiter, dir, logging.Discard()))
	router.HandleFunc("/students", func(w http.ResponseWriter, r *http.Request) {
		if tn, ok := tenant.CurrentTenant(r.Context()); ok {
			w.Header().Set("X-Tenant", tn.Slug)
		}
		w.WriteHeader(http.StatusOK)
	})
	return &tenantFixture{router: router, registry: registry, limiter: limiter}
}

func (f *tenantFixture) get(host string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", "/students", nil)
	req.Host = host
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestTenantRateLimit(t *testing.T) {
	f := newTenantFixture(t)

	for i := 0; i < 2; i++ {
		w := f.get("greenfield.schools.test")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "greenfield", w.Header().Get("X-Tenant"))
		assert.Equal(t, "2", w.Header().Get(HeaderLimit))
	}

	w := f.get("greenfield.schools.test")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "0", w.Header().Get(HeaderRemaining))
	assert.Equal(t, "60", w.Header().Get(HeaderRetryAfter))

	w = f.get("www.schools.test")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get(HeaderLimit))
}

func TestResolveTenantUnavailable(t *testing.T) {
	f := newTenantFixture(t)
	f.registry.SetUnavailable(context.DeadlineExceeded)

	w := f.get("greenfield.schools.test")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.NotContains(t, w.Body.String(), "deadline")
}

func TestMetricsMiddleware(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	router := mux.NewRouter()
	router.Use(Metrics(m))
	router.HandleFunc("/tenants/{id}/migrate", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})

	for _, id := range []string{"1", "2"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/tenants/"+id+"/migrate", nil))
	}
	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/tenants/{id}/migrate", "202")))
}

func TestGlobalRateLimitMemory(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	handler := GlobalRateLimit(GlobalLimitConfig{RequestsPerSecond: 1, Store: "memory"}, logging.Discard(), m)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, httptest.NewRequest("GET", "/", nil))
	second := httptest.NewRecorder()
	handler.ServeHTTP(second, httptest.NewRequest("GET", "/", nil))

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GlobalLimitRejects))
}

func TestGlobalRateLimitRedisFallback(t *testing.T) {
	handler := GlobalRateLimit(GlobalLimitConfig{RequestsPerSecond: 5, Store: "redis", RedisURL: "::not a url::"}, logging.Discard(), nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
