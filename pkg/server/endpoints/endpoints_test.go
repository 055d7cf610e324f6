package endpoints

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doodlesbykumbi/schoolhost/pkg/app"
	"github.com/doodlesbykumbi/schoolhost/pkg/config"
	"github.com/doodlesbykumbi/schoolhost/pkg/logging"
	"github.com/doodlesbykumbi/schoolhost/pkg/model"
	"github.com/doodlesbykumbi/schoolhost/pkg/server"
	"github.com/doodlesbykumbi/schoolhost/pkg/server/store/memory"
)

type testEnv struct {
	srv      *server.Server
	registry *memory.Registry
	cluster  *memory.Cluster
	token    string
}

func newTestEnv(t *testing.T, mutate func(*config.Config)) *testEnv {
	t.Helper()
	cfg := config.Default()
	cfg.BaseDomain = "schools.test"
	cfg.AdminTokenSecret = "test-secret"
	cfg.RetryAttempts = 0
	if mutate != nil {
		mutate(cfg)
	}

	clk := clock.NewMock()
	clk.Set(time.Date(2024, 9, 1, 8, 0, 0, 0, time.UTC))
	backends, registry, cluster := app.Memory()
	a, err := app.New(cfg, logging.Discard(), backends, clk)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	for _, tn := range []model.Tenant{
		{ID: 42, Slug: "greenfield", Name: "Greenfield Academy", Status: model.TenantStatusPending, PlanID: 2},
		{ID: 43, Slug: "riverside", Name: "Riverside High", Status: model.TenantStatusPending, PlanID: 1},
	} {
		_, err := registry.AddTenant(tn)
		require.NoError(t, err)
	}

	srv := server.NewServer(cfg, logging.Discard(), a.Components(), "127.0.0.1", "0")
	RegisterAll(srv)

	token, err := a.AdminAuth.Issue("ops@platform", time.Hour)
	require.NoError(t, err)
	return &testEnv{srv: srv, registry: registry, cluster: cluster, token: token}
}

func (e *testEnv) do(t *testing.T, method, target string, body interface{}, admin bool) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	if admin {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}
	w := httptest.NewRecorder()
	e.srv.Router.ServeHTTP(w, req)
	return w
}

var admin = map[string]string{"name": "A. Admin", "email": "a@x.test", "phone": "+2340000000", "password": "secret123"}

func TestAdminRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, "POST", "/tenants/42/provision", admin, false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest("POST", "/tenants/42/provision", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	w = httptest.NewRecorder()
	env.srv.Router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Nil(t, env.cluster.Get("school_42"))
}

func TestProvisionEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, "POST", "/tenants/42/provision", admin, true)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var body ProvisionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, "school_42", body.Database)
	assert.NotZero(t, body.AdminID)

	w = env.do(t, "POST", "/tenants/42/provision", admin, true)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(t, "POST", "/tenants/43/provision", map[string]string{"name": "B"}, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, "POST", "/tenants/43/provision", map[string]string{"nickname": "B"}, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMigrateEndpoints(t *testing.T) {
	env := newTestEnv(t, nil)
	require.Equal(t, http.StatusCreated, env.do(t, "POST", "/tenants/42/provision", admin, true).Code)

	w := env.do(t, "POST", "/tenants/42/migrate", nil, true)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"success":true`)

	w = env.do(t, "POST", "/tenants/migrate", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"migrated":1`)

	w = env.do(t, "POST", "/tenants/43/migrate", nil, true)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestQuotaEndpoints(t *testing.T) {
	env := newTestEnv(t, nil)
	require.Equal(t, http.StatusCreated, env.do(t, "POST", "/tenants/43/provision", admin, true).Code)

	w := env.do(t, "GET", "/tenants/43/quota/files", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"used_bytes":0`)

	w = env.do(t, "POST", "/tenants/43/quota/files", UsageRequest{Delta: 1024}, true)
	require.Equal(t, http.StatusOK, w.Code)
	var usage UsageResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &usage))
	assert.True(t, usage.Applied)
	require.NotNil(t, usage.Status)
	assert.EqualValues(t, 1024, usage.Status.Used)

	w = env.do(t, "POST", "/tenants/43/quota/files", UsageRequest{Delta: 1 << 40}, true)
	assert.Equal(t, http.StatusInsufficientStorage, w.Code)

	w = env.do(t, "GET", "/tenants/43/quota/videos", nil, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, "GET", "/tenants/42/quota/files", nil, true)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRateLimitEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)
	req := AllowRequest{Endpoint: "/api/students", ClientID: "203.0.113.9", Limit: 2, WindowSeconds: 60}

	for i := 0; i < 2; i++ {
		w := env.do(t, "POST", "/tenants/42/ratelimit", req, true)
		require.Equal(t, http.StatusOK, w.Code)
	}
	w := env.do(t, "POST", "/tenants/42/ratelimit", req, true)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "60", w.Header().Get("Retry-After"))

	w = env.do(t, "POST", "/tenants/42/ratelimit", AllowRequest{Endpoint: "/x"}, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestResolveEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)

	get := func(host, path, sid string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("GET", path, nil)
		req.Host = host
		if sid != "" {
			req.AddCookie(&http.Cookie{Name: "sid", Value: sid})
		}
		w := httptest.NewRecorder()
		env.srv.Router.ServeHTTP(w, req)
		return w
	}

	w := get("greenfield.schools.test", "/api/tenant", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"source":"subdomain"`)
	assert.NotEmpty(t, w.Header().Get("X-RateLimit-Limit"))

	w = get("schools.test", "/riverside/api/tenant", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"slug":"riverside"`)
	assert.Contains(t, w.Body.String(), `"source":"path"`)

	w = get("www.schools.test", "/api/tenant", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	bind := env.do(t, "PUT", "/sessions/0b6c1c1e-2f1a-4c3e-9a51-0f7c3c1b2d4e", BindRequest{TenantID: 43, UserID: 1}, true)
	require.Equal(t, http.StatusNoContent, bind.Code, bind.Body.String())

	w = get("schools.test", "/api/tenant", "0b6c1c1e-2f1a-4c3e-9a51-0f7c3c1b2d4e")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"source":"session"`)

	conflict := env.do(t, "PUT", "/sessions/0b6c1c1e-2f1a-4c3e-9a51-0f7c3c1b2d4e", BindRequest{TenantID: 42, UserID: 1}, true)
	assert.Equal(t, http.StatusConflict, conflict.Code)
}

func TestDropEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)
	require.Equal(t, http.StatusCreated, env.do(t, "POST", "/tenants/42/provision", admin, true).Code)

	w := env.do(t, "DELETE", "/tenants/42/database", nil, true)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.NotNil(t, env.cluster.Get("school_42"))
}

func TestGlobalRateLimit(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) {
		cfg.GlobalRateLimitRPS = 2
	})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		env.srv.Router.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)
	env.do(t, "GET", "/", nil, false)

	w := env.do(t, "GET", "/metrics", nil, false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_requests_total")
}
