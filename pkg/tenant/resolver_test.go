package tenant

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doodlesbykumbi/schoolhost/pkg/errs"
	"github.com/doodlesbykumbi/schoolhost/pkg/logging"
	"github.com/doodlesbykumbi/schoolhost/pkg/model"
	"github.com/doodlesbykumbi/schoolhost/pkg/server/store/memory"
	"github.com/doodlesbykumbi/schoolhost/pkg/session"
)

type resolverFixture struct {
	registry *memory.Registry
	sessions *session.MemoryStore
	resolver *Resolver
	binder   *Binder
}

func newResolverFixture(t *testing.T) *resolverFixture {
	t.Helper()
	registry := memory.NewRegistry()
	for _, tenant := range []model.Tenant{
		{ID: 1, Slug: "greenfield", Status: model.TenantStatusActive},
		{ID: 2, Slug: "riverside", Status: model.TenantStatusTrial},
		{ID: 3, Slug: "closed", Status: model.TenantStatusDeleted},
	} {
		_, err := registry.AddTenant(tenant)
		require.NoError(t, err)
	}
	sessions := session.NewMemoryStore(time.Hour, nil)
	cache, err := NewCache(16, time.Minute, nil)
	require.NoError(t, err)

	cfg := ResolverConfig{BaseDomain: "schools.test", Reserved: []string{"www", "api", "admin"}}
	return &resolverFixture{
		registry: registry,
		sessions: sessions,
		resolver: NewResolver(registry, sessions, cache, cfg, logging.Discard(), nil),
		binder:   NewBinder(registry, sessions, time.Second, logging.Discard()),
	}
}

func TestResolve(t *testing.T) {
	ctx := context.Background()
	f := newResolverFixture(t)
	require.NoError(t, f.sessions.Bind(ctx, "sid", session.Values{TenantID: 2, UserID: 5}))

	tests := []struct {
		name   string
		req    Request
		want   int64
		source Source
	}{
		{"subdomain", Request{Host: "greenfield.schools.test"}, 1, SourceSubdomain},
		{"subdomain with port and case", Request{Host: "GreenField.Schools.Test:8080"}, 1, SourceSubdomain},
		{"path", Request{Host: "schools.test", Path: "/riverside/dashboard"}, 2, SourcePath},
		{"session", Request{Host: "schools.test", Path: "/", SessionID: "sid"}, 2, SourceSession},
		{"subdomain wins over session", Request{Host: "greenfield.schools.test", SessionID: "sid"}, 1, SourceSubdomain},
		{"unknown subdomain falls through to path", Request{Host: "nobody.schools.test", Path: "/riverside"}, 2, SourcePath},
		{"reserved subdomain is skipped", Request{Host: "www.schools.test", SessionID: "sid"}, 2, SourceSession},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res, err := f.resolver.Resolve(ctx, tc.req)
			require.NoError(t, err)
			require.NotNil(t, res)
			assert.Equal(t, tc.want, res.Tenant.ID)
			assert.Equal(t, tc.source, res.Source)
		})
	}
}

func TestResolveNoMatch(t *testing.T) {
	ctx := context.Background()
	f := newResolverFixture(t)

	for _, req := range []Request{
		{Host: "closed.schools.test"},
		{Host: "greenfield.other.test"},
		{Host: "a.greenfield.schools.test"},
		{Path: "/api/tenant"},
		{Path: "/closed"},
		{SessionID: "unknown"},
	} {
		res, err := f.resolver.Resolve(ctx, req)
		require.NoError(t, err)
		assert.Nil(t, res, "%+v", req)
	}
}

func TestResolveUsesCache(t *testing.T) {
	ctx := context.Background()
	f := newResolverFixture(t)

	res, err := f.resolver.Resolve(ctx, Request{Host: "greenfield.schools.test"})
	require.NoError(t, err)
	require.NotNil(t, res)

	f.registry.SetUnavailable(&errs.Error{Code: errs.EUnavailable, Msg: "registry down"})
	res, err = f.resolver.Resolve(ctx, Request{Host: "greenfield.schools.test"})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.EqualValues(t, 1, res.Tenant.ID)

	_, err = f.resolver.Resolve(ctx, Request{Host: "riverside.schools.test"})
	assert.True(t, errs.Is(err, errs.EUnavailable))
}

func TestBinder(t *testing.T) {
	ctx := context.Background()
	f := newResolverFixture(t)

	require.NoError(t, f.binder.Bind(ctx, "sid", 1, 10))
	res, err := f.resolver.Resolve(ctx, Request{SessionID: "sid"})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.EqualValues(t, 1, res.Tenant.ID)

	assert.True(t, errs.Is(f.binder.Bind(ctx, "sid", 2, 10), errs.EConflict))
	assert.True(t, errs.Is(f.binder.Bind(ctx, "", 1, 10), errs.EInvalid))
	assert.True(t, errs.Is(f.binder.Bind(ctx, "other", 3, 10), errs.ENotFound))
	assert.True(t, errs.Is(f.binder.Bind(ctx, "other", 99, 10), errs.ENotFound))

	require.NoError(t, f.binder.Unbind(ctx, "sid"))
	require.NoError(t, f.binder.Bind(ctx, "sid", 2, 10))
}

func TestContext(t *testing.T) {
	ctx := context.Background()
	_, ok := CurrentTenant(ctx)
	assert.False(t, ok)

	ctx = WithResolution(ctx, &Resolution{Tenant: &model.Tenant{ID: 7}, Source: SourcePath})
	tenant, ok := CurrentTenant(ctx)
	require.True(t, ok)
	assert.EqualValues(t, 7, tenant.ID)
}
