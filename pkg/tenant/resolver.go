package tenant

import (
	"context"
	"net"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/doodlesbykumbi/schoolhost/pkg/db"
	"github.com/doodlesbykumbi/schoolhost/pkg/errs"
	"github.com/doodlesbykumbi/schoolhost/pkg/metrics"
	"github.com/doodlesbykumbi/schoolhost/pkg/model"
	"github.com/doodlesbykumbi/schoolhost/pkg/session"
)

// Source names the request attribute a tenant was resolved from.
type Source string

const (
	SourceSubdomain Source = "subdomain"
	SourcePath      Source = "path"
	SourceSession   Source = "session"
)

var slugRgx = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

// Finder is the part of the registry the resolver reads.
type Finder interface {
	FindTenant(ctx context.Context, id int64) (*model.Tenant, error)
	FindTenantBySlug(ctx context.Context, slug string) (*model.Tenant, error)
}

// Request is what the resolver looks at.
type Request struct {
	Host      string
	Path      string
	SessionID string
}

// Resolution is a resolved tenant and where it came from.
type Resolution struct {
	Tenant *model.Tenant
	Source Source
}

type ResolverConfig struct {
	// BaseDomain is the parent domain of tenant subdomains. Subdomain
	// resolution is off while it is empty.
	BaseDomain string
	// Reserved labels never name a tenant, neither as subdomain nor as
	// first path segment.
	Reserved []string
	// Timeout bounds every registry and session lookup.
	Timeout time.Duration
}

// Resolver maps a request onto a tenant.
type Resolver struct {
	finder   Finder
	sessions session.Store
	cache    *Cache
	cfg      ResolverConfig
	logger   logrus.FieldLogger
	metrics  *metrics.Metrics
}

// NewResolver creates a new Resolver. sessions may be nil, which turns
// session resolution off.
func NewResolver(finder Finder, sessions session.Store, cache *Cache, cfg ResolverConfig, logger logrus.FieldLogger, m *metrics.Metrics) *Resolver {
	cfg.BaseDomain = normalizeHost(cfg.BaseDomain)
	return &Resolver{
		finder:   finder,
		sessions: sessions,
		cache:    cache,
		cfg:      cfg,
		logger:   logger,
		metrics:  m,
	}
}

// Resolve tries the subdomain, then the first path segment, then the
// tenant bound to the session. The first match wins. Deleted tenants never
// match. A nil resolution with a nil error means no tenant.
func (r *Resolver) Resolve(ctx context.Context, req Request) (*Resolution, error) {
	res, err := r.resolve(ctx, req)
	if r.metrics != nil && err == nil {
		source := "none"
		if res != nil {
			source = string(res.Source)
		}
		r.metrics.TenantResolutions.WithLabelValues(source).Inc()
	}
	return res, err
}

func (r *Resolver) resolve(ctx context.Context, req Request) (*Resolution, error) {
	if slug := r.subdomain(req.Host); slug != "" {
		t, err := r.bySlug(ctx, slug)
		if err != nil {
			return nil, err
		}
		if t != nil {
			return &Resolution{Tenant: t, Source: SourceSubdomain}, nil
		}
	}

	if slug := r.pathSegment(req.Path); slug != "" {
		t, err := r.bySlug(ctx, slug)
		if err != nil {
			return nil, err
		}
		if t != nil {
			return &Resolution{Tenant: t, Source: SourcePath}, nil
		}
	}

	if req.SessionID != "" && r.sessions != nil {
		lookupCtx, cancel := db.WithTimeout(ctx, r.cfg.Timeout)
		values, ok, err := r.sessions.Get(lookupCtx, req.SessionID)
		cancel()
		if err != nil {
			return nil, errs.Wrap("tenant.Resolve", 0, err)
		}
		if ok && values.TenantID > 0 {
			t, err := r.byID(ctx, values.TenantID)
			if err != nil {
				return nil, err
			}
			if t != nil {
				return &Resolution{Tenant: t, Source: SourceSession}, nil
			}
		}
	}
	return nil, nil
}

// subdomain returns the tenant label of host, or "" when host is not a
// direct child of the base domain.
func (r *Resolver) subdomain(host string) string {
	if r.cfg.BaseDomain == "" {
		return ""
	}
	host = normalizeHost(host)
	label := strings.TrimSuffix(host, "."+r.cfg.BaseDomain)
	if label == host || strings.Contains(label, ".") {
		return ""
	}
	return r.candidate(label)
}

func (r *Resolver) pathSegment(path string) string {
	path = strings.TrimPrefix(path, "/")
	if i := strings.IndexByte(path, '/'); i >= 0 {
		path = path[:i]
	}
	return r.candidate(strings.ToLower(path))
}

func (r *Resolver) candidate(label string) string {
	if !slugRgx.MatchString(label) {
		return ""
	}
	for _, reserved := range r.cfg.Reserved {
		if strings.EqualFold(reserved, label) {
			return ""
		}
	}
	return label
}

func (r *Resolver) bySlug(ctx context.Context, slug string) (*model.Tenant, error) {
	if t, ok := r.cache.BySlug(slug); ok {
		r.hit()
		return t, nil
	}
	r.miss()

	lookupCtx, cancel := db.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()
	t, err := r.finder.FindTenantBySlug(lookupCtx, slug)
	return r.found(t, err, logrus.Fields{"slug": slug})
}

func (r *Resolver) byID(ctx context.Context, id int64) (*model.Tenant, error) {
	if t, ok := r.cache.ByID(id); ok {
		r.hit()
		return t, nil
	}
	r.miss()

	lookupCtx, cancel := db.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()
	t, err := r.finder.FindTenant(lookupCtx, id)
	return r.found(t, err, logrus.Fields{"tenant_id": id})
}

func (r *Resolver) found(t *model.Tenant, err error, fields logrus.Fields) (*model.Tenant, error) {
	if errs.Is(err, errs.ENotFound) {
		return nil, nil
	}
	if err != nil {
		r.logger.WithFields(fields).WithError(err).Error("tenant lookup failed")
		return nil, errs.Wrap("tenant.Resolve", 0, err)
	}
	if t.Status == model.TenantStatusDeleted {
		return nil, nil
	}
	r.cache.Add(t)
	return t, nil
}

func (r *Resolver) hit() {
	if r.metrics != nil {
		r.metrics.TenantCacheHits.Inc()
	}
}

func (r *Resolver) miss() {
	if r.metrics != nil {
		r.metrics.TenantCacheMisses.Inc()
	}
}

func normalizeHost(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	raw = strings.ToLower(raw)
	if h, _, err := net.SplitHostPort(raw); err == nil {
		raw = h
	}
	return strings.TrimSuffix(raw, ".")
}
