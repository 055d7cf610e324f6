package tenant

import (
	"context"

	"github.com/doodlesbykumbi/schoolhost/pkg/model"
)

type ctxKey struct{}

// WithResolution stores r on ctx so it is resolved at most once per request.
func WithResolution(ctx context.Context, r *Resolution) context.Context {
	return context.WithValue(ctx, ctxKey{}, r)
}

// FromContext returns the resolution stored by WithResolution.
func FromContext(ctx context.Context) (*Resolution, bool) {
	r, ok := ctx.Value(ctxKey{}).(*Resolution)
	return r, ok && r != nil
}

// CurrentTenant returns the tenant resolved for the request, if any.
func CurrentTenant(ctx context.Context) (*model.Tenant, bool) {
	r, ok := FromContext(ctx)
	if !ok {
		return nil, false
	}
	return r.Tenant, true
}
