package middleware

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/doodlesbykumbi/schoolhost/pkg/logging"
	"github.com/doodlesbykumbi/schoolhost/pkg/tenant"
)

// ResolveTenant resolves the tenant of every request once and stores the
// resolution on the request context. Requests without a tenant pass
// through untouched; a failing registry answers 503.
func ResolveTenant(resolver *tenant.Resolver, cookieName string, logger logrus.FieldLogger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := tenant.FromContext(r.Context()); ok {
				next.ServeHTTP(w, r)
				return
			}

			req := tenant.Request{Host: r.Host, Path: r.URL.Path}
			if cookieName != "" {
				if c, err := r.Cookie(cookieName); err == nil {
					req.SessionID = c.Value
				}
			}

			res, err := resolver.Resolve(r.Context(), req)
			if err != nil {
				logging.FromContext(r.Context(), logger).WithError(err).Error("tenant resolution failed")
				writeError(w, http.StatusServiceUnavailable, "the service is temporarily unavailable, please retry later")
				return
			}
			if res == nil {
				next.ServeHTTP(w, r)
				return
			}

			ctx := tenant.WithResolution(r.Context(), res)
			entry := logging.FromContext(ctx, logger).WithField("tenant_id", res.Tenant.ID)
			ctx = logging.WithLogger(ctx, entry)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
