package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/doodlesbykumbi/schoolhost/pkg/logging"
	"github.com/doodlesbykumbi/schoolhost/pkg/ratelimit"
	"github.com/doodlesbykumbi/schoolhost/pkg/tenant"
)

// Rate limit response headers.
const (
	HeaderLimit      = "X-RateLimit-Limit"
	HeaderRemaining  = "X-RateLimit-Remaining"
	HeaderReset      = "X-RateLimit-Reset"
	HeaderRetryAfter = "Retry-After"
)

// SetRateLimitHeaders writes the headers describing d.
func SetRateLimitHeaders(w http.ResponseWriter, d ratelimit.Decision) {
	w.Header().Set(HeaderLimit, strconv.Itoa(d.Limit))
	w.Header().Set(HeaderRemaining, strconv.Itoa(d.Remaining))
	w.Header().Set(HeaderReset, strconv.FormatInt(d.ResetAt.Unix(), 10))
	if !d.Allowed {
		secs := int(math.Ceil(d.RetryAfter.Seconds()))
		if secs < 1 {
			secs = 1
		}
		w.Header().Set(HeaderRetryAfter, strconv.Itoa(secs))
	}
}

// TenantRateLimit applies the plan rate limit of the resolved tenant per
// route and client address. Requests without a tenant are not limited
// here.
func TenantRateLimit(limiter *ratelimit.Limiter, dir *tenant.Directory, logger logrus.FieldLogger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t, ok := tenant.CurrentTenant(r.Context())
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			limit, window := 0, time.Duration(0)
			plan, err := dir.Plan(r.Context(), t)
			if err != nil {
				logging.FromContext(r.Context(), logger).WithError(err).Warn("using default rate limit, plan lookup failed")
			} else {
				limit = plan.APIRateLimit
				window = time.Duration(plan.APIRateWindowSeconds) * time.Second
			}

			d := limiter.Allow(r.Context(), t.ID, routeName(r), ClientIP(r), limit, window)
			SetRateLimitHeaders(w, d)
			if !d.Allowed {
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
