package endpoints

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/doodlesbykumbi/schoolhost/pkg/errs"
	"github.com/doodlesbykumbi/schoolhost/pkg/ratelimit"
	"github.com/doodlesbykumbi/schoolhost/pkg/server"
	"github.com/doodlesbykumbi/schoolhost/pkg/server/middleware"
)

// AllowRequest asks the limiter about one call. A zero limit or window
// takes the configured default.
type AllowRequest struct {
	Endpoint      string `json:"endpoint"`
	ClientID      string `json:"client_id"`
	Limit         int    `json:"limit"`
	WindowSeconds int    `json:"window_seconds"`
}

// RegisterRateLimitEndpoints registers the rate limiter endpoint
func RegisterRateLimitEndpoints(s *server.Server) {
	s.Router.Handle("/tenants/{id:[0-9]+}/ratelimit", s.Admin(handleAllow(s.Limiter, s.Logger))).Methods("POST")
}

func handleAllow(limiter *ratelimit.Limiter, logger logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := tenantID(r)
		if err != nil {
			respondWithErr(w, r, logger, err)
			return
		}
		var req AllowRequest
		if err := decodeJSON(w, r, &req); err != nil {
			respondWithErr(w, r, logger, err)
			return
		}
		if req.Endpoint == "" || req.ClientID == "" {
			respondWithErr(w, r, logger, errs.Invalid("endpoints.allow", "endpoint and client_id are required"))
			return
		}
		if req.Limit < 0 || req.WindowSeconds < 0 {
			respondWithErr(w, r, logger, errs.Invalid("endpoints.allow", "limit and window_seconds must not be negative"))
			return
		}

		d := limiter.Allow(r.Context(), id, req.Endpoint, req.ClientID, req.Limit, time.Duration(req.WindowSeconds)*time.Second)
		middleware.SetRateLimitHeaders(w, d)
		status := http.StatusOK
		if !d.Allowed {
			status = http.StatusTooManyRequests
		}
		respondWithJSON(w, status, d)
	}
}
