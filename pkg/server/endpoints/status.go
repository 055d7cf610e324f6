package endpoints

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/doodlesbykumbi/schoolhost/pkg/schema"
	"github.com/doodlesbykumbi/schoolhost/pkg/server"
	"github.com/doodlesbykumbi/schoolhost/pkg/server/store"
)

// StatusResponse is the body of GET /.
type StatusResponse struct {
	Service       string `json:"service"`
	Version       string `json:"version"`
	SchemaVersion int    `json:"schema_version"`
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// RegisterStatusEndpoints registers the status, health and metrics endpoints
func RegisterStatusEndpoints(s *server.Server) {
	s.Router.HandleFunc("/", handleStatus()).Methods("GET")
	s.Router.HandleFunc("/healthz", handleHealth(s.Health, s.Config.QueryTimeout)).Methods("GET")

	gatherer := s.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	s.Router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods("GET")
}

func handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		version := os.Getenv("SCHOOLHOST_VERSION")
		if version == "" {
			version = "0.1.0"
		}
		respondWithJSON(w, http.StatusOK, StatusResponse{
			Service:       "schoolhost",
			Version:       version,
			SchemaVersion: schema.Version(),
		})
	}
}

func handleHealth(checks []store.HealthStore, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		for _, check := range checks {
			if err := check.CheckConnectivity(ctx); err != nil {
				respondWithJSON(w, http.StatusServiceUnavailable, HealthResponse{
					Status: "error",
					Error:  "database connectivity check failed",
				})
				return
			}
		}
		respondWithJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
	}
}
