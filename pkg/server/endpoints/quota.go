package endpoints

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/doodlesbykumbi/schoolhost/pkg/model"
	"github.com/doodlesbykumbi/schoolhost/pkg/quota"
	"github.com/doodlesbykumbi/schoolhost/pkg/server"
)

// UsageRequest is the body of POST /tenants/{id}/quota/{category}.
type UsageRequest struct {
	Delta int64 `json:"delta"`
}

// UsageResponse reports whether a usage update was applied.
type UsageResponse struct {
	Applied bool          `json:"applied"`
	Status  *quota.Status `json:"status,omitempty"`
}

// RegisterQuotaEndpoints registers the storage quota endpoints
func RegisterQuotaEndpoints(s *server.Server) {
	s.Router.Handle("/tenants/{id:[0-9]+}/quota/{category}", s.Admin(handleCheckLimit(s.Quota, s.Logger))).Methods("GET")
	s.Router.Handle("/tenants/{id:[0-9]+}/quota/{category}", s.Admin(handleUpdateUsage(s.Quota, s.Logger))).Methods("POST")
}

func handleCheckLimit(tracker *quota.Tracker, logger logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := tenantID(r)
		if err != nil {
			respondWithErr(w, r, logger, err)
			return
		}
		st, err := tracker.CheckLimit(r.Context(), id, model.StorageCategory(mux.Vars(r)["category"]))
		if err != nil {
			respondWithErr(w, r, logger, err)
			return
		}
		respondWithJSON(w, http.StatusOK, st)
	}
}

func handleUpdateUsage(tracker *quota.Tracker, logger logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := tenantID(r)
		if err != nil {
			respondWithErr(w, r, logger, err)
			return
		}
		var req UsageRequest
		if err := decodeJSON(w, r, &req); err != nil {
			respondWithErr(w, r, logger, err)
			return
		}
		category := model.StorageCategory(mux.Vars(r)["category"])
		applied, err := tracker.UpdateUsage(r.Context(), id, category, req.Delta)
		if err != nil {
			respondWithErr(w, r, logger, err)
			return
		}
		st, err := tracker.CheckLimit(r.Context(), id, category)
		if err != nil {
			logger.WithError(err).WithField("tenant_id", id).Warn("usage applied but status lookup failed")
			st = nil
		}
		respondWithJSON(w, http.StatusOK, UsageResponse{Applied: applied, Status: st})
	}
}
