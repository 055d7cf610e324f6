package endpoints

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/doodlesbykumbi/schoolhost/pkg/server"
	"github.com/doodlesbykumbi/schoolhost/pkg/tenant"
)

// BindRequest binds a session to a tenant user.
type BindRequest struct {
	TenantID int64 `json:"tenant_id"`
	UserID   int64 `json:"user_id"`
}

// RegisterSessionEndpoints registers the session binding endpoints
func RegisterSessionEndpoints(s *server.Server) {
	s.Router.Handle("/sessions/{sid}", s.Admin(handleBind(s.Binder, s.Logger))).Methods("PUT")
	s.Router.Handle("/sessions/{sid}", s.Admin(handleUnbind(s.Binder, s.Logger))).Methods("DELETE")
}

func handleBind(binder *tenant.Binder, logger logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BindRequest
		if err := decodeJSON(w, r, &req); err != nil {
			respondWithErr(w, r, logger, err)
			return
		}
		if err := binder.Bind(r.Context(), mux.Vars(r)["sid"], req.TenantID, req.UserID); err != nil {
			respondWithErr(w, r, logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleUnbind(binder *tenant.Binder, logger logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := binder.Unbind(r.Context(), mux.Vars(r)["sid"]); err != nil {
			respondWithErr(w, r, logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
