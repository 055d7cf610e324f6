package endpoints

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/doodlesbykumbi/schoolhost/pkg/errs"
	"github.com/doodlesbykumbi/schoolhost/pkg/logging"
)

func respondWithError(w http.ResponseWriter, code int, payload interface{}) {
	respondWithJSON(w, code, map[string]interface{}{"error": payload})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}

// respondWithErr maps err onto its status code. Infrastructure and
// internal failures are logged and answered with a generic message.
func respondWithErr(w http.ResponseWriter, r *http.Request, logger logrus.FieldLogger, err error) {
	status := errs.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logging.FromContext(r.Context(), logger).WithError(err).Error("request failed")
	}
	respondWithError(w, status, errs.PublicMessage(err))
}

func tenantID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		return 0, errs.Invalid("endpoints.tenantID", "tenant id must be a positive integer")
	}
	return id, nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errs.Invalid("endpoints.decodeJSON", "malformed request body: %v", err)
	}
	return nil
}
