package endpoints

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/doodlesbykumbi/schoolhost/pkg/errs"
	"github.com/doodlesbykumbi/schoolhost/pkg/migrator"
	"github.com/doodlesbykumbi/schoolhost/pkg/provision"
	"github.com/doodlesbykumbi/schoolhost/pkg/server"
	"github.com/doodlesbykumbi/schoolhost/pkg/server/middleware"
)

// ProvisionResponse is the body of a provisioning answer.
type ProvisionResponse struct {
	TenantID     int64    `json:"tenant_id"`
	Database     string   `json:"database"`
	Success      bool     `json:"success"`
	Version      int      `json:"version"`
	FailedTables []string `json:"failed_tables,omitempty"`
	SeededRows   int64    `json:"seeded_rows"`
	AdminID      int64    `json:"admin_id,omitempty"`
	Error        string   `json:"error,omitempty"`
}

// RegisterTenantEndpoints registers the database lifecycle endpoints
func RegisterTenantEndpoints(s *server.Server) {
	// Registered before /tenants/{id}/migrate so "migrate" is never read as an id.
	s.Router.Handle("/tenants/migrate", s.Admin(handleMigrateAll(s.Migrator, s.Logger))).Methods("POST")
	s.Router.Handle("/tenants/{id:[0-9]+}/provision", s.Admin(handleProvision(s.Provisioner, s.Logger))).Methods("POST")
	s.Router.Handle("/tenants/{id:[0-9]+}/migrate", s.Admin(handleMigrate(s.Migrator, s.Logger))).Methods("POST")
	s.Router.Handle("/tenants/{id:[0-9]+}/database", s.Admin(handleDrop(s.Provisioner, s.Logger))).Methods("DELETE")
}

func handleProvision(p *provision.Provisioner, logger logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := tenantID(r)
		if err != nil {
			respondWithErr(w, r, logger, err)
			return
		}
		var admin provision.Admin
		if err := decodeJSON(w, r, &admin); err != nil {
			respondWithErr(w, r, logger, err)
			return
		}

		res, err := p.Provision(r.Context(), provision.Request{TenantID: id, Admin: admin, ClientIP: middleware.ClientIP(r)})
		if res == nil {
			respondWithErr(w, r, logger, err)
			return
		}

		body := ProvisionResponse{
			TenantID:     res.TenantID,
			Database:     res.Database,
			Success:      res.Success,
			Version:      res.Version,
			FailedTables: res.FailedTables,
			SeededRows:   res.SeededRows,
			AdminID:      res.AdminID,
		}
		status := http.StatusCreated
		if err != nil {
			status = errs.HTTPStatus(err)
			body.Error = errs.PublicMessage(err)
			if status >= http.StatusInternalServerError {
				logger.WithError(err).WithField("tenant_id", id).Error("provisioning failed")
			}
		}
		respondWithJSON(w, status, body)
	}
}

func handleMigrate(m *migrator.Migrator, logger logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := tenantID(r)
		if err != nil {
			respondWithErr(w, r, logger, err)
			return
		}
		res, err := m.MigrateTenant(r.Context(), id)
		if err != nil && (res == nil || !errs.Is(err, errs.EPartialFailure)) {
			respondWithErr(w, r, logger, err)
			return
		}
		respondWithJSON(w, errs.HTTPStatus(err), res)
	}
}

func handleMigrateAll(m *migrator.Migrator, logger logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summary, err := m.MigrateAll(r.Context())
		if err != nil && summary == nil {
			respondWithErr(w, r, logger, err)
			return
		}
		status := http.StatusOK
		if summary.Failed > 0 {
			status = http.StatusMultiStatus
		}
		respondWithJSON(w, status, summary)
	}
}

func handleDrop(p *provision.Provisioner, logger logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := tenantID(r)
		if err != nil {
			respondWithErr(w, r, logger, err)
			return
		}
		actor, _ := middleware.AdminFromContext(r.Context())
		if err := p.Drop(r.Context(), id, actor); err != nil {
			respondWithErr(w, r, logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
