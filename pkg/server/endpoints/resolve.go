package endpoints

import (
	"net/http"

	"github.com/doodlesbykumbi/schoolhost/pkg/server"
	"github.com/doodlesbykumbi/schoolhost/pkg/tenant"
)

// TenantResponse describes the tenant resolved for a request.
type TenantResponse struct {
	ID     int64  `json:"id"`
	Slug   string `json:"slug"`
	Name   string `json:"name"`
	Status string `json:"status"`
	Source string `json:"source"`
}

// RegisterResolveEndpoint registers GET /api/tenant and its path form
// GET /{slug}/api/tenant.
func RegisterResolveEndpoint(s *server.Server) {
	s.Router.Handle("/api/tenant", s.Tenanted(handleResolve())).Methods("GET")
	s.Router.Handle("/{slug}/api/tenant", s.Tenanted(handleResolve())).Methods("GET")
}

func handleResolve() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, ok := tenant.FromContext(r.Context())
		if !ok {
			respondWithError(w, http.StatusNotFound, "no tenant matches this request")
			return
		}
		respondWithJSON(w, http.StatusOK, TenantResponse{
			ID:     res.Tenant.ID,
			Slug:   res.Tenant.Slug,
			Name:   res.Tenant.Name,
			Status: res.Tenant.Status.String(),
			Source: string(res.Source),
		})
	}
}
