package endpoints

import (
	"github.com/doodlesbykumbi/schoolhost/pkg/server"
)

// RegisterAll registers all API endpoints on the server
func RegisterAll(srv *server.Server) {
	RegisterStatusEndpoints(srv)
	RegisterTenantEndpoints(srv)
	RegisterQuotaEndpoints(srv)
	RegisterRateLimitEndpoints(srv)
	RegisterSessionEndpoints(srv)
	RegisterResolveEndpoint(srv)
}
