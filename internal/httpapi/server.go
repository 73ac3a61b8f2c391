// Package httpapi exposes the node repository over a REST-JSON API.
//
// The adapter is deliberately thin: it parses wire parameters, resolves
// the calling principal and tenant, delegates to the repository, and
// maps the error taxonomy to HTTP status codes. All domain rules live
// behind the repo.Store interface.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/treelinehq/canopy/internal/ratelimiter"
	"github.com/treelinehq/canopy/pkg/content"
	"github.com/treelinehq/canopy/pkg/rendition"
	"github.com/treelinehq/canopy/pkg/repo"
)

// Principal and tenant travel in headers. There is no credential
// verification at this layer; authentication is expected to happen in
// front of the API (reverse proxy, gateway).
const (
	userHeader   = "X-Canopy-User"
	tenantHeader = "X-Canopy-Tenant"

	defaultTenant = "default"
)

// Server holds the HTTP adapter dependencies.
type Server struct {
	store      repo.Store
	contents   content.Store
	renditions *rendition.Manager
	limiter    *ratelimiter.RateLimiter
}

// New creates an API server. The rate limiter may be nil to disable
// throttling.
func New(store repo.Store, contents content.Store, renditions *rendition.Manager, limiter *ratelimiter.RateLimiter) *Server {
	return &Server{
		store:      store,
		contents:   contents,
		renditions: renditions,
		limiter:    limiter,
	}
}

// Router builds the chi router with all API routes mounted.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if s.limiter != nil {
		r.Use(s.limiter.Middleware)
	}

	r.Get("/health", s.HealthCheck)

	r.Route("/api", func(r chi.Router) {
		r.Route("/nodes/{id}", func(r chi.Router) {
			r.Get("/", s.GetNode)
			r.Put("/", s.UpdateNode)
			r.Delete("/", s.DeleteNode)

			r.Get("/children", s.ListChildren)
			r.Post("/children", s.CreateNode)

			r.Post("/move", s.MoveNode)
			r.Post("/copy", s.CopyNode)

			r.Get("/content", s.DownloadContent)
			r.Put("/content", s.UploadContent)

			r.Get("/versions", s.ListVersions)
			r.Delete("/versions/{label}", s.DeleteVersion)

			r.Post("/lock", s.LockNode)
			r.Post("/unlock", s.UnlockNode)

			r.Get("/permissions", s.GetPermissions)
			r.Put("/permissions", s.SetPermissions)

			r.Get("/associations", s.ListAssociations)
			r.Post("/associations", s.CreateAssociation)

			r.Post("/renditions", s.RequestRendition)
			r.Get("/renditions/{name}", s.GetRendition)
			r.Delete("/renditions/{name}", s.DeleteRendition)
		})

		r.Route("/archive/{id}", func(r chi.Router) {
			r.Get("/", s.GetArchivedNode)
			r.Delete("/", s.PurgeNode)
			r.Post("/restore", s.RestoreNode)
		})
	})

	return r
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// opContext builds the repository operation context from the request
// headers. A missing user header falls back to "guest", which holds no
// grants beyond GROUP_EVERYONE defaults.
func opContext(r *http.Request) *repo.OperationContext {
	principal := r.Header.Get(userHeader)
	if principal == "" {
		principal = "guest"
	}
	tenant := r.Header.Get(tenantHeader)
	if tenant == "" {
		tenant = defaultTenant
	}
	return repo.NewOperationContext(r.Context(), principal, tenant)
}

func nodeID(r *http.Request) repo.NodeID {
	return repo.NodeID(chi.URLParam(r, "id"))
}
