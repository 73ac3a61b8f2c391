package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/treelinehq/canopy/pkg/rendition"
	"github.com/treelinehq/canopy/pkg/repo"
)

// renditionKey builds the registry key for a request. The version label
// is optional; empty targets the node's current content.
func renditionKey(r *http.Request, name string) rendition.Key {
	opCtx := opContext(r)
	return rendition.Key{
		Tenant:       opCtx.Tenant,
		NodeID:       nodeID(r),
		VersionLabel: r.URL.Query().Get("versionLabel"),
		Name:         name,
	}
}

// renditionRequestBody is the request body for requesting a rendition.
type renditionRequestBody struct {
	Name string `json:"id"`
}

// RequestRendition handles POST /api/nodes/{id}/renditions.
//
// The node is read through the repository first, so permission checks
// and the locked/archived rules apply before any job is queued.
func (s *Server) RequestRendition(w http.ResponseWriter, r *http.Request) {
	var body renditionRequestBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}

	node, err := s.store.Get(opContext(r), nodeID(r), repo.GetOptions{})
	if err != nil {
		writeError(w, err)
		return
	}
	if node.Content == nil {
		writeError(w, repo.NewErrorAt(repo.KindInvalidArgument,
			"cannot render a node without content", string(node.ID)))
		return
	}

	job, err := s.renditions.RequestRendition(r.Context(), rendition.Request{
		Key:       renditionKey(r, body.Name),
		SourceRef: node.Content.ContentRef,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

// GetRendition handles GET /api/nodes/{id}/renditions/{name}.
//
// Unknown renditions answer with a NOT_CREATED status body rather than
// 404: clients poll this endpoint until the status settles.
func (s *Server) GetRendition(w http.ResponseWriter, r *http.Request) {
	// Permission gate: reading a rendition requires reading the node.
	if _, err := s.store.Get(opContext(r), nodeID(r), repo.GetOptions{}); err != nil {
		writeError(w, err)
		return
	}

	key := renditionKey(r, chi.URLParam(r, "name"))
	job, err := s.renditions.Get(r.Context(), key)
	if repo.IsKind(err, repo.KindNotFound) {
		writeJSON(w, http.StatusOK, rendition.Job{Key: key, Status: rendition.StatusNotCreated})
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// DeleteRendition handles DELETE /api/nodes/{id}/renditions/{name}.
// Deletion is independent of the source node's lifecycle.
func (s *Server) DeleteRendition(w http.ResponseWriter, r *http.Request) {
	key := renditionKey(r, chi.URLParam(r, "name"))
	if err := s.renditions.Delete(r.Context(), key); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
