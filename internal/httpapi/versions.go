package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/treelinehq/canopy/pkg/repo"
)

// ListVersions handles GET /api/nodes/{id}/versions. The ledger comes
// back newest first.
func (s *Server) ListVersions(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.Versions(opContext(r), nodeID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": records})
}

// DeleteVersion handles DELETE /api/nodes/{id}/versions/{label}.
func (s *Server) DeleteVersion(w http.ResponseWriter, r *http.Request) {
	label := chi.URLParam(r, "label")

	if err := s.store.DeleteVersion(opContext(r), nodeID(r), label); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// LockNode handles POST /api/nodes/{id}/lock.
func (s *Server) LockNode(w http.ResponseWriter, r *http.Request) {
	var body repo.LockRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}

	info, err := s.store.Lock(opContext(r), nodeID(r), body)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// UnlockNode handles POST /api/nodes/{id}/unlock.
func (s *Server) UnlockNode(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Unlock(opContext(r), nodeID(r)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetArchivedNode handles GET /api/archive/{id}.
func (s *Server) GetArchivedNode(w http.ResponseWriter, r *http.Request) {
	node, err := s.store.GetArchived(opContext(r), nodeID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, node)
}

// PurgeNode handles DELETE /api/archive/{id}.
func (s *Server) PurgeNode(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Purge(opContext(r), nodeID(r)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// restoreBody is the request body for restoring an archived node.
type restoreBody struct {
	TargetParentID repo.NodeID `json:"targetParentId"`
	AutoRename     bool        `json:"autoRename"`
}

// RestoreNode handles POST /api/archive/{id}/restore. An empty body
// restores to the original parent.
func (s *Server) RestoreNode(w http.ResponseWriter, r *http.Request) {
	var body restoreBody
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &body); err != nil {
			writeError(w, err)
			return
		}
	}

	node, err := s.store.Restore(opContext(r), nodeID(r), repo.RestoreRequest{
		TargetParentID: body.TargetParentID,
		AutoRename:     body.AutoRename,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, node)
}
