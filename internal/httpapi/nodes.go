package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/treelinehq/canopy/pkg/repo"
)

// decodeJSON decodes a request body, mapping malformed JSON to
// InvalidArgument.
func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return repo.NewError(repo.KindInvalidArgument, "malformed request body: "+err.Error())
	}
	return nil
}

// createNodeBody is the request body for creating a node.
type createNodeBody struct {
	Name       string           `json:"name"`
	Type       repo.QName       `json:"nodeType"`
	Properties repo.PropertyMap `json:"properties"`
	Aspects    []repo.QName     `json:"aspectNames"`
}

// CreateNode handles POST /api/nodes/{id}/children.
func (s *Server) CreateNode(w http.ResponseWriter, r *http.Request) {
	var body createNodeBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}

	node, err := s.store.Create(opContext(r), repo.CreateRequest{
		ParentID:   nodeID(r),
		Name:       body.Name,
		Type:       body.Type,
		Properties: body.Properties,
		Aspects:    body.Aspects,
		AutoRename: r.URL.Query().Get("autoRename") == "true",
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, node)
}

// GetNode handles GET /api/nodes/{id}.
// Supports ?include=path for the permission-checked human path.
func (s *Server) GetNode(w http.ResponseWriter, r *http.Request) {
	opts := repo.GetOptions{
		IncludePath: r.URL.Query().Get("include") == "path",
	}

	node, err := s.store.Get(opContext(r), nodeID(r), opts)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, node)
}

// updateNodeBody is the request body for updating a node.
type updateNodeBody struct {
	Name          *string          `json:"name"`
	Type          *repo.QName      `json:"nodeType"`
	Properties    repo.PropertyMap `json:"properties"`
	AddAspects    []repo.QName     `json:"addAspects"`
	RemoveAspects []repo.QName     `json:"removeAspects"`
	Owner         *string          `json:"owner"`
}

// UpdateNode handles PUT /api/nodes/{id}.
func (s *Server) UpdateNode(w http.ResponseWriter, r *http.Request) {
	var body updateNodeBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}

	node, err := s.store.Update(opContext(r), nodeID(r), repo.UpdateRequest{
		Name:          body.Name,
		Type:          body.Type,
		Properties:    body.Properties,
		AddAspects:    body.AddAspects,
		RemoveAspects: body.RemoveAspects,
		Owner:         body.Owner,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, node)
}

// DeleteNode handles DELETE /api/nodes/{id}.
// The default is a soft delete into the archive; ?permanent=true purges
// outright.
func (s *Server) DeleteNode(w http.ResponseWriter, r *http.Request) {
	opCtx := opContext(r)
	id := nodeID(r)

	var err error
	if r.URL.Query().Get("permanent") == "true" {
		err = s.store.Purge(opCtx, id)
	} else {
		err = s.store.SoftDelete(opCtx, id)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListChildren handles GET /api/nodes/{id}/children.
func (s *Server) ListChildren(w http.ResponseWriter, r *http.Request) {
	opts, err := parseListOptions(r)
	if err != nil {
		writeError(w, err)
		return
	}

	page, err := s.store.ListChildren(opContext(r), nodeID(r), opts)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// relocateBody is the request body for move and copy.
type relocateBody struct {
	TargetParentID repo.NodeID `json:"targetParentId"`
	Name           string      `json:"name"`
}

// decodeRelocate rejects batch (array) bodies with MethodNotAllowed:
// multi-destination move/copy is not supported.
func decodeRelocate(r *http.Request) (relocateBody, error) {
	var body relocateBody

	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return body, repo.NewError(repo.KindInvalidArgument, "failed to read request body")
	}
	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && trimmed[0] == '[' {
		return body, repo.NewError(repo.KindMethodNotAllowed, "batch move/copy is not supported")
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return body, repo.NewError(repo.KindInvalidArgument, "malformed request body: "+err.Error())
	}
	if body.TargetParentID == "" {
		return body, repo.NewError(repo.KindInvalidArgument, "targetParentId is required")
	}
	return body, nil
}

// MoveNode handles POST /api/nodes/{id}/move.
func (s *Server) MoveNode(w http.ResponseWriter, r *http.Request) {
	body, err := decodeRelocate(r)
	if err != nil {
		writeError(w, err)
		return
	}

	node, err := s.store.Move(opContext(r), nodeID(r), body.TargetParentID, body.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, node)
}

// CopyNode handles POST /api/nodes/{id}/copy.
func (s *Server) CopyNode(w http.ResponseWriter, r *http.Request) {
	body, err := decodeRelocate(r)
	if err != nil {
		writeError(w, err)
		return
	}

	node, err := s.store.Copy(opContext(r), nodeID(r), body.TargetParentID, body.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, node)
}

// permissionBody is the request body for replacing a node's ACL.
type permissionBody struct {
	Entries            []repo.PermissionEntry `json:"locallySet"`
	InheritanceEnabled *bool                  `json:"inheritanceEnabled"`
}

// GetPermissions handles GET /api/nodes/{id}/permissions.
func (s *Server) GetPermissions(w http.ResponseWriter, r *http.Request) {
	set, err := s.store.EffectivePermissions(opContext(r), nodeID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, set)
}

// SetPermissions handles PUT /api/nodes/{id}/permissions.
func (s *Server) SetPermissions(w http.ResponseWriter, r *http.Request) {
	var body permissionBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}

	set, err := s.store.SetPermissions(opContext(r), nodeID(r), repo.PermissionRequest{
		Entries:            body.Entries,
		InheritanceEnabled: body.InheritanceEnabled,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, set)
}

// associationBody is the request body for creating an association.
type associationBody struct {
	TargetID repo.NodeID `json:"targetId"`
	Type     repo.QName  `json:"assocType"`
}

// CreateAssociation handles POST /api/nodes/{id}/associations.
func (s *Server) CreateAssociation(w http.ResponseWriter, r *http.Request) {
	var body associationBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}

	if err := s.store.Associate(opContext(r), nodeID(r), body.TargetID, body.Type); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// ListAssociations handles GET /api/nodes/{id}/associations.
func (s *Server) ListAssociations(w http.ResponseWriter, r *http.Request) {
	assocs, err := s.store.Associations(opContext(r), nodeID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, assocs)
}
