package memory

import (
	"strings"

	"github.com/treelinehq/canopy/pkg/repo"
	"github.com/treelinehq/canopy/pkg/repo/schema"
)

// Create creates a node under a parent folder.
//
// The request name may be a relative multi-segment path; intermediate
// folders are created on demand ("mkdir -p" semantics). Name, type,
// aspect and property validation all run before the first mutation.
func (s *MemoryStore) Create(opCtx *repo.OperationContext, req repo.CreateRequest) (*repo.Node, error) {
	if err := checkContext(opCtx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ts, err := s.tenant(opCtx)
	if err != nil {
		return nil, err
	}

	parent, ok := ts.nodes[req.ParentID]
	if !ok {
		return nil, repo.NewErrorAt(repo.KindNotFound, "parent node not found", string(req.ParentID))
	}
	if !parent.node.IsFolder {
		return nil, repo.NewErrorAt(repo.KindInvalidArgument, "parent is not a folder", string(req.ParentID))
	}

	nodeType := req.Type
	if nodeType == "" {
		nodeType = repo.TypeContent
	}
	if !s.model.TypeExists(nodeType) {
		return nil, repo.NewErrorAt(repo.KindInvalidArgument, "unknown node type", string(nodeType))
	}
	if !s.model.IsCreatable(nodeType) {
		return nil, repo.NewErrorAt(repo.KindInvalidArgument,
			"type is abstract or system-reserved and cannot be created", string(nodeType))
	}

	// Split a relative path into intermediate folder segments plus the
	// final node name, validating every segment up front.
	segments := splitPathSegments(req.Name)
	if len(segments) == 0 {
		return nil, repo.NewError(repo.KindInvalidArgument, "name must not be empty")
	}
	for _, segment := range segments {
		if err := validateName(segment); err != nil {
			return nil, err
		}
	}
	finalName := segments[len(segments)-1]
	folderSegments := segments[:len(segments)-1]

	for _, aspect := range req.Aspects {
		if !s.model.AspectExists(aspect) {
			return nil, repo.NewErrorAt(repo.KindInvalidArgument, "unknown aspect", string(aspect))
		}
	}
	if err := s.validateProperties(nodeType, req.Aspects, req.Properties); err != nil {
		return nil, err
	}

	// An ownable aspect with an explicit owner overrides the implied
	// creator ownership. The principal must exist before any folder on a
	// relative path is built.
	explicitOwner := ""
	if owner, ok := req.Properties[repo.PropOwner].(string); ok && owner != "" {
		if !s.directory.PrincipalExists(owner) {
			return nil, repo.NewErrorAt(repo.KindUnprocessableEntity, "owner principal does not exist", owner)
		}
		explicitOwner = owner
	}

	// Walk (and build) the intermediate folder chain. A collision with an
	// existing folder is not an error; with anything else it is.
	for _, segment := range folderSegments {
		if existingID, exists := ts.children[parent.node.ID][segment]; exists {
			existing := ts.nodes[existingID]
			if !existing.node.IsFolder {
				return nil, repo.NewErrorAt(repo.KindConflict,
					"path segment exists and is not a folder", segment)
			}
			parent = existing
			continue
		}
		if !s.canPerform(ts, opCtx.Principal, parent, repo.ActionCreateChild) {
			return nil, repo.NewErrorAt(repo.KindPermissionDenied,
				"not permitted to create children here", parent.node.Name)
		}
		folder := s.newNodeData(parent.node.ID, segment, repo.TypeFolder, opCtx.Principal, s.now())
		s.insert(ts, folder)
		parent = folder
	}

	if !s.canPerform(ts, opCtx.Principal, parent, repo.ActionCreateChild) {
		return nil, repo.NewErrorAt(repo.KindPermissionDenied,
			"not permitted to create children here", parent.node.Name)
	}

	name := finalName
	if _, taken := ts.children[parent.node.ID][name]; taken {
		if !req.AutoRename {
			return nil, repo.NewErrorAt(repo.KindConflict, "name already exists", name)
		}
		name = availableName(ts.children[parent.node.ID], name)
	}

	nd := s.newNodeData(parent.node.ID, name, nodeType, opCtx.Principal, s.now())
	nd.node.Properties = req.Properties.Clone()
	if nd.node.Properties == nil {
		nd.node.Properties = repo.PropertyMap{}
	}
	delete(nd.node.Properties, repo.PropName)
	nd.node.Aspects = append([]repo.QName(nil), req.Aspects...)

	if explicitOwner != "" {
		nd.node.Owner = explicitOwner
		delete(nd.node.Properties, repo.PropOwner)
	}

	s.insert(ts, nd)

	// Versionable documents start their ledger at "1.0"; the first record
	// carries the node's own creation timestamp.
	if nd.node.IsFile && nd.node.HasAspect(repo.AspectVersionable) {
		s.recordFirstVersion(nd, opCtx.Principal)
	}

	return s.toPublic(nd), nil
}

// splitPathSegments splits a relative path on "/" dropping empty segments.
func splitPathSegments(name string) []string {
	parts := strings.Split(name, "/")
	segments := make([]string, 0, len(parts))
	for _, part := range parts {
		if part != "" {
			segments = append(segments, part)
		}
	}
	return segments
}

// validateProperties checks every supplied property against the model:
// system-maintained properties are never client-settable, and each value
// must be legal for the type chain or an applied aspect.
func (s *MemoryStore) validateProperties(nodeType repo.QName, aspects []repo.QName, props repo.PropertyMap) error {
	for name, value := range props {
		if err := s.checkClientSettable(name); err != nil {
			return err
		}
		if name == repo.PropName || name == repo.PropOwner {
			continue
		}
		def, legal := s.model.PropertyLegal(nodeType, aspects, name)
		if !legal {
			return repo.NewErrorAt(repo.KindInvalidArgument,
				"property is not declared by the node's type or aspects", string(name))
		}
		if value == nil {
			continue
		}
		if err := schema.CheckValue(def, value); err != nil {
			return repo.NewError(repo.KindInvalidArgument, err.Error())
		}
	}
	return nil
}

// checkClientSettable rejects writes to system-maintained properties.
// Audit fields and the sys namespace are written by the repository only;
// an attempt rejects the whole request before any mutation.
func (s *MemoryStore) checkClientSettable(name repo.QName) error {
	switch name {
	case repo.PropCreator, repo.PropCreated, repo.PropModifier, repo.PropModified,
		repo.PropVersionLabelRProperty:
		return repo.NewErrorAt(repo.KindInvalidArgument,
			"system-maintained property cannot be set by clients", string(name))
	}
	if strings.HasPrefix(string(name), "sys:") {
		return repo.NewErrorAt(repo.KindInvalidArgument,
			"system-maintained property cannot be set by clients", string(name))
	}
	return nil
}
