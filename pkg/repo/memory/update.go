package memory

import (
	"fmt"

	"github.com/treelinehq/canopy/pkg/repo"
)

// Update applies a metadata delta to a node.
//
// The whole request is validated against current state before the first
// mutation: one bad field rejects everything, partial application never
// occurs.
func (s *MemoryStore) Update(opCtx *repo.OperationContext, id repo.NodeID, req repo.UpdateRequest) (*repo.Node, error) {
	if err := checkContext(opCtx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ts, err := s.tenant(opCtx)
	if err != nil {
		return nil, err
	}

	nd, ok := ts.nodes[id]
	if !ok {
		return nil, repo.NewErrorAt(repo.KindNotFound, "node not found", string(id))
	}
	if !s.canPerform(ts, opCtx.Principal, nd, repo.ActionUpdate) {
		return nil, repo.NewErrorAt(repo.KindPermissionDenied, "not permitted to update node", string(id))
	}
	if err := s.checkMutationLock(nd, opCtx.Principal); err != nil {
		return nil, err
	}

	// ========================================================================
	// Validation phase: no mutation below until every field is checked.
	// ========================================================================

	newName := req.Name
	if newName == nil {
		if v, ok := req.Properties[repo.PropName].(string); ok && v != "" {
			newName = &v
		}
	}
	if newName != nil {
		if err := validateName(*newName); err != nil {
			return nil, err
		}
		if *newName != nd.node.Name {
			if _, taken := ts.children[nd.node.ParentID][*newName]; taken {
				return nil, repo.NewErrorAt(repo.KindConflict, "name already exists", *newName)
			}
		}
	}

	newType := nd.node.Type
	if req.Type != nil && *req.Type != nd.node.Type {
		if !s.model.CanChangeType(nd.node.Type, *req.Type) {
			return nil, repo.NewErrorAt(repo.KindInvalidArgument,
				fmt.Sprintf("cannot change type from %s to %s: only narrowing to a concrete subtype is allowed",
					nd.node.Type, *req.Type), string(id))
		}
		newType = *req.Type
	}

	for _, aspect := range req.AddAspects {
		if !s.model.AspectExists(aspect) {
			return nil, repo.NewErrorAt(repo.KindInvalidArgument, "unknown aspect", string(aspect))
		}
	}

	finalAspects := finalAspectSet(nd.node.Aspects, req.AddAspects, req.RemoveAspects)
	if err := s.validateProperties(newType, finalAspects, req.Properties); err != nil {
		return nil, err
	}

	if req.Owner != nil {
		if nd.node.Owner != opCtx.Principal && !s.isAdmin(opCtx.Principal) {
			return nil, repo.NewErrorAt(repo.KindPermissionDenied,
				"only the owner or an administrator may reassign ownership", string(id))
		}
		if !s.directory.PrincipalExists(*req.Owner) {
			return nil, repo.NewErrorAt(repo.KindUnprocessableEntity,
				"owner principal does not exist", *req.Owner)
		}
	}
	if owner, ok := req.Properties[repo.PropOwner].(string); ok && owner != "" && req.Owner == nil {
		if nd.node.Owner != opCtx.Principal && !s.isAdmin(opCtx.Principal) {
			return nil, repo.NewErrorAt(repo.KindPermissionDenied,
				"only the owner or an administrator may reassign ownership", string(id))
		}
		if !s.directory.PrincipalExists(owner) {
			return nil, repo.NewErrorAt(repo.KindUnprocessableEntity,
				"owner principal does not exist", owner)
		}
	}

	// ========================================================================
	// Apply phase.
	// ========================================================================

	hadVersions := len(nd.versions) > 0

	if newName != nil && *newName != nd.node.Name {
		delete(ts.children[nd.node.ParentID], nd.node.Name)
		nd.node.Name = *newName
		ts.children[nd.node.ParentID][nd.node.Name] = nd.node.ID
	}

	if newType != nd.node.Type {
		nd.node.Type = newType
		nd.node.IsFolder = s.model.IsFolderType(newType)
		nd.node.IsFile = s.model.IsFileType(newType)
	}

	removedNow := make(map[repo.QName]bool, len(req.RemoveAspects))
	for _, aspect := range req.RemoveAspects {
		removedNow[aspect] = true
		if !nd.node.HasAspect(aspect) {
			continue
		}
		removeAspect(&nd.node, aspect)
		for _, prop := range s.model.AspectProperties(aspect) {
			delete(nd.node.Properties, prop)
		}
		// Dropping versionability discards the ledger along with the
		// aspect's properties.
		if aspect == repo.AspectVersionable {
			nd.versions = nil
			nd.node.VersionLabel = ""
		}
	}
	// An aspect listed in both add and remove stays removed, matching the
	// set the validation phase checked properties against.
	for _, aspect := range req.AddAspects {
		if removedNow[aspect] {
			continue
		}
		addAspect(&nd.node, aspect)
	}

	propsChanged := false
	for name, value := range req.Properties {
		if name == repo.PropName || name == repo.PropOwner {
			continue
		}
		if value == nil || value == "" {
			if _, present := nd.node.Properties[name]; present {
				delete(nd.node.Properties, name)
				if name != repo.PropAutoVersionProps {
					propsChanged = true
				}
			}
			continue
		}
		if existing, present := nd.node.Properties[name]; !present || existing != value {
			nd.node.Properties[name] = value
			if name != repo.PropAutoVersionProps {
				propsChanged = true
			}
		}
	}

	switch {
	case req.Owner != nil:
		nd.node.Owner = *req.Owner
	default:
		if owner, ok := req.Properties[repo.PropOwner].(string); ok && owner != "" {
			nd.node.Owner = owner
		}
	}

	nd.node.ModifiedBy = opCtx.Principal
	nd.node.ModifiedAt = s.now()

	// Versioning on metadata updates. Newly-versionable documents start
	// their ledger; established ledgers take a MINOR bump only when the
	// auto-version-on-props flag is enabled and some ordinary property
	// actually changed.
	if nd.node.IsFile && nd.node.HasAspect(repo.AspectVersionable) {
		if !hadVersions && len(nd.versions) == 0 {
			s.recordFirstVersion(nd, opCtx.Principal)
		} else if propsChanged && autoVersionOnProps(nd) {
			s.recordNextVersion(nd, opCtx.Principal, repo.VersionMinor, "")
		}
	}

	return s.toPublic(nd), nil
}

// finalAspectSet computes the aspect set an update would leave behind.
func finalAspectSet(current, add, remove []repo.QName) []repo.QName {
	removed := make(map[repo.QName]bool, len(remove))
	for _, a := range remove {
		removed[a] = true
	}
	var final []repo.QName
	for _, a := range current {
		if !removed[a] {
			final = append(final, a)
		}
	}
	for _, a := range add {
		if removed[a] {
			continue
		}
		present := false
		for _, existing := range final {
			if existing == a {
				present = true
				break
			}
		}
		if !present {
			final = append(final, a)
		}
	}
	return final
}

// autoVersionOnProps reads the node-level flag gating metadata-update
// versioning.
func autoVersionOnProps(nd *nodeData) bool {
	enabled, ok := nd.node.Properties[repo.PropAutoVersionProps].(bool)
	return ok && enabled
}

// SetContent attaches a new immutable content snapshot to a node.
//
// The snapshot must already sit in the content store; this records the
// reference, size and sniffed media type, and versions the node when it
// has opted into versioning.
func (s *MemoryStore) SetContent(opCtx *repo.OperationContext, id repo.NodeID, update repo.ContentUpdate) (*repo.Node, error) {
	if err := checkContext(opCtx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ts, err := s.tenant(opCtx)
	if err != nil {
		return nil, err
	}

	nd, ok := ts.nodes[id]
	if !ok {
		return nil, repo.NewErrorAt(repo.KindNotFound, "node not found", string(id))
	}
	if !nd.node.IsFile {
		return nil, repo.NewErrorAt(repo.KindInvalidArgument, "node cannot carry content", string(id))
	}
	if !s.canPerform(ts, opCtx.Principal, nd, repo.ActionUpdate) {
		return nil, repo.NewErrorAt(repo.KindPermissionDenied, "not permitted to update node", string(id))
	}
	if err := s.checkMutationLock(nd, opCtx.Principal); err != nil {
		return nil, err
	}

	nd.node.Content = &repo.ContentInfo{
		ContentRef: update.ContentRef,
		Size:       update.Size,
		MimeType:   update.MimeType,
		Encoding:   update.Encoding,
	}
	nd.node.ModifiedBy = opCtx.Principal
	nd.node.ModifiedAt = s.now()

	if nd.node.HasAspect(repo.AspectVersionable) {
		if len(nd.versions) == 0 {
			s.recordFirstVersion(nd, opCtx.Principal)
			if update.Comment != "" {
				nd.versions[0].Comment = update.Comment
			}
		} else {
			versionType := repo.VersionMinor
			if update.Major {
				versionType = repo.VersionMajor
			}
			s.recordNextVersion(nd, opCtx.Principal, versionType, update.Comment)
		}
	}

	return s.toPublic(nd), nil
}

// SetPermissions replaces a node's locally-set ACL and/or toggles
// inheritance.
func (s *MemoryStore) SetPermissions(opCtx *repo.OperationContext, id repo.NodeID, req repo.PermissionRequest) (*repo.PermissionSet, error) {
	if err := checkContext(opCtx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ts, err := s.tenant(opCtx)
	if err != nil {
		return nil, err
	}

	nd, ok := ts.nodes[id]
	if !ok {
		return nil, repo.NewErrorAt(repo.KindNotFound, "node not found", string(id))
	}
	if !s.canPerform(ts, opCtx.Principal, nd, repo.ActionChangePermissions) {
		return nil, repo.NewErrorAt(repo.KindPermissionDenied,
			"not permitted to change permissions", string(id))
	}

	// The whole entry list is validated before any ACL mutation.
	if req.Entries != nil {
		seen := make(map[string]bool, len(req.Entries))
		for _, entry := range req.Entries {
			if !entry.Access.Valid() {
				return nil, repo.NewErrorAt(repo.KindUnprocessableEntity,
					"access status must be ALLOWED or DENIED", string(entry.Access))
			}
			if !repo.KnownPermission(entry.Name) {
				return nil, repo.NewErrorAt(repo.KindUnprocessableEntity,
					"unknown permission name", entry.Name)
			}
			if !s.directory.PrincipalExists(entry.Authority) {
				return nil, repo.NewErrorAt(repo.KindUnprocessableEntity,
					"authority does not exist", entry.Authority)
			}
			// Duplicate (authority, permission) tuples are rejected
			// regardless of their access status.
			key := entry.Authority + "\x00" + entry.Name
			if seen[key] {
				return nil, repo.NewErrorAt(repo.KindUnprocessableEntity,
					"duplicate permission entry", entry.Authority+"/"+entry.Name)
			}
			seen[key] = true
		}
	}

	if req.Entries != nil {
		nd.acl = append([]repo.PermissionEntry(nil), req.Entries...)
	}
	if req.InheritanceEnabled != nil {
		nd.node.InheritPermissions = *req.InheritanceEnabled
	}

	set := &repo.PermissionSet{
		LocallySet:  append([]repo.PermissionEntry(nil), nd.acl...),
		Inheritance: nd.node.InheritPermissions,
	}
	if nd.node.InheritPermissions {
		for current := nd; current.node.ParentID != ""; {
			parent, ok := ts.nodes[current.node.ParentID]
			if !ok {
				break
			}
			set.Inherited = append(set.Inherited, parent.acl...)
			if !parent.node.InheritPermissions {
				break
			}
			current = parent
		}
	}
	return set, nil
}
