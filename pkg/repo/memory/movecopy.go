package memory

import (
	"github.com/treelinehq/canopy/pkg/repo"
)

// Move relocates a node under a new parent folder, optionally renaming it.
//
// Moving is delete-at-source plus create-at-target: it needs delete rights
// on the node and create-child rights at the destination, and protected
// nodes refuse it exactly like deletion. The node's identity, content,
// versions, ACL and lock state all travel with it.
func (s *MemoryStore) Move(opCtx *repo.OperationContext, id repo.NodeID, targetParent repo.NodeID, newName string) (*repo.Node, error) {
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
	target, ok := ts.nodes[targetParent]
	if !ok {
		return nil, repo.NewErrorAt(repo.KindNotFound, "target parent not found", string(targetParent))
	}
	if !target.node.IsFolder {
		return nil, repo.NewErrorAt(repo.KindInvalidArgument, "target parent is not a folder", string(targetParent))
	}

	if err := s.checkDeletable(nd, opCtx.Principal); err != nil {
		return nil, err
	}

	// A node can never move into its own subtree (or onto itself); the
	// primary-parent graph must stay a tree.
	if targetParent == id || s.isDescendant(ts, id, targetParent) {
		return nil, repo.NewErrorAt(repo.KindInvalidArgument,
			"cannot move a node into its own subtree", string(id))
	}

	name := newName
	if name == "" {
		name = nd.node.Name
	}
	if err := validateName(name); err != nil {
		return nil, err
	}

	if !s.canPerform(ts, opCtx.Principal, nd, repo.ActionDelete) {
		return nil, repo.NewErrorAt(repo.KindPermissionDenied, "not permitted to move node", string(id))
	}
	if !s.canPerform(ts, opCtx.Principal, target, repo.ActionCreateChild) {
		return nil, repo.NewErrorAt(repo.KindPermissionDenied,
			"not permitted to create children at the destination", target.node.Name)
	}
	if locked := s.lockedDescendant(ts, nd); locked != nil {
		return nil, repo.NewErrorAt(repo.KindConflict,
			"a node in the subtree is locked by "+locked.lock.Owner, string(locked.node.ID))
	}

	if existing, taken := ts.children[targetParent][name]; taken && existing != id {
		return nil, repo.NewErrorAt(repo.KindConflict, "name already exists at destination", name)
	}

	delete(ts.children[nd.node.ParentID], nd.node.Name)
	nd.node.ParentID = targetParent
	nd.node.Name = name
	nd.node.ModifiedBy = opCtx.Principal
	nd.node.ModifiedAt = s.now()
	s.insert(ts, nd)

	return s.toPublic(nd), nil
}

// Copy duplicates a node subtree under a new parent.
//
// Every copy gets a fresh identity. The source needs only read rights.
// Properties, aspects and content references carry over; the version
// ledger, lock state and locally-set ACL do not (copies inherit from
// their new location and start a fresh "1.0" when versionable).
func (s *MemoryStore) Copy(opCtx *repo.OperationContext, id repo.NodeID, targetParent repo.NodeID, newName string) (*repo.Node, error) {
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
	target, ok := ts.nodes[targetParent]
	if !ok {
		return nil, repo.NewErrorAt(repo.KindNotFound, "target parent not found", string(targetParent))
	}
	if !target.node.IsFolder {
		return nil, repo.NewErrorAt(repo.KindInvalidArgument, "target parent is not a folder", string(targetParent))
	}

	// Sites and their containers are structural nodes tied to their place
	// in the tree; duplicating one elsewhere is categorically refused.
	if s.model.IsStructuralType(nd.node.Type) {
		return nil, repo.NewErrorAt(repo.KindUnprocessableEntity,
			"structural nodes cannot be copied", string(nd.node.Type))
	}

	if !s.canPerform(ts, opCtx.Principal, nd, repo.ActionRead) {
		return nil, repo.NewErrorAt(repo.KindPermissionDenied, "not permitted to read node", string(id))
	}
	if !s.canPerform(ts, opCtx.Principal, target, repo.ActionCreateChild) {
		return nil, repo.NewErrorAt(repo.KindPermissionDenied,
			"not permitted to create children at the destination", target.node.Name)
	}

	name := newName
	if name == "" {
		name = nd.node.Name
	}
	if err := validateName(name); err != nil {
		return nil, err
	}
	if _, taken := ts.children[targetParent][name]; taken {
		return nil, repo.NewErrorAt(repo.KindConflict, "name already exists at destination", name)
	}

	// Copying into the source's own subtree is safe: the member set is
	// snapshotted before the first insertion.
	copied := s.copySubtree(ts, opCtx.Principal, nd, targetParent, name)
	return s.toPublic(copied), nil
}

// copySubtree deep-copies nd and its readable descendants under parentID.
// Descendants the principal cannot read are silently skipped.
func (s *MemoryStore) copySubtree(ts *tenantState, principal string, src *nodeData, parentID repo.NodeID, name string) *nodeData {
	childIDs := make([]repo.NodeID, 0, len(ts.children[src.node.ID]))
	for _, childID := range ts.children[src.node.ID] {
		childIDs = append(childIDs, childID)
	}

	dup := s.newNodeData(parentID, name, src.node.Type, principal, s.now())
	dup.node.Properties = src.node.Properties.Clone()
	if dup.node.Properties == nil {
		dup.node.Properties = repo.PropertyMap{}
	}
	dup.node.Aspects = append([]repo.QName(nil), src.node.Aspects...)
	removeAspect(&dup.node, repo.AspectLockable)
	if src.node.Content != nil {
		contentCopy := *src.node.Content
		dup.node.Content = &contentCopy
	}
	s.insert(ts, dup)

	if dup.node.IsFile && dup.node.HasAspect(repo.AspectVersionable) {
		s.recordFirstVersion(dup, principal)
	}

	for _, childID := range childIDs {
		child, ok := ts.nodes[childID]
		if !ok {
			continue
		}
		if !s.canPerform(ts, principal, child, repo.ActionRead) {
			continue
		}
		s.copySubtree(ts, principal, child, dup.node.ID, child.node.Name)
	}
	return dup
}
