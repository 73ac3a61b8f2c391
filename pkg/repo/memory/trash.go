package memory

import (
	"github.com/treelinehq/canopy/pkg/repo"
)

// checkDeletable applies the structural rules that no permission grant can
// override: protected nodes reject deletion for everyone, administrators
// included, and home folders reject it for anyone but their owner or an
// administrator.
func (s *MemoryStore) checkDeletable(nd *nodeData, principal string) error {
	if nd.protected {
		return repo.NewErrorAt(repo.KindPermissionDenied,
			"this node is protected and can never be deleted or moved", nd.node.Name)
	}
	if nd.homeOf != "" && nd.homeOf != principal && !s.isAdmin(principal) {
		return repo.NewErrorAt(repo.KindPermissionDenied,
			"a home folder may only be deleted by its owner or an administrator", nd.node.Name)
	}
	return nil
}

// SoftDelete archives a node and its full descendant subtree atomically.
//
// Identities are preserved; parent backlinks are retained so the subtree
// can be restored as a unit. Any live lock anywhere in the subtree aborts
// the whole operation.
func (s *MemoryStore) SoftDelete(opCtx *repo.OperationContext, id repo.NodeID) error {
	if err := checkContext(opCtx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ts, err := s.tenant(opCtx)
	if err != nil {
		return err
	}

	nd, ok := ts.nodes[id]
	if !ok {
		return repo.NewErrorAt(repo.KindNotFound, "node not found", string(id))
	}
	if err := s.checkDeletable(nd, opCtx.Principal); err != nil {
		return err
	}
	if !s.canPerform(ts, opCtx.Principal, nd, repo.ActionDelete) {
		return repo.NewErrorAt(repo.KindPermissionDenied, "not permitted to delete node", string(id))
	}
	if locked := s.lockedDescendant(ts, nd); locked != nil {
		return repo.NewErrorAt(repo.KindConflict,
			"a node in the subtree is locked by "+locked.lock.Owner, string(locked.node.ID))
	}

	s.archiveSubtree(ts, nd, opCtx.Principal)
	return nil
}

// archiveSubtree moves nd and every descendant from the active maps into
// the archive. The children edges vanish; ParentID backlinks stay so
// Restore can stitch the subtree back together.
func (s *MemoryStore) archiveSubtree(ts *tenantState, nd *nodeData, principal string) {
	now := s.now()
	for _, victim := range s.subtreeIDs(ts, nd.node.ID) {
		data, ok := ts.nodes[victim]
		if !ok {
			continue
		}
		delete(ts.nodes, victim)
		delete(ts.children, victim)
		data.node.State = repo.StateArchived
		data.node.ModifiedBy = principal
		data.node.ModifiedAt = now
		ts.archived[victim] = data
	}
	delete(ts.children[nd.node.ParentID], nd.node.Name)
}

// Purge permanently destroys a subtree and frees its identities.
//
// An active subtree bypasses the archive and may only be purged by its
// owner or an administrator. An archived subtree may additionally be
// purged by principals holding an explicit delete grant in the root's
// locally-set ACL.
func (s *MemoryStore) Purge(opCtx *repo.OperationContext, id repo.NodeID) error {
	if err := checkContext(opCtx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ts, err := s.tenant(opCtx)
	if err != nil {
		return err
	}

	if nd, ok := ts.nodes[id]; ok {
		if err := s.checkDeletable(nd, opCtx.Principal); err != nil {
			return err
		}
		if nd.node.Owner != opCtx.Principal && !s.isAdmin(opCtx.Principal) {
			return repo.NewErrorAt(repo.KindPermissionDenied,
				"only the owner or an administrator may purge an active node", string(id))
		}
		if locked := s.lockedDescendant(ts, nd); locked != nil {
			return repo.NewErrorAt(repo.KindConflict,
				"a node in the subtree is locked by "+locked.lock.Owner, string(locked.node.ID))
		}
		for _, victim := range s.subtreeIDs(ts, id) {
			delete(ts.nodes, victim)
			delete(ts.children, victim)
			s.dropAssociationsTo(ts, victim)
		}
		delete(ts.children[nd.node.ParentID], nd.node.Name)
		return nil
	}

	if nd, ok := ts.archived[id]; ok {
		if !s.canPurgeArchived(opCtx.Principal, nd) {
			return repo.NewErrorAt(repo.KindPermissionDenied, "not permitted to purge archived node", string(id))
		}
		for _, victim := range archivedSubtree(ts, id) {
			delete(ts.archived, victim)
			s.dropAssociationsTo(ts, victim)
		}
		return nil
	}

	return repo.NewErrorAt(repo.KindNotFound, "node not found", string(id))
}

func (s *MemoryStore) canPurgeArchived(principal string, nd *nodeData) bool {
	if s.isAdmin(principal) || nd.node.Owner == principal {
		return true
	}
	authorities := s.authoritiesFor(principal)
	allowed, denied := entryVerdict(nd.acl, authorities, repo.ActionDelete)
	return allowed && !denied
}

// dropAssociationsTo removes dangling secondary references to a purged
// node from every surviving node.
func (s *MemoryStore) dropAssociationsTo(ts *tenantState, target repo.NodeID) {
	prune := func(nd *nodeData) {
		kept := nd.assocs[:0]
		for _, assoc := range nd.assocs {
			if assoc.TargetID != target {
				kept = append(kept, assoc)
			}
		}
		nd.assocs = kept
	}
	for _, nd := range ts.nodes {
		prune(nd)
	}
	for _, nd := range ts.archived {
		prune(nd)
	}
}

// Restore returns an archived subtree to the live tree.
//
// By default the subtree reattaches under its original parent; when that
// parent is gone or archived a TargetParentID must name the destination.
// Name collisions follow Create's Conflict/auto-rename rules.
func (s *MemoryStore) Restore(opCtx *repo.OperationContext, id repo.NodeID, req repo.RestoreRequest) (*repo.Node, error) {
	if err := checkContext(opCtx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ts, err := s.tenant(opCtx)
	if err != nil {
		return nil, err
	}

	nd, ok := ts.archived[id]
	if !ok {
		return nil, repo.NewErrorAt(repo.KindNotFound, "no archived node with this id", string(id))
	}
	if !s.canReadArchived(opCtx.Principal, nd) {
		return nil, repo.NewErrorAt(repo.KindPermissionDenied, "not permitted to restore this node", string(id))
	}

	parentID := req.TargetParentID
	if parentID == "" {
		parentID = nd.node.ParentID
	}
	parent, ok := ts.nodes[parentID]
	if !ok {
		return nil, repo.NewErrorAt(repo.KindNotFound,
			"restore destination does not exist in the live tree", string(parentID))
	}
	if !parent.node.IsFolder {
		return nil, repo.NewErrorAt(repo.KindInvalidArgument, "restore destination is not a folder", string(parentID))
	}
	if !s.canPerform(ts, opCtx.Principal, parent, repo.ActionCreateChild) {
		return nil, repo.NewErrorAt(repo.KindPermissionDenied,
			"not permitted to create children at the restore destination", parent.node.Name)
	}

	name := nd.node.Name
	if _, taken := ts.children[parentID][name]; taken {
		if !req.AutoRename {
			return nil, repo.NewErrorAt(repo.KindConflict, "name already exists at destination", name)
		}
		name = availableName(ts.children[parentID], name)
	}

	now := s.now()
	for _, member := range archivedSubtree(ts, id) {
		data, ok := ts.archived[member]
		if !ok {
			continue
		}
		delete(ts.archived, member)
		data.node.State = repo.StateActive
		data.node.ModifiedBy = opCtx.Principal
		data.node.ModifiedAt = now
		if member == id {
			data.node.ParentID = parentID
			data.node.Name = name
		}
		s.insert(ts, data)
	}

	return s.toPublic(nd), nil
}
