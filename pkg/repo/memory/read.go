package memory

import (
	"github.com/treelinehq/canopy/pkg/repo"
)

// Get returns a node by id.
func (s *MemoryStore) Get(opCtx *repo.OperationContext, id repo.NodeID, opts repo.GetOptions) (*repo.Node, error) {
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
	if !s.canPerform(ts, opCtx.Principal, nd, repo.ActionRead) {
		return nil, repo.NewErrorAt(repo.KindPermissionDenied, "not permitted to read node", string(id))
	}

	node := s.toPublic(nd)
	if opts.IncludePath {
		node.Path = s.computePath(ts, opCtx.Principal, nd)
	}
	return node, nil
}

// computePath builds the human path of a node from its ancestor names.
//
// Every ancestor is permission checked. When some ancestor is unreadable
// the path truncates at that boundary and is marked incomplete; this is
// never an error.
func (s *MemoryStore) computePath(ts *tenantState, principal string, nd *nodeData) *repo.PathInfo {
	var names []string
	complete := true

	for current := nd; current.node.ParentID != ""; {
		parent, ok := ts.nodes[current.node.ParentID]
		if !ok {
			complete = false
			break
		}
		if !s.canPerform(ts, principal, parent, repo.ActionRead) {
			complete = false
			break
		}
		names = append(names, parent.node.Name)
		current = parent
	}

	// names were collected leaf-to-root; reverse into display order.
	path := ""
	for i := len(names) - 1; i >= 0; i-- {
		path += "/" + names[i]
	}
	if path == "" {
		path = "/"
	}
	return &repo.PathInfo{Name: path, IsComplete: complete}
}

// GetArchived returns an archived node by identity.
//
// Archive entries are visible to the node owner, administrators, and
// principals holding a read grant in the node's locally-set ACL (the
// parent chain is gone from the live tree, so inheritance does not apply
// in the archive).
func (s *MemoryStore) GetArchived(opCtx *repo.OperationContext, id repo.NodeID) (*repo.Node, error) {
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
		return nil, repo.NewErrorAt(repo.KindPermissionDenied, "not permitted to read archived node", string(id))
	}
	return s.toPublic(nd), nil
}

func (s *MemoryStore) canReadArchived(principal string, nd *nodeData) bool {
	if s.isAdmin(principal) || nd.node.Owner == principal {
		return true
	}
	authorities := s.authoritiesFor(principal)
	allowed, denied := entryVerdict(nd.acl, authorities, repo.ActionRead)
	return allowed && !denied
}

// CanPerform exposes the permission oracle.
func (s *MemoryStore) CanPerform(opCtx *repo.OperationContext, id repo.NodeID, action repo.Action) (bool, error) {
	if err := checkContext(opCtx); err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ts, err := s.tenant(opCtx)
	if err != nil {
		return false, err
	}
	nd, ok := ts.nodes[id]
	if !ok {
		return false, repo.NewErrorAt(repo.KindNotFound, "node not found", string(id))
	}
	return s.canPerform(ts, opCtx.Principal, nd, action), nil
}

// EffectivePermissions resolves a node's effective ACL.
func (s *MemoryStore) EffectivePermissions(opCtx *repo.OperationContext, id repo.NodeID) (*repo.PermissionSet, error) {
	if err := checkContext(opCtx); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ts, err := s.tenant(opCtx)
	if err != nil {
		return nil, err
	}
	nd, ok := ts.nodes[id]
	if !ok {
		return nil, repo.NewErrorAt(repo.KindNotFound, "node not found", string(id))
	}
	if !s.canPerform(ts, opCtx.Principal, nd, repo.ActionRead) {
		return nil, repo.NewErrorAt(repo.KindPermissionDenied, "not permitted to read node", string(id))
	}

	set := &repo.PermissionSet{
		LocallySet:  append([]repo.PermissionEntry(nil), nd.acl...),
		Inheritance: nd.node.InheritPermissions,
	}

	// Union of the parent chain, walked only while each level keeps
	// inheritance enabled.
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
