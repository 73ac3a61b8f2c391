package memory

import (
	"fmt"
	"strings"

	"github.com/treelinehq/canopy/pkg/repo"
)

// reservedNameCharacters are rejected in node names. The set matches the
// original repository's filename constraint.
const reservedNameCharacters = `"*\><?/:|`

// validateName rejects empty names, reserved characters, and names that
// are all dots or trailing whitespace.
func validateName(name string) error {
	if name == "" {
		return repo.NewError(repo.KindInvalidArgument, "name must not be empty")
	}
	if strings.ContainsAny(name, reservedNameCharacters) {
		return repo.NewErrorAt(repo.KindInvalidArgument,
			fmt.Sprintf("name contains reserved characters (%s)", reservedNameCharacters), name)
	}
	trimmed := strings.TrimRight(name, ". ")
	if trimmed == "" {
		return repo.NewErrorAt(repo.KindInvalidArgument, "name must contain visible characters", name)
	}
	return nil
}

// availableName resolves a sibling collision by appending a numeric suffix
// ("report-1.txt", "report-2.txt", ...) in deterministically increasing
// order. For names with an extension the suffix lands before the last dot.
func availableName(siblings map[string]repo.NodeID, name string) string {
	if _, taken := siblings[name]; !taken {
		return name
	}

	stem, ext := name, ""
	if dot := strings.LastIndex(name, "."); dot > 0 {
		stem, ext = name[:dot], name[dot:]
	}
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s-%d%s", stem, i, ext)
		if _, taken := siblings[candidate]; !taken {
			return candidate
		}
	}
}

// checkContext returns the operation's cancellation error, if any.
func checkContext(opCtx *repo.OperationContext) error {
	if err := opCtx.Err(); err != nil {
		return fmt.Errorf("operation cancelled: %w", err)
	}
	return nil
}

// ============================================================================
// Permission Oracle
// ============================================================================

// isAdmin reports whether the principal is an administrator.
func (s *MemoryStore) isAdmin(principal string) bool {
	return s.directory.IsAdmin(principal)
}

// authoritiesFor returns the authority set an ACL entry can match for a
// principal: the principal itself, its transitive groups, and everyone.
func (s *MemoryStore) authoritiesFor(principal string) map[string]bool {
	set := map[string]bool{
		principal:          true,
		repo.GroupEveryone: true,
	}
	for _, group := range s.directory.AuthoritiesOf(principal) {
		set[group] = true
	}
	return set
}

// entryVerdict scans one node's locally-set entries for the action.
// DENY beats ALLOW at the same node.
func entryVerdict(entries []repo.PermissionEntry, authorities map[string]bool, action repo.Action) (allowed, denied bool) {
	for _, entry := range entries {
		if !authorities[entry.Authority] || !repo.PermissionGrants(entry.Name, action) {
			continue
		}
		switch entry.Access {
		case repo.AccessDenied:
			denied = true
		case repo.AccessAllowed:
			allowed = true
		}
	}
	return allowed, denied
}

// canPerform is the permission oracle: it resolves whether the principal
// may perform the action on the node.
//
// Resolution order:
//  1. administrators bypass the ACL entirely
//  2. the owner holds full rights unless a locally-set DENY on this very
//     node names them (a more specific DENY wins over ownership)
//  3. locally-set entries, nearest node first; at each level an applicable
//     DENY wins over an applicable ALLOW, and the walk stops at the first
//     level with an opinion
//  4. the walk ascends the primary-parent chain only while inheritance
//     remains enabled at each level, terminating at the tenant root's
//     fixed default grants
//
// Protected-node rules (fatal delete/move rejections) are NOT part of the
// oracle: they are structural, handled by the operations themselves, and
// no permission grant can override them.
func (s *MemoryStore) canPerform(ts *tenantState, principal string, nd *nodeData, action repo.Action) bool {
	if s.isAdmin(principal) {
		return true
	}

	authorities := s.authoritiesFor(principal)

	if nd.node.Owner == principal {
		_, denied := entryVerdict(nd.acl, authorities, action)
		return !denied
	}

	current := nd
	for {
		allowed, denied := entryVerdict(current.acl, authorities, action)
		if denied {
			return false
		}
		if allowed {
			return true
		}
		if !current.node.InheritPermissions || current.node.ParentID == "" {
			return false
		}
		parent, ok := ts.nodes[current.node.ParentID]
		if !ok {
			return false
		}
		current = parent
	}
}

// ============================================================================
// Lock Evaluation
// ============================================================================

// activeLock returns the node's lock if still live, clearing it lazily
// when expired. Expired locks are treated as absent on next access; no
// background sweeper runs.
func (s *MemoryStore) activeLock(nd *nodeData) *repo.LockInfo {
	if nd.lock == nil {
		return nil
	}
	if nd.lock.Expired(s.now()) {
		nd.lock = nil
		removeAspect(&nd.node, repo.AspectLockable)
		return nil
	}
	return nd.lock
}

// checkMutationLock rejects mutation of a node locked by someone else.
// Both lock kinds let the lock owner keep changing content and
// properties; administrators pass through.
func (s *MemoryStore) checkMutationLock(nd *nodeData, principal string) error {
	lock := s.activeLock(nd)
	if lock == nil {
		return nil
	}
	if lock.Owner == principal || s.isAdmin(principal) {
		return nil
	}
	return repo.NewErrorAt(repo.KindConflict,
		fmt.Sprintf("node is locked by %s", lock.Owner), string(nd.node.ID))
}

// lockedDescendant finds any live lock in the subtree rooted at nd,
// including nd itself. Lock enforcement cascades for delete purposes even
// though the lock itself does not.
func (s *MemoryStore) lockedDescendant(ts *tenantState, nd *nodeData) *nodeData {
	if s.activeLock(nd) != nil {
		return nd
	}
	for _, childID := range ts.children[nd.node.ID] {
		child, ok := ts.nodes[childID]
		if !ok {
			continue
		}
		if locked := s.lockedDescendant(ts, child); locked != nil {
			return locked
		}
	}
	return nil
}

// ============================================================================
// Tree Traversal
// ============================================================================

// subtreeIDs collects the ids of nd and all of its active descendants.
func (s *MemoryStore) subtreeIDs(ts *tenantState, id repo.NodeID) []repo.NodeID {
	ids := []repo.NodeID{id}
	for _, childID := range ts.children[id] {
		ids = append(ids, s.subtreeIDs(ts, childID)...)
	}
	return ids
}

// isDescendant reports whether candidate sits in the subtree rooted at
// ancestor (strictly below it).
func (s *MemoryStore) isDescendant(ts *tenantState, ancestor, candidate repo.NodeID) bool {
	current, ok := ts.nodes[candidate]
	if !ok {
		return false
	}
	for current.node.ParentID != "" {
		if current.node.ParentID == ancestor {
			return true
		}
		parent, ok := ts.nodes[current.node.ParentID]
		if !ok {
			return false
		}
		current = parent
	}
	return false
}

// archivedSubtree collects nd and all archived descendants of id, walking
// the retained ParentID backlinks.
func archivedSubtree(ts *tenantState, id repo.NodeID) []repo.NodeID {
	inSubtree := map[repo.NodeID]bool{id: true}
	// Parent pointers only go upward, so iterate until a fixpoint: a
	// node belongs to the subtree when its parent does.
	for changed := true; changed; {
		changed = false
		for candidate, nd := range ts.archived {
			if inSubtree[candidate] {
				continue
			}
			if inSubtree[nd.node.ParentID] {
				inSubtree[candidate] = true
				changed = true
			}
		}
	}
	ids := make([]repo.NodeID, 0, len(inSubtree))
	for id := range inSubtree {
		ids = append(ids, id)
	}
	return ids
}

// ============================================================================
// Node Projection
// ============================================================================

// removeAspect drops an aspect from the node's applied set.
func removeAspect(node *repo.Node, aspect repo.QName) {
	for i, a := range node.Aspects {
		if a == aspect {
			node.Aspects = append(node.Aspects[:i], node.Aspects[i+1:]...)
			return
		}
	}
}

// addAspect applies an aspect if not already present.
func addAspect(node *repo.Node, aspect repo.QName) {
	if !node.HasAspect(aspect) {
		node.Aspects = append(node.Aspects, aspect)
	}
}

// toPublic builds the caller-owned projection of a node. Maps and slices
// are cloned so callers can never mutate store state, and the lock is
// attached only while live.
func (s *MemoryStore) toPublic(nd *nodeData) *repo.Node {
	node := nd.node
	node.Properties = nd.node.Properties.Clone()
	node.Aspects = append([]repo.QName(nil), nd.node.Aspects...)
	if nd.node.Content != nil {
		contentCopy := *nd.node.Content
		node.Content = &contentCopy
	}
	if lock := s.activeLock(nd); lock != nil {
		lockCopy := *lock
		node.Lock = &lockCopy
	} else {
		node.Lock = nil
	}
	node.Path = nil
	return &node
}
