package memory

import (
	"github.com/treelinehq/canopy/pkg/repo"
)

// Associate records a secondary typed reference from source to target.
//
// Associations sit outside the primary-parent tree: they define no paths
// and are exempt from the cycle rules. Re-recording an identical
// association is a no-op.
func (s *MemoryStore) Associate(opCtx *repo.OperationContext, source, target repo.NodeID, assocType repo.QName) error {
	if err := checkContext(opCtx); err != nil {
		return err
	}
	if assocType == "" {
		return repo.NewError(repo.KindInvalidArgument, "association type must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ts, err := s.tenant(opCtx)
	if err != nil {
		return err
	}

	src, ok := ts.nodes[source]
	if !ok {
		return repo.NewErrorAt(repo.KindNotFound, "source node not found", string(source))
	}
	if _, ok := ts.nodes[target]; !ok {
		return repo.NewErrorAt(repo.KindNotFound, "target node not found", string(target))
	}
	if !s.canPerform(ts, opCtx.Principal, src, repo.ActionUpdate) {
		return repo.NewErrorAt(repo.KindPermissionDenied, "not permitted to update node", string(source))
	}

	assoc := repo.Association{SourceID: source, TargetID: target, Type: assocType}
	for _, existing := range src.assocs {
		if existing == assoc {
			return nil
		}
	}
	src.assocs = append(src.assocs, assoc)
	return nil
}

// Associations lists the secondary references held by source.
func (s *MemoryStore) Associations(opCtx *repo.OperationContext, source repo.NodeID) ([]repo.Association, error) {
	if err := checkContext(opCtx); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ts, err := s.tenant(opCtx)
	if err != nil {
		return nil, err
	}

	src, ok := ts.nodes[source]
	if !ok {
		return nil, repo.NewErrorAt(repo.KindNotFound, "source node not found", string(source))
	}
	if !s.canPerform(ts, opCtx.Principal, src, repo.ActionRead) {
		return nil, repo.NewErrorAt(repo.KindPermissionDenied, "not permitted to read node", string(source))
	}
	return append([]repo.Association(nil), src.assocs...), nil
}
