package memory

import (
	"github.com/google/uuid"
	"github.com/treelinehq/canopy/pkg/repo"
)

// Versions returns the node's version ledger, newest first.
func (s *MemoryStore) Versions(opCtx *repo.OperationContext, id repo.NodeID) ([]repo.VersionRecord, error) {
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

	// The ledger is stored oldest first; return newest first.
	out := make([]repo.VersionRecord, 0, len(nd.versions))
	for i := len(nd.versions) - 1; i >= 0; i-- {
		out = append(out, *nd.versions[i])
	}
	return out, nil
}

// DeleteVersion removes one historical record from the ledger.
//
// Surviving records keep their labels. Deleting the latest record drops
// the node's current label back to the newest survivor; the last
// remaining record cannot be deleted.
func (s *MemoryStore) DeleteVersion(opCtx *repo.OperationContext, id repo.NodeID, label string) error {
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
	if !s.canPerform(ts, opCtx.Principal, nd, repo.ActionDelete) {
		return repo.NewErrorAt(repo.KindPermissionDenied, "not permitted to delete versions", string(id))
	}
	if err := s.checkMutationLock(nd, opCtx.Principal); err != nil {
		return err
	}

	index := -1
	for i, record := range nd.versions {
		if record.Label == label {
			index = i
			break
		}
	}
	if index < 0 {
		return repo.NewErrorAt(repo.KindNotFound, "no version with this label", label)
	}
	if len(nd.versions) == 1 {
		return repo.NewErrorAt(repo.KindInvalidArgument,
			"the last remaining version cannot be deleted", label)
	}

	nd.versions = append(nd.versions[:index], nd.versions[index+1:]...)

	newest := nd.versions[len(nd.versions)-1]
	nd.node.VersionLabel = newest.Label
	return nil
}

// recordFirstVersion starts a node's ledger at "1.0".
//
// The first record carries the node's own creation timestamp, so enabling
// versioning after the fact still yields a history anchored at creation.
func (s *MemoryStore) recordFirstVersion(nd *nodeData, principal string) {
	record := &repo.VersionRecord{
		ID:        uuid.NewString(),
		Label:     repo.FirstVersionLabel,
		Type:      repo.VersionMajor,
		Creator:   principal,
		CreatedAt: nd.node.CreatedAt,
	}
	if nd.node.Content != nil {
		record.ContentRef = nd.node.Content.ContentRef
	}
	nd.versions = []*repo.VersionRecord{record}
	nd.node.VersionLabel = record.Label
}

// recordNextVersion appends the next MAJOR or MINOR record to the ledger.
func (s *MemoryStore) recordNextVersion(nd *nodeData, principal string, versionType repo.VersionType, comment string) {
	label, err := repo.NextVersionLabel(nd.node.VersionLabel, versionType)
	if err != nil {
		// A corrupted label can only come from store code; restart the
		// ledger arithmetic rather than propagating garbage.
		label = repo.FirstVersionLabel
	}
	record := &repo.VersionRecord{
		ID:        uuid.NewString(),
		Label:     label,
		Type:      versionType,
		Comment:   comment,
		Creator:   principal,
		CreatedAt: s.now(),
	}
	if nd.node.Content != nil {
		record.ContentRef = nd.node.Content.ContentRef
	}
	nd.versions = append(nd.versions, record)
	nd.node.VersionLabel = label
}
