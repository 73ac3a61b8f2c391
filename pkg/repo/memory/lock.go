package memory

import (
	"time"

	"github.com/treelinehq/canopy/pkg/repo"
)

// Lock acquires or refreshes a lock on a content-bearing node.
//
// Acquisition never blocks: a lock held by another principal fails with a
// Conflict immediately. Re-locking a node you already hold refreshes the
// expiry and may change kind and lifetime.
func (s *MemoryStore) Lock(opCtx *repo.OperationContext, id repo.NodeID, req repo.LockRequest) (*repo.LockInfo, error) {
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
		return nil, repo.NewErrorAt(repo.KindInvalidArgument, "only content nodes can be locked", string(id))
	}

	kind := req.Kind
	if kind == "" {
		kind = repo.LockFull
	}
	if !kind.Valid() {
		return nil, repo.NewErrorAt(repo.KindInvalidArgument, "unknown lock kind", string(req.Kind))
	}
	lifetime := req.Lifetime
	if lifetime == "" {
		lifetime = repo.LockPersistent
	}
	if !lifetime.Valid() {
		return nil, repo.NewErrorAt(repo.KindInvalidArgument, "unknown lock lifetime", string(req.Lifetime))
	}

	if !s.canPerform(ts, opCtx.Principal, nd, repo.ActionUpdate) {
		return nil, repo.NewErrorAt(repo.KindPermissionDenied, "not permitted to lock node", string(id))
	}

	if existing := s.activeLock(nd); existing != nil && existing.Owner != opCtx.Principal {
		return nil, repo.NewErrorAt(repo.KindConflict,
			"node is already locked by "+existing.Owner, string(id))
	}

	now := s.now()
	expires := time.Time{}
	if req.TimeToExpireSeconds > 0 {
		expires = now.Add(time.Duration(req.TimeToExpireSeconds) * time.Second)
	}
	// EPHEMERAL locks never outlive the configured cap, a "forever"
	// request included.
	if lifetime == repo.LockEphemeral {
		ceiling := now.Add(s.ephemeralTTL)
		if expires.IsZero() || expires.After(ceiling) {
			expires = ceiling
		}
	}

	nd.lock = &repo.LockInfo{
		Owner:      opCtx.Principal,
		Kind:       kind,
		Lifetime:   lifetime,
		AcquiredAt: now,
		ExpiresAt:  expires,
	}
	addAspect(&nd.node, repo.AspectLockable)

	lockCopy := *nd.lock
	return &lockCopy, nil
}

// Unlock releases a node's lock. Only the lock owner or an administrator
// may unlock; unlocking an unlocked node is an UnprocessableEntity.
func (s *MemoryStore) Unlock(opCtx *repo.OperationContext, id repo.NodeID) error {
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

	lock := s.activeLock(nd)
	if lock == nil {
		return repo.NewErrorAt(repo.KindUnprocessableEntity, "node is not locked", string(id))
	}
	if lock.Owner != opCtx.Principal && !s.isAdmin(opCtx.Principal) {
		return repo.NewErrorAt(repo.KindPermissionDenied,
			"only the lock owner or an administrator may unlock", string(id))
	}

	nd.lock = nil
	removeAspect(&nd.node, repo.AspectLockable)
	return nil
}
