package repo

import "time"

// LockKind selects how restrictive a lock is.
type LockKind string

const (
	// LockFull is the exclusive kind: only the lock owner (and
	// administrators) may mutate the node while the lock is active.
	LockFull LockKind = "FULL"

	// LockAllowOwnerChanges is the cooperative kind: the lock owner may
	// keep updating content and properties while everyone else is fenced
	// out.
	LockAllowOwnerChanges LockKind = "ALLOW_OWNER_CHANGES"
)

// Valid reports whether k is a recognized lock kind.
func (k LockKind) Valid() bool {
	return k == LockFull || k == LockAllowOwnerChanges
}

// LockLifetime selects how long-lived a lock is.
type LockLifetime string

const (
	// LockPersistent locks survive until explicit unlock or expiry.
	LockPersistent LockLifetime = "PERSISTENT"

	// LockEphemeral locks are tied to a session-like scope: they are
	// capped by the store's ephemeral TTL even when the caller requested
	// no expiry.
	LockEphemeral LockLifetime = "EPHEMERAL"
)

// Valid reports whether l is a recognized lock lifetime.
func (l LockLifetime) Valid() bool {
	return l == LockPersistent || l == LockEphemeral
}

// LockRequest carries the parameters of a lock acquisition.
type LockRequest struct {
	// Kind defaults to FULL when empty.
	Kind LockKind `json:"type,omitempty"`

	// Lifetime defaults to PERSISTENT when empty.
	Lifetime LockLifetime `json:"lifetime,omitempty"`

	// TimeToExpireSeconds is the lock TTL. Zero or negative means no
	// expiry (the lock persists until explicit unlock).
	TimeToExpireSeconds int64 `json:"timeToExpire,omitempty"`
}

// LockInfo describes an active lock on a node.
//
// At most one active lock exists per node. Expiry is evaluated lazily: an
// expired lock is treated as absent on next access, no background sweeper
// runs.
type LockInfo struct {
	// Owner is the principal holding the lock.
	Owner string `json:"lockedBy"`

	// Kind is FULL or ALLOW_OWNER_CHANGES.
	Kind LockKind `json:"type"`

	// Lifetime is PERSISTENT or EPHEMERAL.
	Lifetime LockLifetime `json:"lifetime"`

	// AcquiredAt is when the lock was taken or last refreshed.
	AcquiredAt time.Time `json:"lockedAt"`

	// ExpiresAt is the absolute expiry instant; zero means never.
	ExpiresAt time.Time `json:"expiresAt,omitzero"`
}

// Expired reports whether the lock has lapsed at the given instant.
func (l *LockInfo) Expired(now time.Time) bool {
	return !l.ExpiresAt.IsZero() && now.After(l.ExpiresAt)
}
