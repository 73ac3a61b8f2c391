package repo

// ============================================================================
// Store Interface
// ============================================================================

// Store provides protocol-agnostic access to the node repository.
//
// This interface is designed to be consumed by multiple protocol adapters
// (REST-JSON, CMIS bindings, CLI tooling) without exposing wire-level
// concepts. Adapters are responsible for translating between their wire
// formats and these generic operations, and for mapping ErrorKind to their
// status vocabulary.
//
// Transactional Boundary:
//
// Every operation executes atomically: either all of its effects (tree
// mutation, version record, lock state, ACL change) become visible
// together, or none do. Permission checks and lock checks are evaluated
// inside the same critical section as the mutation they gate, so a lock or
// permission change can never slip between check and act.
//
// Validation Order:
//
// All validation runs before any persistent mutation. A multi-field update
// with one bad field rejects the whole update; partial application never
// occurs.
//
// Thread Safety:
// Implementations must be safe for concurrent use by multiple goroutines.
// Concurrent content updates to the same node serialize: once all writers
// complete, every reader observes the last writer's content reference and
// size.
type Store interface {
	// ========================================================================
	// Node CRUD
	// ========================================================================

	// Create creates a node under a parent folder.
	//
	// The request name may be a single segment or a relative multi-segment
	// path ("a/b/c"); intermediate folders are created on demand. A
	// collision with an existing folder along the path is not an error; a
	// collision with a non-folder node along the path is a Conflict.
	//
	// Errors: NotFound (unknown parent), PermissionDenied (no create-child
	// right), InvalidArgument (reserved path characters, abstract or
	// protected type), Conflict (sibling name collision without
	// auto-rename).
	Create(opCtx *OperationContext, req CreateRequest) (*Node, error)

	// Get returns a node by id.
	//
	// With IncludePath set, the human path is computed by permission
	// checking every ancestor; an unreadable ancestor truncates the path
	// (PathInfo.IsComplete=false) instead of erroring.
	//
	// Errors: NotFound (unknown or archived id), PermissionDenied (no read
	// right on the node itself).
	Get(opCtx *OperationContext, id NodeID, opts GetOptions) (*Node, error)

	// Update applies a metadata delta to a node.
	//
	// Renames stay within the current parent (cross-parent relocation must
	// use Move). Setting a property to nil or a blank string removes it.
	// Removing an aspect removes its properties. Type changes may only
	// narrow along the model's subtype order. System audit properties are
	// never settable; an attempt rejects the whole update.
	//
	// Errors: NotFound, PermissionDenied, Conflict (rename collision or
	// locked by another principal), InvalidArgument (bad name, broadening
	// or system type change, system property write),
	// UnprocessableEntity (unknown owner principal).
	Update(opCtx *OperationContext, id NodeID, req UpdateRequest) (*Node, error)

	// ListChildren lists a folder's children with filtering, multi-key
	// sorting, and offset pagination.
	//
	// Errors: NotFound, PermissionDenied, InvalidArgument (maxItems < 1,
	// skipCount < 0, contradictory is-folder AND is-file predicate, type
	// filter combined with an is-folder/is-file filter).
	ListChildren(opCtx *OperationContext, parent NodeID, opts ListOptions) (*ChildPage, error)

	// ========================================================================
	// Content
	// ========================================================================

	// SetContent attaches a new immutable content snapshot to a node and,
	// when the node is versionable, records a version. The snapshot itself
	// must already sit in the content store; the repository stores the
	// reference, size and sniffed (mimetype, encoding) pair.
	//
	// Errors: NotFound, PermissionDenied, Conflict (locked by another
	// principal), InvalidArgument (folder target).
	SetContent(opCtx *OperationContext, id NodeID, update ContentUpdate) (*Node, error)

	// ========================================================================
	// Permissions
	// ========================================================================

	// SetPermissions replaces a node's locally-set ACL and/or toggles
	// inheritance. The whole entry list is validated before any mutation:
	// unknown authorities, unrecognized permission names, invalid access
	// statuses and duplicate (authority, name) tuples reject the request
	// outright.
	//
	// Errors: NotFound, PermissionDenied (no change-permissions right),
	// UnprocessableEntity (validation failures above).
	SetPermissions(opCtx *OperationContext, id NodeID, req PermissionRequest) (*PermissionSet, error)

	// EffectivePermissions resolves a node's effective ACL: locally-set
	// entries plus entries inherited along the primary-parent chain, empty
	// Inherited when inheritance is disabled.
	EffectivePermissions(opCtx *OperationContext, id NodeID) (*PermissionSet, error)

	// CanPerform reports whether the principal may perform the action on
	// the node. It never errors for "no": authorization failures are a
	// false return, errors are reserved for unknown nodes and
	// infrastructure faults.
	CanPerform(opCtx *OperationContext, id NodeID, action Action) (bool, error)

	// ========================================================================
	// Versions
	// ========================================================================

	// Versions returns the node's version ledger, newest first.
	Versions(opCtx *OperationContext, id NodeID) ([]VersionRecord, error)

	// DeleteVersion removes one historical version record. Surviving
	// records keep their labels; no renumbering occurs. Deleting the
	// latest record is permitted and the node's current label falls back
	// to the newest survivor; deleting the only remaining record is
	// rejected.
	//
	// Errors: NotFound (unknown node or label), PermissionDenied,
	// InvalidArgument (last remaining version).
	DeleteVersion(opCtx *OperationContext, id NodeID, label string) error

	// ========================================================================
	// Locking
	// ========================================================================

	// Lock acquires or refreshes a lock on a content-bearing node.
	// Re-locking a node you already hold succeeds and refreshes the
	// expiry. Acquisition never blocks: a lock held by another principal
	// fails immediately.
	//
	// Errors: NotFound, InvalidArgument (folder target, bad kind or
	// lifetime), Conflict (held by another principal).
	Lock(opCtx *OperationContext, id NodeID, req LockRequest) (*LockInfo, error)

	// Unlock releases a node's lock. Only the lock owner or an
	// administrator may unlock.
	//
	// Errors: NotFound (unknown node), PermissionDenied (neither owner nor
	// administrator), UnprocessableEntity (no active lock).
	Unlock(opCtx *OperationContext, id NodeID) error

	// ========================================================================
	// Trash
	// ========================================================================

	// SoftDelete archives a node and its full descendant subtree as one
	// atomic operation, preserving identities.
	//
	// Errors: NotFound (unknown or already archived), PermissionDenied (no
	// delete right, or fatal protected-node rejection), Conflict (any
	// locked node in the subtree).
	SoftDelete(opCtx *OperationContext, id NodeID) error

	// Purge permanently destroys a node subtree and frees its identities.
	// Active nodes may be purged directly only by their owner or an
	// administrator (archive bypass); archived nodes by owner,
	// administrator, or a principal holding an explicit delete grant.
	//
	// Errors: NotFound (unknown or already purged), PermissionDenied,
	// Conflict (locked node in an active subtree).
	Purge(opCtx *OperationContext, id NodeID) error

	// GetArchived returns an archived node by identity.
	GetArchived(opCtx *OperationContext, id NodeID) (*Node, error)

	// Restore returns an archived subtree to the live tree, under its
	// original parent or an explicit target. Name collisions follow
	// Create's Conflict/auto-rename rules.
	//
	// Errors: NotFound (not archived, or original parent gone with no
	// target), PermissionDenied (no create-child right at destination),
	// Conflict (name collision without auto-rename).
	Restore(opCtx *OperationContext, id NodeID, req RestoreRequest) (*Node, error)

	// ========================================================================
	// Move / Copy
	// ========================================================================

	// Move relocates a node to a new parent folder, optionally renaming
	// it. Moving is semantically delete-at-source plus create-at-target:
	// it requires delete rights at the source parent and create-child
	// rights at the destination, and protected nodes reject it exactly
	// like deletion.
	//
	// Errors: NotFound (either endpoint), InvalidArgument (non-folder
	// target, cycle through the node's own subtree), Conflict (destination
	// name collision, locked subtree), PermissionDenied.
	Move(opCtx *OperationContext, id NodeID, targetParent NodeID, newName string) (*Node, error)

	// Copy duplicates a node subtree under a new parent with fresh
	// identities. The source requires only read rights. Sites and site
	// containers are structural nodes and categorically refuse copying.
	//
	// Errors: NotFound, InvalidArgument (non-folder target), Conflict
	// (destination collision), PermissionDenied, UnprocessableEntity
	// (site or site container source).
	Copy(opCtx *OperationContext, id NodeID, targetParent NodeID, newName string) (*Node, error)

	// ========================================================================
	// Associations
	// ========================================================================

	// Associate records a secondary typed reference from source to target.
	Associate(opCtx *OperationContext, source, target NodeID, assocType QName) error

	// Associations lists the secondary references held by source.
	Associations(opCtx *OperationContext, source NodeID) ([]Association, error)
}

// ============================================================================
// Request and Option Types
// ============================================================================

// CreateRequest carries the parameters of a node creation.
type CreateRequest struct {
	// ParentID is the folder the node is created under.
	ParentID NodeID

	// Name is the node name, or a relative path ("docs/2024/report.txt")
	// whose intermediate segments are created as folders on demand.
	Name string

	// Type is the node type; must be a concrete, non-protected type.
	Type QName

	// Properties are the initial property values.
	Properties PropertyMap

	// Aspects are the initial trait bundles.
	Aspects []QName

	// AutoRename resolves sibling collisions by appending a numeric
	// suffix ("report-1.txt", "report-2.txt", ...) instead of failing.
	AutoRename bool
}

// GetOptions controls optional projections on Get.
type GetOptions struct {
	// IncludePath computes the permission-checked human path.
	IncludePath bool
}

// UpdateRequest is a metadata delta. Nil fields are left untouched.
type UpdateRequest struct {
	// Name renames the node within its current parent.
	Name *string

	// Properties sets property values; nil or blank values remove the
	// property.
	Properties PropertyMap

	// AddAspects applies trait bundles.
	AddAspects []QName

	// RemoveAspects removes trait bundles along with their properties.
	RemoveAspects []QName

	// Type narrows the node's type along the model's subtype order.
	Type *QName

	// Owner reassigns ownership (current owner or administrator only).
	Owner *string
}

// SortField names a sortable child attribute.
type SortField string

const (
	SortByName       SortField = "name"
	SortByIsFolder   SortField = "isFolder"
	SortByCreatedAt  SortField = "createdAt"
	SortByModifiedAt SortField = "modifiedAt"
	SortBySize       SortField = "sizeInBytes"
)

// SortKey is one component of a multi-key child ordering.
type SortKey struct {
	Field     SortField
	Ascending bool
}

// ChildFilter restricts a child listing.
//
// IsFolder and IsFile filter on the derived booleans; requiring both true
// is contradictory and rejected. Type filters on the node type, exactly or
// including subtypes; combining a type filter with an is-folder/is-file
// filter is rejected as mutually exclusive.
type ChildFilter struct {
	IsFolder        *bool
	IsFile          *bool
	Type            QName
	IncludeSubtypes bool
}

// ListOptions carries filtering, ordering and pagination for ListChildren.
type ListOptions struct {
	Filter ChildFilter

	// OrderBy applies sort keys in order, with a stable tie-break on
	// creation order. Empty means creation order.
	OrderBy []SortKey

	// SkipCount is the number of leading entries to skip; negative values
	// are rejected.
	SkipCount int

	// MaxItems is the page size; values below one are rejected.
	MaxItems int
}

// ChildPage is one page of a child listing.
type ChildPage struct {
	Entries      []*Node `json:"entries"`
	TotalItems   int     `json:"totalItems"`
	HasMoreItems bool    `json:"hasMoreItems"`
	SkipCount    int     `json:"skipCount"`
	MaxItems     int     `json:"maxItems"`
}

// ContentUpdate attaches a new content snapshot to a node.
type ContentUpdate struct {
	// ContentRef identifies the already-stored immutable snapshot.
	ContentRef string

	// Size is the snapshot size in bytes.
	Size int64

	// MimeType and Encoding come from the content-type sniffing
	// collaborator; the repository stores them verbatim.
	MimeType string
	Encoding string

	// Major requests a MAJOR version bump for versionable nodes. The
	// first version of a node is always "1.0" regardless.
	Major bool

	// Comment is the optional version comment.
	Comment string
}

// PermissionRequest replaces a node's locally-set ACL.
type PermissionRequest struct {
	// Entries is the complete locally-set list. Nil leaves the current
	// entries untouched (use an empty non-nil slice to clear).
	Entries []PermissionEntry

	// InheritanceEnabled toggles parent-chain inheritance when non-nil.
	InheritanceEnabled *bool
}

// RestoreRequest controls where an archived subtree is restored to.
type RestoreRequest struct {
	// TargetParentID overrides the original parent; required when the
	// original parent is itself archived or purged.
	TargetParentID NodeID

	// AutoRename resolves name collisions at the restore destination.
	AutoRename bool
}
