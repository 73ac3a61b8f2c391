package repo

import "time"

// NodeID is the opaque stable identifier of a node (a UUID string).
//
// A node keeps its id for its whole lifecycle: it stays the same across
// renames, moves and archiving, and is only freed when the node is purged.
type NodeID string

// QName is a qualified name from the content model, e.g. "cm:content",
// "cm:title" or "st:site". The prefix selects the model namespace.
type QName string

// Well-known node types.
const (
	TypeBase          QName = "sys:base"
	TypeObject        QName = "cm:cmobject"
	TypeContent       QName = "cm:content"
	TypeFolder        QName = "cm:folder"
	TypeSystemFolder  QName = "sys:systemfolder"
	TypeSite          QName = "st:site"
	TypeSiteContainer QName = "st:siteContainer"
	TypeSitesRoot     QName = "st:sites"
	TypeLink          QName = "cm:link"
)

// Well-known aspects.
const (
	AspectTitled      QName = "cm:titled"
	AspectVersionable QName = "cm:versionable"
	AspectLockable    QName = "cm:lockable"
	AspectOwnable     QName = "cm:ownable"
	AspectAuditable   QName = "cm:auditable"
)

// Well-known properties.
const (
	PropName                  QName = "cm:name"
	PropTitle                 QName = "cm:title"
	PropDescription           QName = "cm:description"
	PropOwner                 QName = "cm:owner"
	PropCreator               QName = "cm:creator"
	PropCreated               QName = "cm:created"
	PropModifier              QName = "cm:modifier"
	PropModified              QName = "cm:modified"
	PropAutoVersionProps      QName = "cm:autoVersionOnUpdateProps"
	PropLinkDestination       QName = "cm:destination"
	PropVersionLabelRProperty QName = "cm:versionLabel"
)

// NodeState tracks where a node sits in its lifecycle.
//
// The lifecycle is Active -> Archived (soft delete, cascades to the whole
// subtree) -> purged (identity freed), with a direct Active -> purged edge
// when delete bypasses the archive. Purged nodes have no state: they are
// simply gone.
type NodeState int

const (
	// StateActive means the node is part of the live tree.
	StateActive NodeState = iota

	// StateArchived means the node sits in the archive (trashcan)
	// namespace. It is excluded from all normal tree operations but stays
	// queryable by identity until purged or restored.
	StateArchived
)

func (s NodeState) String() string {
	switch s {
	case StateActive:
		return "ACTIVE"
	case StateArchived:
		return "ARCHIVED"
	default:
		return "UNKNOWN"
	}
}

// PropertyMap holds a node's typed property values keyed by qualified name.
// Insertion order is irrelevant.
type PropertyMap map[QName]any

// Clone returns a shallow copy of the map (values are treated as immutable).
func (p PropertyMap) Clone() PropertyMap {
	if p == nil {
		return nil
	}
	out := make(PropertyMap, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// ContentInfo describes the content snapshot currently attached to a node.
//
// The repository stores the (mimetype, encoding) pair supplied by the
// content-type sniffing collaborator; it never computes it.
type ContentInfo struct {
	// ContentRef identifies the immutable snapshot in the content store.
	ContentRef string `json:"contentRef"`

	// Size is the snapshot size in bytes.
	Size int64 `json:"sizeInBytes"`

	// MimeType is the declared or sniffed media type.
	MimeType string `json:"mimeType"`

	// Encoding is the declared or sniffed text encoding ("" for binary).
	Encoding string `json:"encoding,omitempty"`
}

// PathInfo is the human-readable path of a node.
//
// Computing a path requires read permission on every ancestor. When the
// caller cannot read some ancestor the path truncates at the first
// unreadable boundary and IsComplete is false; this is not an error.
type PathInfo struct {
	// Name is the display path, e.g. "/Company Home/Sites/finance".
	Name string `json:"name"`

	// IsComplete is false when the path was truncated at an unreadable
	// ancestor.
	IsComplete bool `json:"isComplete"`
}

// Association is a secondary, typed, non-hierarchical reference between
// two nodes (e.g. a link node pointing at its destination). Associations
// never define paths and are exempt from the cycle rules that govern the
// primary-parent tree.
type Association struct {
	// SourceID is the node holding the reference.
	SourceID NodeID `json:"sourceId"`

	// TargetID is the referenced node.
	TargetID NodeID `json:"targetId"`

	// Type is the association type, e.g. "cm:original".
	Type QName `json:"assocType"`
}

// Node is an addressable entity in the content tree.
type Node struct {
	// ID is the stable node identifier.
	ID NodeID `json:"id"`

	// Name is the node's name within its primary parent.
	Name string `json:"name"`

	// Type is the node's content-model type.
	Type QName `json:"nodeType"`

	// ParentID is the primary parent defining this node's path. Empty for
	// the tenant root.
	ParentID NodeID `json:"parentId,omitempty"`

	// Aspects is the set of applied trait bundles.
	Aspects []QName `json:"aspectNames,omitempty"`

	// Properties holds the client-visible property values. System audit
	// values are exposed through the dedicated fields below, never here.
	Properties PropertyMap `json:"properties,omitempty"`

	// Owner is the explicit owner, or the creator when never reassigned.
	Owner string `json:"owner"`

	// Audit fields. System-written; client writes are rejected.
	CreatedBy  string    `json:"createdByUser"`
	CreatedAt  time.Time `json:"createdAt"`
	ModifiedBy string    `json:"modifiedByUser"`
	ModifiedAt time.Time `json:"modifiedAt"`

	// IsFolder and IsFile are derived from the type graph (subtype of
	// cm:folder / cm:content respectively).
	IsFolder bool `json:"isFolder"`
	IsFile   bool `json:"isFile"`

	// Content describes the attached content snapshot, nil for folders and
	// content-less nodes.
	Content *ContentInfo `json:"content,omitempty"`

	// VersionLabel is the current version label ("1.0", "2.3", ...) for
	// nodes under versioning, "" otherwise.
	VersionLabel string `json:"versionLabel,omitempty"`

	// State reports whether the node is active or archived.
	State NodeState `json:"-"`

	// InheritPermissions reports whether the node unions its parent's
	// effective ACL with its own locally-set entries.
	InheritPermissions bool `json:"inheritPermissions"`

	// Path is the optional human path, populated on request.
	Path *PathInfo `json:"path,omitempty"`

	// Lock describes the active lock, nil when unlocked or expired.
	Lock *LockInfo `json:"lockInfo,omitempty"`
}

// HasAspect reports whether the node carries the given aspect.
func (n *Node) HasAspect(aspect QName) bool {
	for _, a := range n.Aspects {
		if a == aspect {
			return true
		}
	}
	return false
}
