package repo

// Action is an access right checked by the permission oracle.
type Action int

const (
	ActionRead Action = iota
	ActionCreateChild
	ActionUpdate
	ActionDelete
	ActionChangePermissions
)

func (a Action) String() string {
	switch a {
	case ActionRead:
		return "read"
	case ActionCreateChild:
		return "create-child"
	case ActionUpdate:
		return "update"
	case ActionDelete:
		return "delete"
	case ActionChangePermissions:
		return "change-permissions"
	default:
		return "unknown"
	}
}

// AccessStatus is the disposition of an ACL entry.
//
// DENIED is an explicit refusal and wins over an inherited ALLOWED for the
// same authority and permission. Absence of an entry is "no opinion" and
// defers to inherited entries and defaults.
type AccessStatus string

const (
	AccessAllowed AccessStatus = "ALLOWED"
	AccessDenied  AccessStatus = "DENIED"
)

// Valid reports whether s is one of the two recognized statuses.
func (s AccessStatus) Valid() bool {
	return s == AccessAllowed || s == AccessDenied
}

// GroupEveryone is the built-in authority matching every principal.
const GroupEveryone = "GROUP_EVERYONE"

// PermissionEntry is one locally-set ACL tuple on a node.
type PermissionEntry struct {
	// Authority is a principal or group id.
	Authority string `json:"authorityId"`

	// Name is a recognized permission or role name (see PermissionActions).
	Name string `json:"name"`

	// Access is ALLOWED or DENIED.
	Access AccessStatus `json:"accessStatus"`
}

// PermissionSet is a node's resolved ACL: the locally-set entries plus the
// entries inherited from the primary-parent chain. When inheritance is
// disabled on the node, Inherited is empty.
type PermissionSet struct {
	LocallySet  []PermissionEntry `json:"locallySet,omitempty"`
	Inherited   []PermissionEntry `json:"inherited,omitempty"`
	Inheritance bool              `json:"inheritanceEnabled"`
}

// permissionActions maps each recognized permission and role name to the
// actions it grants. Role names expand to bundles the way the original
// repository defines them: Consumer is read-only, Contributor adds child
// creation, Editor adds update, Collaborator both, Coordinator everything.
var permissionActions = map[string][]Action{
	"Read":              {ActionRead},
	"Write":             {ActionUpdate},
	"Delete":            {ActionDelete},
	"AddChildren":       {ActionCreateChild},
	"ChangePermissions": {ActionChangePermissions},
	"Consumer":          {ActionRead},
	"Contributor":       {ActionRead, ActionCreateChild},
	"Editor":            {ActionRead, ActionUpdate},
	"Collaborator":      {ActionRead, ActionUpdate, ActionCreateChild},
	"Coordinator": {
		ActionRead, ActionCreateChild, ActionUpdate,
		ActionDelete, ActionChangePermissions,
	},
}

// KnownPermission reports whether name is a recognized permission or role.
func KnownPermission(name string) bool {
	_, ok := permissionActions[name]
	return ok
}

// PermissionActions returns the actions granted (or denied) by the given
// permission or role name. The returned slice must not be mutated.
func PermissionActions(name string) []Action {
	return permissionActions[name]
}

// PermissionGrants reports whether the permission name covers the action.
func PermissionGrants(name string, action Action) bool {
	for _, a := range permissionActions[name] {
		if a == action {
			return true
		}
	}
	return false
}
