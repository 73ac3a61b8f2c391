// Package identity resolves principals, group membership and administrator
// status for the permission oracle.
//
// The repository stores principal names as plain strings and never
// re-validates them after the fact: deleting a user must not retroactively
// invalidate audit fields, lock ownership or owner records that reference
// them.
package identity

import "sync"

// AdminAuthority is the built-in administrators group.
const AdminAuthority = "GROUP_ADMINISTRATORS"

// Directory resolves authorities for access control decisions.
//
// Thread Safety:
// Implementations must be safe for concurrent use by multiple goroutines.
type Directory interface {
	// PrincipalExists reports whether a user or group with this id exists.
	// Group ids carry the "GROUP_" prefix.
	PrincipalExists(name string) bool

	// AuthoritiesOf returns the transitive group memberships of a
	// principal, excluding the principal itself.
	AuthoritiesOf(principal string) []string

	// IsAdmin reports whether the principal is an administrator, directly
	// or through group membership.
	IsAdmin(principal string) bool
}

// MemoryDirectory is an in-memory Directory.
//
// Suitable for tests, development and single-process deployments seeded
// from configuration. Group membership may be nested; AuthoritiesOf
// expands it transitively.
type MemoryDirectory struct {
	mu      sync.RWMutex
	users   map[string]bool
	groups  map[string][]string // group -> direct members (users or groups)
	members map[string][]string // principal -> direct groups
}

// NewMemoryDirectory creates an empty directory.
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		users:   make(map[string]bool),
		groups:  make(map[string][]string),
		members: make(map[string][]string),
	}
}

// AddUser registers a user.
func (d *MemoryDirectory) AddUser(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[name] = true
}

// RemoveUser deletes a user. Existing audit and ownership records keep
// referencing the name; only future existence checks change.
func (d *MemoryDirectory) RemoveUser(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.users, name)
}

// AddGroup registers a group.
func (d *MemoryDirectory) AddGroup(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.groups[name]; !ok {
		d.groups[name] = nil
	}
}

// AddMember adds a user or group to a group, creating the group if needed.
func (d *MemoryDirectory) AddMember(group, member string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.groups[group] = append(d.groups[group], member)
	d.members[member] = append(d.members[member], group)
}

// PrincipalExists implements Directory.
func (d *MemoryDirectory) PrincipalExists(name string) bool {
	if name == "GROUP_EVERYONE" {
		return true
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.users[name] {
		return true
	}
	_, ok := d.groups[name]
	return ok
}

// AuthoritiesOf implements Directory.
func (d *MemoryDirectory) AuthoritiesOf(principal string) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var result []string
	seen := map[string]bool{}
	queue := append([]string(nil), d.members[principal]...)
	for len(queue) > 0 {
		group := queue[0]
		queue = queue[1:]
		if seen[group] {
			continue
		}
		seen[group] = true
		result = append(result, group)
		queue = append(queue, d.members[group]...)
	}
	return result
}

// IsAdmin implements Directory.
func (d *MemoryDirectory) IsAdmin(principal string) bool {
	if principal == "admin" {
		return true
	}
	for _, authority := range d.AuthoritiesOf(principal) {
		if authority == AdminAuthority {
			return true
		}
	}
	return false
}
