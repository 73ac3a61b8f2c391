package identity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPrincipalExists(t *testing.T) {
	dir := NewMemoryDirectory()
	dir.AddUser("alice")
	dir.AddGroup("GROUP_SALES")

	require.True(t, dir.PrincipalExists("alice"))
	require.True(t, dir.PrincipalExists("GROUP_SALES"))
	require.True(t, dir.PrincipalExists("GROUP_EVERYONE"))
	require.False(t, dir.PrincipalExists("bob"))
}

func TestRemoveUser(t *testing.T) {
	dir := NewMemoryDirectory()
	dir.AddUser("alice")
	dir.RemoveUser("alice")
	require.False(t, dir.PrincipalExists("alice"))
}

func TestTransitiveMembership(t *testing.T) {
	// alice -> GROUP_TEAM -> GROUP_DEPT
	dir := NewMemoryDirectory()
	dir.AddUser("alice")
	dir.AddMember("GROUP_TEAM", "alice")
	dir.AddMember("GROUP_DEPT", "GROUP_TEAM")

	authorities := dir.AuthoritiesOf("alice")
	require.Contains(t, authorities, "GROUP_TEAM")
	require.Contains(t, authorities, "GROUP_DEPT")
}

func TestMembershipCycleTerminates(t *testing.T) {
	dir := NewMemoryDirectory()
	dir.AddUser("alice")
	dir.AddMember("GROUP_A", "alice")
	dir.AddMember("GROUP_B", "GROUP_A")
	dir.AddMember("GROUP_A", "GROUP_B")

	authorities := dir.AuthoritiesOf("alice")
	require.ElementsMatch(t, []string{"GROUP_A", "GROUP_B"}, authorities)
}

func TestIsAdmin(t *testing.T) {
	dir := NewMemoryDirectory()
	dir.AddUser("alice")
	dir.AddUser("root")
	dir.AddMember(AdminAuthority, "root")

	require.True(t, dir.IsAdmin("admin"), "the admin user is built in")
	require.True(t, dir.IsAdmin("root"), "membership in the admin group suffices")
	require.False(t, dir.IsAdmin("alice"))
}
