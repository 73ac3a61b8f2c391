package testing

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/treelinehq/canopy/pkg/repo"
)

// RunPermissionTests executes ACL resolution and mutation tests.
func (suite *StoreTestSuite) RunPermissionTests(t *testing.T) {
	t.Run("EveryoneReadsTheTreeByDefault", suite.testDefaultRead)
	t.Run("GroupGrantReachesMembers", suite.testGroupGrant)
	t.Run("DenyBeatsAllowAtSameNode", suite.testDenyBeatsAllow)
	t.Run("NearestNodeWins", suite.testNearestWins)
	t.Run("InheritanceCutStopsGrants", suite.testInheritanceCut)
	t.Run("OwnerHoldsFullRights", suite.testOwnerRights)
	t.Run("LocalDenyOverridesOwnership", suite.testOwnerDeny)
	t.Run("AdminBypassesACL", suite.testAdminBypass)
	t.Run("EffectivePermissionsProjection", suite.testEffectivePermissions)
	t.Run("UnknownAuthorityRejected", suite.testSetUnknownAuthority)
	t.Run("UnknownPermissionNameRejected", suite.testSetUnknownPermission)
	t.Run("InvalidAccessStatusRejected", suite.testSetInvalidAccess)
	t.Run("DuplicateEntryRejected", suite.testSetDuplicateEntry)
	t.Run("ValidationPrecedesMutation", suite.testSetValidationAtomic)
	t.Run("CanPerformReturnsFalseNotError", suite.testCanPerform)
}

func (suite *StoreTestSuite) testDefaultRead(t *testing.T) {
	env := suite.NewStore()

	// The root's built-in GROUP_EVERYONE Consumer grant lets any
	// principal read the tree top.
	node, err := env.Store.Get(as("carol"), env.RootID, repo.GetOptions{})
	require.NoError(t, err)
	require.Equal(t, env.RootID, node.ID)
}

func (suite *StoreTestSuite) testGroupGrant(t *testing.T) {
	env := suite.NewStore()

	// Setup: a folder writable by GROUP_ENGINEERING; bob is a member,
	// carol is not.
	folder := createFolder(t, env.Store, "admin", env.RootID, "engineering")
	grant(t, env.Store, folder.ID, "GROUP_ENGINEERING", "Contributor")

	_, err := env.Store.Create(as("bob"), repo.CreateRequest{
		ParentID: folder.ID, Name: "design.md", Type: repo.TypeContent,
	})
	require.NoError(t, err)

	_, err = env.Store.Create(as("carol"), repo.CreateRequest{
		ParentID: folder.ID, Name: "intrusion.md", Type: repo.TypeContent,
	})
	AssertKind(t, repo.KindPermissionDenied, err)
}

func (suite *StoreTestSuite) testDenyBeatsAllow(t *testing.T) {
	env := suite.NewStore()

	// Setup: bob is both personally allowed and denied through his group
	// on the same node.
	folder := createFolder(t, env.Store, "admin", env.RootID, "contested")
	_, err := env.Store.SetPermissions(as("admin"), folder.ID, repo.PermissionRequest{
		Entries: []repo.PermissionEntry{
			{Authority: "bob", Name: "Consumer", Access: repo.AccessAllowed},
			{Authority: "GROUP_ENGINEERING", Name: "Consumer", Access: repo.AccessDenied},
		},
		InheritanceEnabled: boolPtr(false),
	})
	require.NoError(t, err)

	// Assert: the DENY wins at the same depth.
	_, err = env.Store.Get(as("bob"), folder.ID, repo.GetOptions{})
	AssertKind(t, repo.KindPermissionDenied, err)
}

func (suite *StoreTestSuite) testNearestWins(t *testing.T) {
	env := suite.NewStore()

	// Setup: outer folder denies bob, inner folder allows him. The inner
	// (nearer) opinion wins for nodes below it.
	outer := createFolder(t, env.Store, "admin", env.RootID, "outer")
	_, err := env.Store.SetPermissions(as("admin"), outer.ID, repo.PermissionRequest{
		Entries: []repo.PermissionEntry{
			{Authority: "bob", Name: "Consumer", Access: repo.AccessDenied},
		},
	})
	require.NoError(t, err)

	inner := createFolder(t, env.Store, "admin", outer.ID, "inner")
	grant(t, env.Store, inner.ID, "bob", "Consumer")
	file := createFile(t, env.Store, "admin", inner.ID, "visible.txt")

	// Assert: the file under inner is readable despite the outer DENY.
	_, err = env.Store.Get(as("bob"), file.ID, repo.GetOptions{})
	require.NoError(t, err)

	// Assert: the outer folder itself is still denied.
	_, err = env.Store.Get(as("bob"), outer.ID, repo.GetOptions{})
	AssertKind(t, repo.KindPermissionDenied, err)
}

func (suite *StoreTestSuite) testInheritanceCut(t *testing.T) {
	env := suite.NewStore()

	// Setup: a folder granting bob read, with a child that cuts
	// inheritance.
	folder := createFolder(t, env.Store, "admin", env.RootID, "project")
	grant(t, env.Store, folder.ID, "bob", "Consumer")
	restricted := createFolder(t, env.Store, "admin", folder.ID, "restricted")
	_, err := env.Store.SetPermissions(as("admin"), restricted.ID, repo.PermissionRequest{
		InheritanceEnabled: boolPtr(false),
	})
	require.NoError(t, err)

	// Assert: the parent grant (and the root's everyone grant) no longer
	// reach below the cut.
	_, err = env.Store.Get(as("bob"), restricted.ID, repo.GetOptions{})
	AssertKind(t, repo.KindPermissionDenied, err)
}

func (suite *StoreTestSuite) testOwnerRights(t *testing.T) {
	env := suite.NewStore()

	// alice owns what she creates and keeps full rights over it with no
	// explicit grant anywhere.
	file := createFile(t, env.Store, "alice", env.HomeID("alice"), "mine.txt")

	_, err := env.Store.Update(as("alice"), file.ID, repo.UpdateRequest{Name: strPtr("still-mine.txt")})
	require.NoError(t, err)
	err = env.Store.SoftDelete(as("alice"), file.ID)
	require.NoError(t, err)
}

func (suite *StoreTestSuite) testOwnerDeny(t *testing.T) {
	env := suite.NewStore()
	file := createFile(t, env.Store, "alice", env.HomeID("alice"), "frozen.txt")

	// A locally-set DENY naming the owner overrides ownership.
	_, err := env.Store.SetPermissions(as("admin"), file.ID, repo.PermissionRequest{
		Entries: []repo.PermissionEntry{
			{Authority: "alice", Name: "Write", Access: repo.AccessDenied},
		},
	})
	require.NoError(t, err)

	_, err = env.Store.Update(as("alice"), file.ID, repo.UpdateRequest{Name: strPtr("thawed.txt")})
	AssertKind(t, repo.KindPermissionDenied, err)

	// Reading is untouched by the write DENY.
	_, err = env.Store.Get(as("alice"), file.ID, repo.GetOptions{})
	require.NoError(t, err)
}

func (suite *StoreTestSuite) testAdminBypass(t *testing.T) {
	env := suite.NewStore()
	file := createFile(t, env.Store, "alice", env.HomeID("alice"), "private.txt")

	// No grant names admin anywhere inside alice's home.
	_, err := env.Store.Get(as("admin"), file.ID, repo.GetOptions{})
	require.NoError(t, err)
	_, err = env.Store.Update(as("admin"), file.ID, repo.UpdateRequest{Name: strPtr("inspected.txt")})
	require.NoError(t, err)
}

func (suite *StoreTestSuite) testEffectivePermissions(t *testing.T) {
	env := suite.NewStore()
	folder := createFolder(t, env.Store, "admin", env.RootID, "reports")
	grant(t, env.Store, folder.ID, "bob", "Editor")
	file := createFile(t, env.Store, "admin", folder.ID, "q3.txt")

	set, err := env.Store.EffectivePermissions(as("admin"), file.ID)
	require.NoError(t, err)

	require.True(t, set.Inheritance)
	require.Empty(t, set.LocallySet)

	// The inherited union carries both the folder grant and the root's
	// everyone grant.
	authorities := make(map[string]bool)
	for _, entry := range set.Inherited {
		authorities[entry.Authority] = true
	}
	require.True(t, authorities["bob"])
	require.True(t, authorities[repo.GroupEveryone])
}

func (suite *StoreTestSuite) testSetUnknownAuthority(t *testing.T) {
	env := suite.NewStore()
	file := createFile(t, env.Store, "alice", env.HomeID("alice"), "notes.txt")

	_, err := env.Store.SetPermissions(as("alice"), file.ID, repo.PermissionRequest{
		Entries: []repo.PermissionEntry{
			{Authority: "nobody", Name: "Consumer", Access: repo.AccessAllowed},
		},
	})
	AssertKind(t, repo.KindUnprocessableEntity, err)
}

func (suite *StoreTestSuite) testSetUnknownPermission(t *testing.T) {
	env := suite.NewStore()
	file := createFile(t, env.Store, "alice", env.HomeID("alice"), "notes.txt")

	_, err := env.Store.SetPermissions(as("alice"), file.ID, repo.PermissionRequest{
		Entries: []repo.PermissionEntry{
			{Authority: "bob", Name: "Overlord", Access: repo.AccessAllowed},
		},
	})
	AssertKind(t, repo.KindUnprocessableEntity, err)
}

func (suite *StoreTestSuite) testSetInvalidAccess(t *testing.T) {
	env := suite.NewStore()
	file := createFile(t, env.Store, "alice", env.HomeID("alice"), "notes.txt")

	_, err := env.Store.SetPermissions(as("alice"), file.ID, repo.PermissionRequest{
		Entries: []repo.PermissionEntry{
			{Authority: "bob", Name: "Consumer", Access: "MAYBE"},
		},
	})
	AssertKind(t, repo.KindUnprocessableEntity, err)
}

func (suite *StoreTestSuite) testSetDuplicateEntry(t *testing.T) {
	env := suite.NewStore()
	file := createFile(t, env.Store, "alice", env.HomeID("alice"), "notes.txt")

	// The same (authority, permission) tuple twice, even with opposite
	// statuses, is rejected.
	_, err := env.Store.SetPermissions(as("alice"), file.ID, repo.PermissionRequest{
		Entries: []repo.PermissionEntry{
			{Authority: "bob", Name: "Consumer", Access: repo.AccessAllowed},
			{Authority: "bob", Name: "Consumer", Access: repo.AccessDenied},
		},
	})
	AssertKind(t, repo.KindUnprocessableEntity, err)
}

func (suite *StoreTestSuite) testSetValidationAtomic(t *testing.T) {
	env := suite.NewStore()
	file := createFile(t, env.Store, "alice", env.HomeID("alice"), "notes.txt")

	// Action: one good entry, one bad.
	_, err := env.Store.SetPermissions(as("alice"), file.ID, repo.PermissionRequest{
		Entries: []repo.PermissionEntry{
			{Authority: "bob", Name: "Consumer", Access: repo.AccessAllowed},
			{Authority: "nobody", Name: "Consumer", Access: repo.AccessAllowed},
		},
	})
	AssertKind(t, repo.KindUnprocessableEntity, err)

	// Assert: the good entry was not applied.
	set, err := env.Store.EffectivePermissions(as("alice"), file.ID)
	require.NoError(t, err)
	require.Empty(t, set.LocallySet)
}

func (suite *StoreTestSuite) testCanPerform(t *testing.T) {
	env := suite.NewStore()
	file := createFile(t, env.Store, "alice", env.HomeID("alice"), "notes.txt")
	grant(t, env.Store, file.ID, "bob", "Consumer")

	// "No" is a false return, not an error.
	ok, err := env.Store.CanPerform(as("bob"), file.ID, repo.ActionRead)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = env.Store.CanPerform(as("bob"), file.ID, repo.ActionUpdate)
	require.NoError(t, err)
	require.False(t, ok)

	// Unknown nodes are an error.
	_, err = env.Store.CanPerform(as("bob"), "no-such-node", repo.ActionRead)
	AssertKind(t, repo.KindNotFound, err)
}
