package testing

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/treelinehq/canopy/pkg/repo"
)

// RunTrashTests executes soft delete, purge and restore tests.
func (suite *StoreTestSuite) RunTrashTests(t *testing.T) {
	t.Run("SoftDeleteCascades", suite.testSoftDeleteCascades)
	t.Run("ArchivedNodeKeepsIdentity", suite.testArchiveKeepsIdentity)
	t.Run("SoftDeleteTwiceNotFound", suite.testSoftDeleteTwice)
	t.Run("ProtectedNodesFatallyRejected", suite.testProtectedDelete)
	t.Run("HomeFolderDeleteRules", suite.testHomeFolderDelete)
	t.Run("ArchiveVisibility", suite.testArchiveVisibility)
	t.Run("RestoreToOriginalParent", suite.testRestoreOriginal)
	t.Run("RestoreSubtree", suite.testRestoreSubtree)
	t.Run("RestoreOriginalParentGone", suite.testRestoreParentGone)
	t.Run("RestoreToExplicitTarget", suite.testRestoreExplicitTarget)
	t.Run("RestoreCollision", suite.testRestoreCollision)
	t.Run("PurgeArchived", suite.testPurgeArchived)
	t.Run("PurgeActiveBypassesArchive", suite.testPurgeActive)
	t.Run("PurgeActiveByNonOwnerDenied", suite.testPurgeActiveDenied)
}

func (suite *StoreTestSuite) testSoftDeleteCascades(t *testing.T) {
	env := suite.NewStore()
	home := env.HomeID("alice")
	docs := createFolder(t, env.Store, "alice", home, "docs")
	nested := createFolder(t, env.Store, "alice", docs.ID, "nested")
	file := createFile(t, env.Store, "alice", nested.ID, "doc.txt")

	require.NoError(t, env.Store.SoftDelete(as("alice"), docs.ID))

	// The whole subtree left the live tree.
	for _, id := range []repo.NodeID{docs.ID, nested.ID, file.ID} {
		_, err := env.Store.Get(as("alice"), id, repo.GetOptions{})
		AssertKind(t, repo.KindNotFound, err)
	}

	// And every member is queryable in the archive.
	for _, id := range []repo.NodeID{docs.ID, nested.ID, file.ID} {
		archived, err := env.Store.GetArchived(as("alice"), id)
		require.NoError(t, err)
		require.Equal(t, repo.StateArchived, archived.State)
	}
}

func (suite *StoreTestSuite) testArchiveKeepsIdentity(t *testing.T) {
	env := suite.NewStore()
	file := createFile(t, env.Store, "alice", env.HomeID("alice"), "doc.txt")

	require.NoError(t, env.Store.SoftDelete(as("alice"), file.ID))

	archived, err := env.Store.GetArchived(as("alice"), file.ID)
	require.NoError(t, err)
	require.Equal(t, file.ID, archived.ID)
	require.Equal(t, "doc.txt", archived.Name)
}

func (suite *StoreTestSuite) testSoftDeleteTwice(t *testing.T) {
	env := suite.NewStore()
	file := createFile(t, env.Store, "alice", env.HomeID("alice"), "doc.txt")

	require.NoError(t, env.Store.SoftDelete(as("alice"), file.ID))
	err := env.Store.SoftDelete(as("alice"), file.ID)
	AssertKind(t, repo.KindNotFound, err)
}

func (suite *StoreTestSuite) testProtectedDelete(t *testing.T) {
	env := suite.NewStore()

	// The root is protected even against administrators.
	err := env.Store.SoftDelete(as("admin"), env.RootID)
	AssertKind(t, repo.KindPermissionDenied, err)
	err = env.Store.Purge(as("admin"), env.RootID)
	AssertKind(t, repo.KindPermissionDenied, err)
}

func (suite *StoreTestSuite) testHomeFolderDelete(t *testing.T) {
	env := suite.NewStore()
	aliceHome := env.HomeID("alice")

	// Setup: bob gets an explicit delete grant on alice's home.
	_, err := env.Store.SetPermissions(as("admin"), aliceHome, repo.PermissionRequest{
		Entries: []repo.PermissionEntry{
			{Authority: "bob", Name: "Coordinator", Access: repo.AccessAllowed},
		},
	})
	require.NoError(t, err)

	// Assert: the grant does not help; home folders only yield to their
	// owner or an administrator.
	err = env.Store.SoftDelete(as("bob"), aliceHome)
	AssertKind(t, repo.KindPermissionDenied, err)

	// The owner may delete their own home.
	require.NoError(t, env.Store.SoftDelete(as("alice"), aliceHome))
}

func (suite *StoreTestSuite) testArchiveVisibility(t *testing.T) {
	env := suite.NewStore()
	file := createFile(t, env.Store, "alice", env.HomeID("alice"), "doc.txt")
	grant(t, env.Store, file.ID, "bob", "Consumer")
	require.NoError(t, env.Store.SoftDelete(as("alice"), file.ID))

	// Owner, admin, and locally granted readers see the archive entry.
	_, err := env.Store.GetArchived(as("alice"), file.ID)
	require.NoError(t, err)
	_, err = env.Store.GetArchived(as("admin"), file.ID)
	require.NoError(t, err)
	_, err = env.Store.GetArchived(as("bob"), file.ID)
	require.NoError(t, err)

	// carol holds nothing.
	_, err = env.Store.GetArchived(as("carol"), file.ID)
	AssertKind(t, repo.KindPermissionDenied, err)
}

func (suite *StoreTestSuite) testRestoreOriginal(t *testing.T) {
	env := suite.NewStore()
	home := env.HomeID("alice")
	file := createFile(t, env.Store, "alice", home, "doc.txt")
	require.NoError(t, env.Store.SoftDelete(as("alice"), file.ID))

	restored, err := env.Store.Restore(as("alice"), file.ID, repo.RestoreRequest{})
	require.NoError(t, err)
	require.Equal(t, file.ID, restored.ID)
	require.Equal(t, home, restored.ParentID)
	require.Equal(t, repo.StateActive, restored.State)

	_, err = env.Store.Get(as("alice"), file.ID, repo.GetOptions{})
	require.NoError(t, err)
}

func (suite *StoreTestSuite) testRestoreSubtree(t *testing.T) {
	env := suite.NewStore()
	home := env.HomeID("alice")
	docs := createFolder(t, env.Store, "alice", home, "docs")
	file := createFile(t, env.Store, "alice", docs.ID, "doc.txt")
	require.NoError(t, env.Store.SoftDelete(as("alice"), docs.ID))

	_, err := env.Store.Restore(as("alice"), docs.ID, repo.RestoreRequest{})
	require.NoError(t, err)

	// The descendant came back with the subtree root.
	node, err := env.Store.Get(as("alice"), file.ID, repo.GetOptions{})
	require.NoError(t, err)
	require.Equal(t, docs.ID, node.ParentID)
}

func (suite *StoreTestSuite) testRestoreParentGone(t *testing.T) {
	env := suite.NewStore()
	home := env.HomeID("alice")
	docs := createFolder(t, env.Store, "alice", home, "docs")
	file := createFile(t, env.Store, "alice", docs.ID, "doc.txt")

	// Archive the file, then purge its parent folder.
	require.NoError(t, env.Store.SoftDelete(as("alice"), file.ID))
	require.NoError(t, env.Store.Purge(as("alice"), docs.ID))

	// Without a target the restore has nowhere to go.
	_, err := env.Store.Restore(as("alice"), file.ID, repo.RestoreRequest{})
	AssertKind(t, repo.KindNotFound, err)
}

func (suite *StoreTestSuite) testRestoreExplicitTarget(t *testing.T) {
	env := suite.NewStore()
	home := env.HomeID("alice")
	docs := createFolder(t, env.Store, "alice", home, "docs")
	other := createFolder(t, env.Store, "alice", home, "other")
	file := createFile(t, env.Store, "alice", docs.ID, "doc.txt")
	require.NoError(t, env.Store.SoftDelete(as("alice"), file.ID))

	restored, err := env.Store.Restore(as("alice"), file.ID, repo.RestoreRequest{
		TargetParentID: other.ID,
	})
	require.NoError(t, err)
	require.Equal(t, other.ID, restored.ParentID)
}

func (suite *StoreTestSuite) testRestoreCollision(t *testing.T) {
	env := suite.NewStore()
	home := env.HomeID("alice")
	file := createFile(t, env.Store, "alice", home, "doc.txt")
	require.NoError(t, env.Store.SoftDelete(as("alice"), file.ID))

	// A new node took the name in the meantime.
	createFile(t, env.Store, "alice", home, "doc.txt")

	_, err := env.Store.Restore(as("alice"), file.ID, repo.RestoreRequest{})
	AssertKind(t, repo.KindConflict, err)

	restored, err := env.Store.Restore(as("alice"), file.ID, repo.RestoreRequest{AutoRename: true})
	require.NoError(t, err)
	require.Equal(t, "doc-1.txt", restored.Name)
}

func (suite *StoreTestSuite) testPurgeArchived(t *testing.T) {
	env := suite.NewStore()
	file := createFile(t, env.Store, "alice", env.HomeID("alice"), "doc.txt")
	require.NoError(t, env.Store.SoftDelete(as("alice"), file.ID))

	require.NoError(t, env.Store.Purge(as("alice"), file.ID))

	// Purged means gone from the archive too.
	_, err := env.Store.GetArchived(as("alice"), file.ID)
	AssertKind(t, repo.KindNotFound, err)
	err = env.Store.Purge(as("alice"), file.ID)
	AssertKind(t, repo.KindNotFound, err)
}

func (suite *StoreTestSuite) testPurgeActive(t *testing.T) {
	env := suite.NewStore()
	file := createFile(t, env.Store, "alice", env.HomeID("alice"), "doc.txt")

	// Purging an active node bypasses the archive entirely.
	require.NoError(t, env.Store.Purge(as("alice"), file.ID))
	_, err := env.Store.Get(as("alice"), file.ID, repo.GetOptions{})
	AssertKind(t, repo.KindNotFound, err)
	_, err = env.Store.GetArchived(as("alice"), file.ID)
	AssertKind(t, repo.KindNotFound, err)
}

func (suite *StoreTestSuite) testPurgeActiveDenied(t *testing.T) {
	env := suite.NewStore()

	// Setup: a shared folder where bob may delete but does not own.
	shared := createFolder(t, env.Store, "admin", env.RootID, "shared")
	grant(t, env.Store, shared.ID, "bob", "Coordinator")
	file := createFile(t, env.Store, "admin", shared.ID, "doc.txt")

	// bob can soft delete through his grant but cannot purge an active
	// node he does not own.
	err := env.Store.Purge(as("bob"), file.ID)
	AssertKind(t, repo.KindPermissionDenied, err)

	require.NoError(t, env.Store.SoftDelete(as("bob"), file.ID))
}

// RunMoveCopyTests executes relocation and duplication tests.
func (suite *StoreTestSuite) RunMoveCopyTests(t *testing.T) {
	t.Run("MoveKeepsIdentity", suite.testMoveKeepsIdentity)
	t.Run("MoveRenames", suite.testMoveRename)
	t.Run("MoveIntoOwnSubtreeRejected", suite.testMoveCycle)
	t.Run("MoveToNonFolderRejected", suite.testMoveNonFolder)
	t.Run("MoveCollisionConflicts", suite.testMoveCollision)
	t.Run("MoveNeedsBothPermissions", suite.testMovePermissions)
	t.Run("MoveProtectedRejected", suite.testMoveProtected)
	t.Run("MoveLockedSubtreeConflicts", suite.testMoveLocked)
	t.Run("CopyCreatesFreshIdentities", suite.testCopyFreshIdentity)
	t.Run("CopyNeedsOnlyReadOnSource", suite.testCopyReadOnly)
	t.Run("CopyDropsVersionsLocksACL", suite.testCopyDropsState)
	t.Run("CopyIntoOwnSubtree", suite.testCopyIntoOwnSubtree)
	t.Run("CopyStructuralRejected", suite.testCopyStructural)
}

func (suite *StoreTestSuite) testMoveKeepsIdentity(t *testing.T) {
	env := suite.NewStore()
	home := env.HomeID("alice")
	src := createFolder(t, env.Store, "alice", home, "src")
	dst := createFolder(t, env.Store, "alice", home, "dst")
	file := createFile(t, env.Store, "alice", src.ID, "doc.txt")

	moved, err := env.Store.Move(as("alice"), file.ID, dst.ID, "")
	require.NoError(t, err)
	require.Equal(t, file.ID, moved.ID)
	require.Equal(t, dst.ID, moved.ParentID)
	require.Equal(t, "doc.txt", moved.Name)

	// Gone from the source folder.
	page, err := env.Store.ListChildren(as("alice"), src.ID, repo.ListOptions{MaxItems: 10})
	require.NoError(t, err)
	require.Empty(t, page.Entries)
}

func (suite *StoreTestSuite) testMoveRename(t *testing.T) {
	env := suite.NewStore()
	home := env.HomeID("alice")
	dst := createFolder(t, env.Store, "alice", home, "dst")
	file := createFile(t, env.Store, "alice", home, "old.txt")

	moved, err := env.Store.Move(as("alice"), file.ID, dst.ID, "new.txt")
	require.NoError(t, err)
	require.Equal(t, "new.txt", moved.Name)
}

func (suite *StoreTestSuite) testMoveCycle(t *testing.T) {
	env := suite.NewStore()
	home := env.HomeID("alice")
	outer := createFolder(t, env.Store, "alice", home, "outer")
	inner := createFolder(t, env.Store, "alice", outer.ID, "inner")

	_, err := env.Store.Move(as("alice"), outer.ID, inner.ID, "")
	AssertKind(t, repo.KindInvalidArgument, err)

	_, err = env.Store.Move(as("alice"), outer.ID, outer.ID, "")
	AssertKind(t, repo.KindInvalidArgument, err)
}

func (suite *StoreTestSuite) testMoveNonFolder(t *testing.T) {
	env := suite.NewStore()
	home := env.HomeID("alice")
	file := createFile(t, env.Store, "alice", home, "doc.txt")
	target := createFile(t, env.Store, "alice", home, "target.txt")

	_, err := env.Store.Move(as("alice"), file.ID, target.ID, "")
	AssertKind(t, repo.KindInvalidArgument, err)
}

func (suite *StoreTestSuite) testMoveCollision(t *testing.T) {
	env := suite.NewStore()
	home := env.HomeID("alice")
	dst := createFolder(t, env.Store, "alice", home, "dst")
	createFile(t, env.Store, "alice", dst.ID, "doc.txt")
	file := createFile(t, env.Store, "alice", home, "doc.txt")

	_, err := env.Store.Move(as("alice"), file.ID, dst.ID, "")
	AssertKind(t, repo.KindConflict, err)
}

func (suite *StoreTestSuite) testMovePermissions(t *testing.T) {
	env := suite.NewStore()

	// Setup: bob may read and delete in "source" but cannot create in
	// "target".
	source := createFolder(t, env.Store, "admin", env.RootID, "source")
	grant(t, env.Store, source.ID, "bob", "Coordinator")
	target := createFolder(t, env.Store, "admin", env.RootID, "target")
	file := createFile(t, env.Store, "admin", source.ID, "doc.txt")

	_, err := env.Store.Move(as("bob"), file.ID, target.ID, "")
	AssertKind(t, repo.KindPermissionDenied, err)

	// With a create-child grant at the destination the move succeeds.
	grant(t, env.Store, target.ID, "bob", "Contributor")
	_, err = env.Store.Move(as("bob"), file.ID, target.ID, "")
	require.NoError(t, err)
}

func (suite *StoreTestSuite) testMoveProtected(t *testing.T) {
	env := suite.NewStore()
	dst := createFolder(t, env.Store, "admin", env.RootID, "dst")

	// "Sites" and friends refuse relocation exactly like deletion. Locate
	// it through the root listing.
	page, err := env.Store.ListChildren(as("admin"), env.RootID, repo.ListOptions{MaxItems: 50})
	require.NoError(t, err)
	var sitesID repo.NodeID
	for _, entry := range page.Entries {
		if entry.Type == repo.TypeSitesRoot {
			sitesID = entry.ID
		}
	}
	require.NotEmpty(t, sitesID)

	_, err = env.Store.Move(as("admin"), sitesID, dst.ID, "")
	AssertKind(t, repo.KindPermissionDenied, err)
}

func (suite *StoreTestSuite) testMoveLocked(t *testing.T) {
	env := suite.NewStore()
	home := env.HomeID("alice")
	docs := createFolder(t, env.Store, "alice", home, "docs")
	dst := createFolder(t, env.Store, "alice", home, "dst")
	file := createFile(t, env.Store, "alice", docs.ID, "doc.txt")

	_, err := env.Store.Lock(as("alice"), file.ID, repo.LockRequest{})
	require.NoError(t, err)

	_, err = env.Store.Move(as("alice"), docs.ID, dst.ID, "")
	AssertKind(t, repo.KindConflict, err)
}

func (suite *StoreTestSuite) testCopyFreshIdentity(t *testing.T) {
	env := suite.NewStore()
	home := env.HomeID("alice")
	docs := createFolder(t, env.Store, "alice", home, "docs")
	file := createFile(t, env.Store, "alice", docs.ID, "doc.txt")
	dst := createFolder(t, env.Store, "alice", home, "dst")

	copied, err := env.Store.Copy(as("alice"), docs.ID, dst.ID, "")
	require.NoError(t, err)
	require.NotEqual(t, docs.ID, copied.ID)

	// The descendant was copied with a fresh identity too; the original
	// is untouched.
	page, err := env.Store.ListChildren(as("alice"), copied.ID, repo.ListOptions{MaxItems: 10})
	require.NoError(t, err)
	require.Len(t, page.Entries, 1)
	require.NotEqual(t, file.ID, page.Entries[0].ID)

	_, err = env.Store.Get(as("alice"), file.ID, repo.GetOptions{})
	require.NoError(t, err)
}

func (suite *StoreTestSuite) testCopyReadOnly(t *testing.T) {
	env := suite.NewStore()

	// Setup: bob can only read the source file, and owns a destination.
	file := createFile(t, env.Store, "alice", env.HomeID("alice"), "doc.txt")
	grant(t, env.Store, file.ID, "bob", "Consumer")

	copied, err := env.Store.Copy(as("bob"), file.ID, env.HomeID("bob"), "")
	require.NoError(t, err)
	require.Equal(t, "bob", copied.Owner)
}

func (suite *StoreTestSuite) testCopyDropsState(t *testing.T) {
	env := suite.NewStore()
	home := env.HomeID("alice")
	file := createVersionedFile(t, env.Store, "alice", home, "doc.txt")
	setContent(t, env.Store, "alice", file.ID, "ref-a", false) // 1.1
	grant(t, env.Store, file.ID, "bob", "Consumer")
	dst := createFolder(t, env.Store, "alice", home, "dst")

	copied, err := env.Store.Copy(as("alice"), file.ID, dst.ID, "")
	require.NoError(t, err)

	// Content carries over; the ledger restarts at 1.0.
	require.NotNil(t, copied.Content)
	require.Equal(t, "ref-a", copied.Content.ContentRef)
	require.Equal(t, "1.0", copied.VersionLabel)

	// The locally-set ACL did not travel.
	set, err := env.Store.EffectivePermissions(as("alice"), copied.ID)
	require.NoError(t, err)
	require.Empty(t, set.LocallySet)
}

func (suite *StoreTestSuite) testCopyIntoOwnSubtree(t *testing.T) {
	env := suite.NewStore()
	home := env.HomeID("alice")
	docs := createFolder(t, env.Store, "alice", home, "docs")
	createFile(t, env.Store, "alice", docs.ID, "doc.txt")

	// Unlike move, copying into the source's own subtree is legal; the
	// copy must not recurse into itself.
	copied, err := env.Store.Copy(as("alice"), docs.ID, docs.ID, "docs-copy")
	require.NoError(t, err)

	page, err := env.Store.ListChildren(as("alice"), copied.ID, repo.ListOptions{MaxItems: 10})
	require.NoError(t, err)
	require.Len(t, page.Entries, 1)
	require.Equal(t, "doc.txt", page.Entries[0].Name)
}

func (suite *StoreTestSuite) testCopyStructural(t *testing.T) {
	env := suite.NewStore()
	dst := createFolder(t, env.Store, "admin", env.RootID, "dst")

	page, err := env.Store.ListChildren(as("admin"), env.RootID, repo.ListOptions{MaxItems: 50})
	require.NoError(t, err)
	var sitesID repo.NodeID
	for _, entry := range page.Entries {
		if entry.Type == repo.TypeSitesRoot {
			sitesID = entry.ID
		}
	}
	require.NotEmpty(t, sitesID)

	_, err = env.Store.Copy(as("admin"), sitesID, dst.ID, "")
	AssertKind(t, repo.KindUnprocessableEntity, err)
}
