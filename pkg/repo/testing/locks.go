package testing

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/treelinehq/canopy/pkg/repo"
)

// RunLockTests executes pessimistic locking tests.
func (suite *StoreTestSuite) RunLockTests(t *testing.T) {
	t.Run("AcquireAndInspect", suite.testLockAcquire)
	t.Run("FolderNotLockable", suite.testLockFolder)
	t.Run("BadKindRejected", suite.testLockBadKind)
	t.Run("BadLifetimeRejected", suite.testLockBadLifetime)
	t.Run("HeldByAnotherConflicts", suite.testLockConflict)
	t.Run("RefreshOwnLock", suite.testLockRefresh)
	t.Run("OtherPrincipalsFencedOut", suite.testLockFencesOthers)
	t.Run("LockOwnerKeepsWriting", suite.testLockOwnerWrites)
	t.Run("DeleteWhileLockedConflicts", suite.testLockBlocksDelete)
	t.Run("LockedDescendantBlocksSubtreeDelete", suite.testLockBlocksSubtreeDelete)
	t.Run("UnlockByOwner", suite.testUnlockOwner)
	t.Run("UnlockByAdmin", suite.testUnlockAdmin)
	t.Run("UnlockByStrangerDenied", suite.testUnlockStranger)
	t.Run("UnlockUnlockedUnprocessable", suite.testUnlockUnlocked)
}

func (suite *StoreTestSuite) testLockAcquire(t *testing.T) {
	env := suite.NewStore()
	file := createFile(t, env.Store, "alice", env.HomeID("alice"), "doc.txt")

	info, err := env.Store.Lock(as("alice"), file.ID, repo.LockRequest{
		Kind:     repo.LockFull,
		Lifetime: repo.LockPersistent,
	})
	require.NoError(t, err)
	require.Equal(t, "alice", info.Owner)
	require.Equal(t, repo.LockFull, info.Kind)
	require.True(t, info.ExpiresAt.IsZero(), "no TTL means no expiry")

	// The lock shows on the node, along with the lockable aspect.
	node, err := env.Store.Get(as("alice"), file.ID, repo.GetOptions{})
	require.NoError(t, err)
	require.NotNil(t, node.Lock)
	require.True(t, node.HasAspect(repo.AspectLockable))
}

func (suite *StoreTestSuite) testLockFolder(t *testing.T) {
	env := suite.NewStore()
	folder := createFolder(t, env.Store, "alice", env.HomeID("alice"), "docs")

	_, err := env.Store.Lock(as("alice"), folder.ID, repo.LockRequest{})
	AssertKind(t, repo.KindInvalidArgument, err)
}

func (suite *StoreTestSuite) testLockBadKind(t *testing.T) {
	env := suite.NewStore()
	file := createFile(t, env.Store, "alice", env.HomeID("alice"), "doc.txt")

	_, err := env.Store.Lock(as("alice"), file.ID, repo.LockRequest{Kind: "EXCLUSIVE"})
	AssertKind(t, repo.KindInvalidArgument, err)
}

func (suite *StoreTestSuite) testLockBadLifetime(t *testing.T) {
	env := suite.NewStore()
	file := createFile(t, env.Store, "alice", env.HomeID("alice"), "doc.txt")

	_, err := env.Store.Lock(as("alice"), file.ID, repo.LockRequest{Lifetime: "FOREVER"})
	AssertKind(t, repo.KindInvalidArgument, err)
}

func (suite *StoreTestSuite) testLockConflict(t *testing.T) {
	env := suite.NewStore()
	file := createFile(t, env.Store, "alice", env.HomeID("alice"), "doc.txt")
	grant(t, env.Store, file.ID, "bob", "Editor")

	_, err := env.Store.Lock(as("alice"), file.ID, repo.LockRequest{})
	require.NoError(t, err)

	// Acquisition never blocks; it fails immediately.
	_, err = env.Store.Lock(as("bob"), file.ID, repo.LockRequest{})
	AssertKind(t, repo.KindConflict, err)
}

func (suite *StoreTestSuite) testLockRefresh(t *testing.T) {
	env := suite.NewStore()
	file := createFile(t, env.Store, "alice", env.HomeID("alice"), "doc.txt")

	_, err := env.Store.Lock(as("alice"), file.ID, repo.LockRequest{TimeToExpireSeconds: 60})
	require.NoError(t, err)

	// Re-locking your own node succeeds and may change the parameters.
	info, err := env.Store.Lock(as("alice"), file.ID, repo.LockRequest{
		Kind: repo.LockAllowOwnerChanges,
	})
	require.NoError(t, err)
	require.Equal(t, repo.LockAllowOwnerChanges, info.Kind)
	require.True(t, info.ExpiresAt.IsZero())
}

func (suite *StoreTestSuite) testLockFencesOthers(t *testing.T) {
	env := suite.NewStore()
	file := createFile(t, env.Store, "alice", env.HomeID("alice"), "doc.txt")
	grant(t, env.Store, file.ID, "bob", "Editor")

	_, err := env.Store.Lock(as("alice"), file.ID, repo.LockRequest{})
	require.NoError(t, err)

	// bob holds write rights but the lock fences him out of both
	// metadata and content.
	_, err = env.Store.Update(as("bob"), file.ID, repo.UpdateRequest{Name: strPtr("renamed.txt")})
	AssertKind(t, repo.KindConflict, err)

	_, err = env.Store.SetContent(as("bob"), file.ID, repo.ContentUpdate{ContentRef: "ref-x", Size: 1})
	AssertKind(t, repo.KindConflict, err)
}

func (suite *StoreTestSuite) testLockOwnerWrites(t *testing.T) {
	env := suite.NewStore()
	file := createFile(t, env.Store, "alice", env.HomeID("alice"), "doc.txt")

	for _, kind := range []repo.LockKind{repo.LockFull, repo.LockAllowOwnerChanges} {
		_, err := env.Store.Lock(as("alice"), file.ID, repo.LockRequest{Kind: kind})
		require.NoError(t, err)

		_, err = env.Store.SetContent(as("alice"), file.ID, repo.ContentUpdate{
			ContentRef: "ref-" + string(kind), Size: 1, MimeType: "text/plain",
		})
		require.NoError(t, err)
	}
}

func (suite *StoreTestSuite) testLockBlocksDelete(t *testing.T) {
	env := suite.NewStore()
	file := createFile(t, env.Store, "alice", env.HomeID("alice"), "doc.txt")

	_, err := env.Store.Lock(as("alice"), file.ID, repo.LockRequest{})
	require.NoError(t, err)

	// Deletion is blocked for everyone while a lock is live, the lock
	// owner included.
	err = env.Store.SoftDelete(as("alice"), file.ID)
	AssertKind(t, repo.KindConflict, err)
}

func (suite *StoreTestSuite) testLockBlocksSubtreeDelete(t *testing.T) {
	env := suite.NewStore()
	home := env.HomeID("alice")
	docs := createFolder(t, env.Store, "alice", home, "docs")
	nested := createFolder(t, env.Store, "alice", docs.ID, "nested")
	file := createFile(t, env.Store, "alice", nested.ID, "doc.txt")

	_, err := env.Store.Lock(as("alice"), file.ID, repo.LockRequest{})
	require.NoError(t, err)

	// The lock cascades for delete purposes: archiving any ancestor
	// fails while a descendant is locked.
	err = env.Store.SoftDelete(as("alice"), docs.ID)
	AssertKind(t, repo.KindConflict, err)

	// After unlock the same delete goes through.
	require.NoError(t, env.Store.Unlock(as("alice"), file.ID))
	require.NoError(t, env.Store.SoftDelete(as("alice"), docs.ID))
}

func (suite *StoreTestSuite) testUnlockOwner(t *testing.T) {
	env := suite.NewStore()
	file := createFile(t, env.Store, "alice", env.HomeID("alice"), "doc.txt")

	_, err := env.Store.Lock(as("alice"), file.ID, repo.LockRequest{})
	require.NoError(t, err)
	require.NoError(t, env.Store.Unlock(as("alice"), file.ID))

	node, err := env.Store.Get(as("alice"), file.ID, repo.GetOptions{})
	require.NoError(t, err)
	require.Nil(t, node.Lock)
}

func (suite *StoreTestSuite) testUnlockAdmin(t *testing.T) {
	env := suite.NewStore()
	file := createFile(t, env.Store, "alice", env.HomeID("alice"), "doc.txt")

	_, err := env.Store.Lock(as("alice"), file.ID, repo.LockRequest{})
	require.NoError(t, err)
	require.NoError(t, env.Store.Unlock(as("admin"), file.ID))
}

func (suite *StoreTestSuite) testUnlockStranger(t *testing.T) {
	env := suite.NewStore()
	file := createFile(t, env.Store, "alice", env.HomeID("alice"), "doc.txt")
	grant(t, env.Store, file.ID, "bob", "Editor")

	_, err := env.Store.Lock(as("alice"), file.ID, repo.LockRequest{})
	require.NoError(t, err)

	err = env.Store.Unlock(as("bob"), file.ID)
	AssertKind(t, repo.KindPermissionDenied, err)
}

func (suite *StoreTestSuite) testUnlockUnlocked(t *testing.T) {
	env := suite.NewStore()
	file := createFile(t, env.Store, "alice", env.HomeID("alice"), "doc.txt")

	err := env.Store.Unlock(as("alice"), file.ID)
	AssertKind(t, repo.KindUnprocessableEntity, err)
}
