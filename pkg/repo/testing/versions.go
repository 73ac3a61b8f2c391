package testing

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/treelinehq/canopy/pkg/repo"
)

// RunVersionTests executes version ledger tests.
func (suite *StoreTestSuite) RunVersionTests(t *testing.T) {
	t.Run("FirstVersionIsOneZero", suite.testFirstVersion)
	t.Run("MinorAndMajorArithmetic", suite.testVersionArithmetic)
	t.Run("EnablingVersioningLater", suite.testEnableVersioningLater)
	t.Run("RemovingVersionabilityClearsLedger", suite.testRemoveVersionability)
	t.Run("AutoVersionOnPropertyUpdate", suite.testAutoVersionOnProps)
	t.Run("FlagToggleAloneDoesNotVersion", suite.testFlagToggleNoVersion)
	t.Run("DeleteMiddleVersionKeepsLabels", suite.testDeleteMiddleVersion)
	t.Run("DeleteLatestVersionFallsBack", suite.testDeleteLatestVersion)
	t.Run("LastVersionNotDeletable", suite.testDeleteLastVersion)
	t.Run("UnversionedNodeHasEmptyLedger", suite.testUnversionedLedger)
}

func setContent(t *testing.T, store repo.Store, principal string, id repo.NodeID, ref string, major bool) *repo.Node {
	t.Helper()
	node, err := store.SetContent(as(principal), id, repo.ContentUpdate{
		ContentRef: ref,
		Size:       int64(len(ref)),
		MimeType:   "text/plain",
		Major:      major,
	})
	require.NoError(t, err)
	return node
}

func (suite *StoreTestSuite) testFirstVersion(t *testing.T) {
	env := suite.NewStore()
	file := createVersionedFile(t, env.Store, "alice", env.HomeID("alice"), "doc.txt")

	require.Equal(t, "1.0", file.VersionLabel)

	records, err := env.Store.Versions(as("alice"), file.ID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "1.0", records[0].Label)
	// The first record carries the node's creation timestamp.
	require.Equal(t, file.CreatedAt, records[0].CreatedAt)
}

func (suite *StoreTestSuite) testVersionArithmetic(t *testing.T) {
	env := suite.NewStore()
	file := createVersionedFile(t, env.Store, "alice", env.HomeID("alice"), "doc.txt")

	node := setContent(t, env.Store, "alice", file.ID, "ref-a", false)
	require.Equal(t, "1.1", node.VersionLabel)

	node = setContent(t, env.Store, "alice", file.ID, "ref-b", false)
	require.Equal(t, "1.2", node.VersionLabel)

	// A MAJOR bump takes the floor plus one and resets the minor part.
	node = setContent(t, env.Store, "alice", file.ID, "ref-c", true)
	require.Equal(t, "2.0", node.VersionLabel)

	node = setContent(t, env.Store, "alice", file.ID, "ref-d", false)
	require.Equal(t, "2.1", node.VersionLabel)

	records, err := env.Store.Versions(as("alice"), file.ID)
	require.NoError(t, err)
	require.Len(t, records, 5)
	// Newest first.
	require.Equal(t, "2.1", records[0].Label)
	require.Equal(t, "1.0", records[4].Label)
}

func (suite *StoreTestSuite) testEnableVersioningLater(t *testing.T) {
	env := suite.NewStore()
	file := createFile(t, env.Store, "alice", env.HomeID("alice"), "doc.txt")
	require.Empty(t, file.VersionLabel)

	node, err := env.Store.Update(as("alice"), file.ID, repo.UpdateRequest{
		AddAspects: []repo.QName{repo.AspectVersionable},
	})
	require.NoError(t, err)
	require.Equal(t, "1.0", node.VersionLabel)

	records, err := env.Store.Versions(as("alice"), file.ID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, file.CreatedAt, records[0].CreatedAt)
}

func (suite *StoreTestSuite) testRemoveVersionability(t *testing.T) {
	env := suite.NewStore()
	file := createVersionedFile(t, env.Store, "alice", env.HomeID("alice"), "doc.txt")
	setContent(t, env.Store, "alice", file.ID, "ref-a", false)

	node, err := env.Store.Update(as("alice"), file.ID, repo.UpdateRequest{
		RemoveAspects: []repo.QName{repo.AspectVersionable},
	})
	require.NoError(t, err)
	require.Empty(t, node.VersionLabel)

	records, err := env.Store.Versions(as("alice"), file.ID)
	require.NoError(t, err)
	require.Empty(t, records)
}

func (suite *StoreTestSuite) testAutoVersionOnProps(t *testing.T) {
	env := suite.NewStore()
	file, err := env.Store.Create(as("alice"), repo.CreateRequest{
		ParentID: env.HomeID("alice"),
		Name:     "doc.txt",
		Type:     repo.TypeContent,
		Aspects:  []repo.QName{repo.AspectVersionable, repo.AspectTitled},
	})
	require.NoError(t, err)

	// Without the flag a property update does not version.
	node, err := env.Store.Update(as("alice"), file.ID, repo.UpdateRequest{
		Properties: repo.PropertyMap{repo.PropTitle: "First"},
	})
	require.NoError(t, err)
	require.Equal(t, "1.0", node.VersionLabel)

	// Enable the flag; the enabling update itself does not version.
	node, err = env.Store.Update(as("alice"), file.ID, repo.UpdateRequest{
		Properties: repo.PropertyMap{repo.PropAutoVersionProps: true},
	})
	require.NoError(t, err)
	require.Equal(t, "1.0", node.VersionLabel)

	// Now an ordinary property change bumps MINOR.
	node, err = env.Store.Update(as("alice"), file.ID, repo.UpdateRequest{
		Properties: repo.PropertyMap{repo.PropTitle: "Second"},
	})
	require.NoError(t, err)
	require.Equal(t, "1.1", node.VersionLabel)
}

func (suite *StoreTestSuite) testFlagToggleNoVersion(t *testing.T) {
	env := suite.NewStore()
	file := createVersionedFile(t, env.Store, "alice", env.HomeID("alice"), "doc.txt")

	// Toggling the flag on and off again leaves the ledger untouched.
	node, err := env.Store.Update(as("alice"), file.ID, repo.UpdateRequest{
		Properties: repo.PropertyMap{repo.PropAutoVersionProps: true},
	})
	require.NoError(t, err)
	require.Equal(t, "1.0", node.VersionLabel)

	node, err = env.Store.Update(as("alice"), file.ID, repo.UpdateRequest{
		Properties: repo.PropertyMap{repo.PropAutoVersionProps: false},
	})
	require.NoError(t, err)
	require.Equal(t, "1.0", node.VersionLabel)
}

func (suite *StoreTestSuite) testDeleteMiddleVersion(t *testing.T) {
	env := suite.NewStore()
	file := createVersionedFile(t, env.Store, "alice", env.HomeID("alice"), "doc.txt")
	setContent(t, env.Store, "alice", file.ID, "ref-a", false) // 1.1
	setContent(t, env.Store, "alice", file.ID, "ref-b", false) // 1.2

	err := env.Store.DeleteVersion(as("alice"), file.ID, "1.1")
	require.NoError(t, err)

	// Survivors keep their labels; no renumbering.
	records, err := env.Store.Versions(as("alice"), file.ID)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, "1.2", records[0].Label)
	require.Equal(t, "1.0", records[1].Label)

	node, err := env.Store.Get(as("alice"), file.ID, repo.GetOptions{})
	require.NoError(t, err)
	require.Equal(t, "1.2", node.VersionLabel)
}

func (suite *StoreTestSuite) testDeleteLatestVersion(t *testing.T) {
	env := suite.NewStore()
	file := createVersionedFile(t, env.Store, "alice", env.HomeID("alice"), "doc.txt")
	setContent(t, env.Store, "alice", file.ID, "ref-a", false) // 1.1

	err := env.Store.DeleteVersion(as("alice"), file.ID, "1.1")
	require.NoError(t, err)

	// The current label falls back to the newest survivor.
	node, err := env.Store.Get(as("alice"), file.ID, repo.GetOptions{})
	require.NoError(t, err)
	require.Equal(t, "1.0", node.VersionLabel)
}

func (suite *StoreTestSuite) testDeleteLastVersion(t *testing.T) {
	env := suite.NewStore()
	file := createVersionedFile(t, env.Store, "alice", env.HomeID("alice"), "doc.txt")

	err := env.Store.DeleteVersion(as("alice"), file.ID, "1.0")
	AssertKind(t, repo.KindInvalidArgument, err)

	err = env.Store.DeleteVersion(as("alice"), file.ID, "9.9")
	AssertKind(t, repo.KindNotFound, err)
}

func (suite *StoreTestSuite) testUnversionedLedger(t *testing.T) {
	env := suite.NewStore()
	file := createFile(t, env.Store, "alice", env.HomeID("alice"), "doc.txt")
	setContent(t, env.Store, "alice", file.ID, "ref-a", false)

	// Content updates without the versionable aspect never version.
	records, err := env.Store.Versions(as("alice"), file.ID)
	require.NoError(t, err)
	require.Empty(t, records)

	node, err := env.Store.Get(as("alice"), file.ID, repo.GetOptions{})
	require.NoError(t, err)
	require.Empty(t, node.VersionLabel)
	require.Equal(t, "ref-a", node.Content.ContentRef)
}
