package testing

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/treelinehq/canopy/pkg/repo"
)

// RunCreateTests executes all node creation tests.
func (suite *StoreTestSuite) RunCreateTests(t *testing.T) {
	t.Run("FileInHomeFolder", suite.testCreateFileInHomeFolder)
	t.Run("RelativePathCreatesFolders", suite.testCreateRelativePath)
	t.Run("RelativePathThroughExistingFolder", suite.testCreateRelativePathExistingFolder)
	t.Run("RelativePathThroughFileConflicts", suite.testCreateRelativePathThroughFile)
	t.Run("RejectedCreateBuildsNoFolders", suite.testCreateRejectedBuildsNoFolders)
	t.Run("NameCollisionConflicts", suite.testCreateNameCollision)
	t.Run("AutoRenameAppendsSuffix", suite.testCreateAutoRename)
	t.Run("ReservedCharactersRejected", suite.testCreateReservedCharacters)
	t.Run("AbstractTypeRejected", suite.testCreateAbstractType)
	t.Run("ProtectedTypeRejected", suite.testCreateProtectedType)
	t.Run("SystemPropertyRejected", suite.testCreateSystemProperty)
	t.Run("UndeclaredPropertyRejected", suite.testCreateUndeclaredProperty)
	t.Run("UnknownParentNotFound", suite.testCreateUnknownParent)
	t.Run("NoCreateChildPermission", suite.testCreateNoPermission)
}

func (suite *StoreTestSuite) testCreateFileInHomeFolder(t *testing.T) {
	env := suite.NewStore()

	// Action: alice creates a file in her own home folder.
	node, err := env.Store.Create(as("alice"), repo.CreateRequest{
		ParentID: env.HomeID("alice"),
		Name:     "notes.txt",
		Type:     repo.TypeContent,
	})
	require.NoError(t, err)

	// Assert: identity, audit fields and derived booleans.
	require.NotEmpty(t, node.ID)
	require.Equal(t, "notes.txt", node.Name)
	require.Equal(t, "alice", node.Owner)
	require.Equal(t, "alice", node.CreatedBy)
	require.True(t, node.IsFile)
	require.False(t, node.IsFolder)
}

func (suite *StoreTestSuite) testCreateRelativePath(t *testing.T) {
	env := suite.NewStore()
	home := env.HomeID("alice")

	// Action: a multi-segment name creates the intermediate folders.
	node, err := env.Store.Create(as("alice"), repo.CreateRequest{
		ParentID: home,
		Name:     "docs/2026/report.txt",
		Type:     repo.TypeContent,
	})
	require.NoError(t, err)
	require.Equal(t, "report.txt", node.Name)

	// Assert: the folder chain exists and leads to the file.
	page, err := env.Store.ListChildren(as("alice"), home, repo.ListOptions{MaxItems: 10})
	require.NoError(t, err)
	require.Len(t, page.Entries, 1)
	require.Equal(t, "docs", page.Entries[0].Name)
	require.True(t, page.Entries[0].IsFolder)

	page, err = env.Store.ListChildren(as("alice"), page.Entries[0].ID, repo.ListOptions{MaxItems: 10})
	require.NoError(t, err)
	require.Len(t, page.Entries, 1)
	require.Equal(t, "2026", page.Entries[0].Name)
}

func (suite *StoreTestSuite) testCreateRelativePathExistingFolder(t *testing.T) {
	env := suite.NewStore()
	home := env.HomeID("alice")
	docs := createFolder(t, env.Store, "alice", home, "docs")

	// Action: the existing "docs" folder on the path is not an error.
	node, err := env.Store.Create(as("alice"), repo.CreateRequest{
		ParentID: home,
		Name:     "docs/report.txt",
		Type:     repo.TypeContent,
	})
	require.NoError(t, err)
	require.Equal(t, docs.ID, node.ParentID)
}

func (suite *StoreTestSuite) testCreateRelativePathThroughFile(t *testing.T) {
	env := suite.NewStore()
	home := env.HomeID("alice")
	createFile(t, env.Store, "alice", home, "docs")

	// Action: a non-folder node on the path is a conflict.
	_, err := env.Store.Create(as("alice"), repo.CreateRequest{
		ParentID: home,
		Name:     "docs/report.txt",
		Type:     repo.TypeContent,
	})
	AssertKind(t, repo.KindConflict, err)
}

func (suite *StoreTestSuite) testCreateRejectedBuildsNoFolders(t *testing.T) {
	env := suite.NewStore()
	home := env.HomeID("alice")

	// Action: the final node carries an owner that does not exist, so the
	// whole request is rejected.
	_, err := env.Store.Create(as("alice"), repo.CreateRequest{
		ParentID:   home,
		Name:       "a/b/doc.txt",
		Type:       repo.TypeContent,
		Properties: repo.PropertyMap{repo.PropOwner: "ghost-user"},
	})
	AssertKind(t, repo.KindUnprocessableEntity, err)

	// Assert: none of the intermediate folders were created.
	page, err := env.Store.ListChildren(as("alice"), home, repo.ListOptions{MaxItems: 10})
	require.NoError(t, err)
	require.Empty(t, page.Entries)
}

func (suite *StoreTestSuite) testCreateNameCollision(t *testing.T) {
	env := suite.NewStore()
	home := env.HomeID("alice")
	createFile(t, env.Store, "alice", home, "report.txt")

	_, err := env.Store.Create(as("alice"), repo.CreateRequest{
		ParentID: home,
		Name:     "report.txt",
		Type:     repo.TypeContent,
	})
	AssertKind(t, repo.KindConflict, err)
}

func (suite *StoreTestSuite) testCreateAutoRename(t *testing.T) {
	env := suite.NewStore()
	home := env.HomeID("alice")
	createFile(t, env.Store, "alice", home, "report.txt")

	// Action: auto-rename resolves the collision with a numeric suffix
	// placed before the extension.
	first, err := env.Store.Create(as("alice"), repo.CreateRequest{
		ParentID:   home,
		Name:       "report.txt",
		Type:       repo.TypeContent,
		AutoRename: true,
	})
	require.NoError(t, err)
	require.Equal(t, "report-1.txt", first.Name)

	second, err := env.Store.Create(as("alice"), repo.CreateRequest{
		ParentID:   home,
		Name:       "report.txt",
		Type:       repo.TypeContent,
		AutoRename: true,
	})
	require.NoError(t, err)
	require.Equal(t, "report-2.txt", second.Name)
}

func (suite *StoreTestSuite) testCreateReservedCharacters(t *testing.T) {
	env := suite.NewStore()

	for _, name := range []string{`bad|name`, `bad*name`, `bad"name`, `bad?name`, "..."} {
		_, err := env.Store.Create(as("alice"), repo.CreateRequest{
			ParentID: env.HomeID("alice"),
			Name:     name,
			Type:     repo.TypeContent,
		})
		AssertKind(t, repo.KindInvalidArgument, err)
	}
}

func (suite *StoreTestSuite) testCreateAbstractType(t *testing.T) {
	env := suite.NewStore()

	_, err := env.Store.Create(as("alice"), repo.CreateRequest{
		ParentID: env.HomeID("alice"),
		Name:     "thing",
		Type:     repo.TypeObject,
	})
	AssertKind(t, repo.KindInvalidArgument, err)
}

func (suite *StoreTestSuite) testCreateProtectedType(t *testing.T) {
	env := suite.NewStore()

	_, err := env.Store.Create(as("alice"), repo.CreateRequest{
		ParentID: env.HomeID("alice"),
		Name:     "system",
		Type:     repo.TypeSystemFolder,
	})
	AssertKind(t, repo.KindInvalidArgument, err)
}

func (suite *StoreTestSuite) testCreateSystemProperty(t *testing.T) {
	env := suite.NewStore()

	// Audit properties are system-maintained; a client write rejects the
	// whole request.
	_, err := env.Store.Create(as("alice"), repo.CreateRequest{
		ParentID:   env.HomeID("alice"),
		Name:       "notes.txt",
		Type:       repo.TypeContent,
		Properties: repo.PropertyMap{repo.PropCreator: "mallory"},
	})
	AssertKind(t, repo.KindInvalidArgument, err)
}

func (suite *StoreTestSuite) testCreateUndeclaredProperty(t *testing.T) {
	env := suite.NewStore()

	// cm:title belongs to the cm:titled aspect; without the aspect the
	// property is not legal on a plain content node.
	_, err := env.Store.Create(as("alice"), repo.CreateRequest{
		ParentID:   env.HomeID("alice"),
		Name:       "notes.txt",
		Type:       repo.TypeContent,
		Properties: repo.PropertyMap{repo.PropTitle: "Notes"},
	})
	AssertKind(t, repo.KindInvalidArgument, err)

	// With the aspect applied the same request succeeds.
	node, err := env.Store.Create(as("alice"), repo.CreateRequest{
		ParentID:   env.HomeID("alice"),
		Name:       "notes.txt",
		Type:       repo.TypeContent,
		Aspects:    []repo.QName{repo.AspectTitled},
		Properties: repo.PropertyMap{repo.PropTitle: "Notes"},
	})
	require.NoError(t, err)
	require.Equal(t, "Notes", node.Properties[repo.PropTitle])
}

func (suite *StoreTestSuite) testCreateUnknownParent(t *testing.T) {
	env := suite.NewStore()

	_, err := env.Store.Create(as("alice"), repo.CreateRequest{
		ParentID: "no-such-node",
		Name:     "notes.txt",
		Type:     repo.TypeContent,
	})
	AssertKind(t, repo.KindNotFound, err)
}

func (suite *StoreTestSuite) testCreateNoPermission(t *testing.T) {
	env := suite.NewStore()

	// bob holds no create-child grant in alice's home folder.
	_, err := env.Store.Create(as("bob"), repo.CreateRequest{
		ParentID: env.HomeID("alice"),
		Name:     "intrusion.txt",
		Type:     repo.TypeContent,
	})
	AssertKind(t, repo.KindPermissionDenied, err)
}

// RunReadTests executes Get and path projection tests.
func (suite *StoreTestSuite) RunReadTests(t *testing.T) {
	t.Run("GetByID", suite.testGetByID)
	t.Run("GetUnknownNotFound", suite.testGetUnknown)
	t.Run("GetWithoutReadPermission", suite.testGetNoPermission)
	t.Run("PathComplete", suite.testGetPathComplete)
	t.Run("PathTruncatedAtUnreadableAncestor", suite.testGetPathTruncated)
}

func (suite *StoreTestSuite) testGetByID(t *testing.T) {
	env := suite.NewStore()
	created := createFile(t, env.Store, "alice", env.HomeID("alice"), "notes.txt")

	node, err := env.Store.Get(as("alice"), created.ID, repo.GetOptions{})
	require.NoError(t, err)
	require.Equal(t, created.ID, node.ID)
	require.Equal(t, "notes.txt", node.Name)
}

func (suite *StoreTestSuite) testGetUnknown(t *testing.T) {
	env := suite.NewStore()

	_, err := env.Store.Get(as("alice"), "no-such-node", repo.GetOptions{})
	AssertKind(t, repo.KindNotFound, err)
}

func (suite *StoreTestSuite) testGetNoPermission(t *testing.T) {
	env := suite.NewStore()
	created := createFile(t, env.Store, "alice", env.HomeID("alice"), "secret.txt")

	// Home folders cut inheritance, so bob cannot read inside.
	_, err := env.Store.Get(as("bob"), created.ID, repo.GetOptions{})
	AssertKind(t, repo.KindPermissionDenied, err)
}

func (suite *StoreTestSuite) testGetPathComplete(t *testing.T) {
	env := suite.NewStore()
	home := env.HomeID("alice")
	docs := createFolder(t, env.Store, "alice", home, "docs")
	file := createFile(t, env.Store, "alice", docs.ID, "report.txt")

	node, err := env.Store.Get(as("alice"), file.ID, repo.GetOptions{IncludePath: true})
	require.NoError(t, err)
	require.NotNil(t, node.Path)
	require.True(t, node.Path.IsComplete)
	require.Contains(t, node.Path.Name, "docs")
}

func (suite *StoreTestSuite) testGetPathTruncated(t *testing.T) {
	env := suite.NewStore()

	// Setup: a file inside alice's home, readable by bob through an
	// explicit grant. The home folder itself stays unreadable to bob.
	file := createFile(t, env.Store, "alice", env.HomeID("alice"), "shared.txt")
	grant(t, env.Store, file.ID, "bob", "Consumer")

	// Action: bob reads the node with its path.
	node, err := env.Store.Get(as("bob"), file.ID, repo.GetOptions{IncludePath: true})
	require.NoError(t, err)

	// Assert: the path truncates at the unreadable home folder instead of
	// erroring.
	require.NotNil(t, node.Path)
	require.False(t, node.Path.IsComplete)
}

// RunUpdateTests executes metadata update tests.
func (suite *StoreTestSuite) RunUpdateTests(t *testing.T) {
	t.Run("Rename", suite.testUpdateRename)
	t.Run("RenameCollisionConflicts", suite.testUpdateRenameCollision)
	t.Run("SetAndRemoveProperties", suite.testUpdateProperties)
	t.Run("RemoveAspectRemovesProperties", suite.testUpdateRemoveAspect)
	t.Run("RemoveAndReAddAspectStaysRemoved", suite.testUpdateRemoveAndReAddAspect)
	t.Run("TypeNarrowing", suite.testUpdateTypeNarrowing)
	t.Run("TypeBroadeningRejected", suite.testUpdateTypeBroadening)
	t.Run("SystemPropertyRejectsWholeUpdate", suite.testUpdateAtomicRejection)
	t.Run("OwnerReassignment", suite.testUpdateOwner)
	t.Run("OwnerReassignmentByNonOwner", suite.testUpdateOwnerDenied)
	t.Run("UnknownOwnerUnprocessable", suite.testUpdateUnknownOwner)
}

func (suite *StoreTestSuite) testUpdateRename(t *testing.T) {
	env := suite.NewStore()
	file := createFile(t, env.Store, "alice", env.HomeID("alice"), "old.txt")

	node, err := env.Store.Update(as("alice"), file.ID, repo.UpdateRequest{Name: strPtr("new.txt")})
	require.NoError(t, err)
	require.Equal(t, "new.txt", node.Name)
	require.Equal(t, file.ID, node.ID)
}

func (suite *StoreTestSuite) testUpdateRenameCollision(t *testing.T) {
	env := suite.NewStore()
	home := env.HomeID("alice")
	createFile(t, env.Store, "alice", home, "taken.txt")
	file := createFile(t, env.Store, "alice", home, "old.txt")

	_, err := env.Store.Update(as("alice"), file.ID, repo.UpdateRequest{Name: strPtr("taken.txt")})
	AssertKind(t, repo.KindConflict, err)
}

func (suite *StoreTestSuite) testUpdateProperties(t *testing.T) {
	env := suite.NewStore()
	file, err := env.Store.Create(as("alice"), repo.CreateRequest{
		ParentID:   env.HomeID("alice"),
		Name:       "notes.txt",
		Type:       repo.TypeContent,
		Aspects:    []repo.QName{repo.AspectTitled},
		Properties: repo.PropertyMap{repo.PropTitle: "Draft"},
	})
	require.NoError(t, err)

	// Action: set the description, clear the title with a blank value.
	node, err := env.Store.Update(as("alice"), file.ID, repo.UpdateRequest{
		Properties: repo.PropertyMap{
			repo.PropDescription: "Meeting notes",
			repo.PropTitle:       "",
		},
	})
	require.NoError(t, err)

	require.Equal(t, "Meeting notes", node.Properties[repo.PropDescription])
	_, present := node.Properties[repo.PropTitle]
	require.False(t, present, "blank value should remove the property")
}

func (suite *StoreTestSuite) testUpdateRemoveAspect(t *testing.T) {
	env := suite.NewStore()
	file, err := env.Store.Create(as("alice"), repo.CreateRequest{
		ParentID:   env.HomeID("alice"),
		Name:       "notes.txt",
		Type:       repo.TypeContent,
		Aspects:    []repo.QName{repo.AspectTitled},
		Properties: repo.PropertyMap{repo.PropTitle: "Draft"},
	})
	require.NoError(t, err)

	node, err := env.Store.Update(as("alice"), file.ID, repo.UpdateRequest{
		RemoveAspects: []repo.QName{repo.AspectTitled},
	})
	require.NoError(t, err)

	require.False(t, node.HasAspect(repo.AspectTitled))
	_, present := node.Properties[repo.PropTitle]
	require.False(t, present, "aspect removal should remove its properties")
}

func (suite *StoreTestSuite) testUpdateRemoveAndReAddAspect(t *testing.T) {
	env := suite.NewStore()
	file, err := env.Store.Create(as("alice"), repo.CreateRequest{
		ParentID: env.HomeID("alice"),
		Name:     "notes.txt",
		Type:     repo.TypeContent,
		Aspects:  []repo.QName{repo.AspectVersionable},
	})
	require.NoError(t, err)
	require.Equal(t, repo.FirstVersionLabel, file.VersionLabel)

	// Action: the same aspect appears in both lists; the removal wins.
	node, err := env.Store.Update(as("alice"), file.ID, repo.UpdateRequest{
		AddAspects:    []repo.QName{repo.AspectVersionable},
		RemoveAspects: []repo.QName{repo.AspectVersionable},
	})
	require.NoError(t, err)

	// Assert: the node is unversioned, not versionable with a cleared
	// ledger.
	require.False(t, node.HasAspect(repo.AspectVersionable))
	require.Empty(t, node.VersionLabel)
}

func (suite *StoreTestSuite) testUpdateTypeNarrowing(t *testing.T) {
	env := suite.NewStore()
	file := createFile(t, env.Store, "alice", env.HomeID("alice"), "model.xml")

	// cm:dictionaryModel is a concrete subtype of cm:content.
	node, err := env.Store.Update(as("alice"), file.ID, repo.UpdateRequest{
		Type: qnamePtr(repo.QName("cm:dictionaryModel")),
	})
	require.NoError(t, err)
	require.Equal(t, repo.QName("cm:dictionaryModel"), node.Type)
	require.True(t, node.IsFile)
}

func (suite *StoreTestSuite) testUpdateTypeBroadening(t *testing.T) {
	env := suite.NewStore()
	file := createFile(t, env.Store, "alice", env.HomeID("alice"), "notes.txt")

	// Broadening back to the parent type is rejected, as is jumping to an
	// unrelated branch.
	_, err := env.Store.Update(as("alice"), file.ID, repo.UpdateRequest{
		Type: qnamePtr(repo.TypeObject),
	})
	AssertKind(t, repo.KindInvalidArgument, err)

	_, err = env.Store.Update(as("alice"), file.ID, repo.UpdateRequest{
		Type: qnamePtr(repo.TypeFolder),
	})
	AssertKind(t, repo.KindInvalidArgument, err)
}

func (suite *StoreTestSuite) testUpdateAtomicRejection(t *testing.T) {
	env := suite.NewStore()
	file, err := env.Store.Create(as("alice"), repo.CreateRequest{
		ParentID: env.HomeID("alice"),
		Name:     "notes.txt",
		Type:     repo.TypeContent,
		Aspects:  []repo.QName{repo.AspectTitled},
	})
	require.NoError(t, err)

	// Action: a mixed update where one property is system-maintained.
	_, err = env.Store.Update(as("alice"), file.ID, repo.UpdateRequest{
		Properties: repo.PropertyMap{
			repo.PropTitle:   "New title",
			repo.PropCreator: "mallory",
		},
	})
	AssertKind(t, repo.KindInvalidArgument, err)

	// Assert: the legal half of the update was not applied either.
	node, err := env.Store.Get(as("alice"), file.ID, repo.GetOptions{})
	require.NoError(t, err)
	_, present := node.Properties[repo.PropTitle]
	require.False(t, present, "rejected update must not apply partially")
}

func (suite *StoreTestSuite) testUpdateOwner(t *testing.T) {
	env := suite.NewStore()
	file := createFile(t, env.Store, "alice", env.HomeID("alice"), "notes.txt")

	node, err := env.Store.Update(as("alice"), file.ID, repo.UpdateRequest{Owner: strPtr("bob")})
	require.NoError(t, err)
	require.Equal(t, "bob", node.Owner)
}

func (suite *StoreTestSuite) testUpdateOwnerDenied(t *testing.T) {
	env := suite.NewStore()
	file := createFile(t, env.Store, "alice", env.HomeID("alice"), "notes.txt")
	grant(t, env.Store, file.ID, "bob", "Editor")

	// bob can update the node but is neither owner nor admin, so the
	// ownership reassignment is denied.
	_, err := env.Store.Update(as("bob"), file.ID, repo.UpdateRequest{Owner: strPtr("bob")})
	AssertKind(t, repo.KindPermissionDenied, err)
}

func (suite *StoreTestSuite) testUpdateUnknownOwner(t *testing.T) {
	env := suite.NewStore()
	file := createFile(t, env.Store, "alice", env.HomeID("alice"), "notes.txt")

	_, err := env.Store.Update(as("alice"), file.ID, repo.UpdateRequest{Owner: strPtr("nobody")})
	AssertKind(t, repo.KindUnprocessableEntity, err)
}
