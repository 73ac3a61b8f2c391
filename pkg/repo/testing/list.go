package testing

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/treelinehq/canopy/pkg/repo"
)

// RunListTests executes child listing tests.
func (suite *StoreTestSuite) RunListTests(t *testing.T) {
	t.Run("Pagination", suite.testListPagination)
	t.Run("SortByNameDescending", suite.testListSort)
	t.Run("FoldersFirstThenName", suite.testListMultiKeySort)
	t.Run("FilterFoldersOnly", suite.testListFilterFolders)
	t.Run("FilterByTypeIncludingSubtypes", suite.testListFilterType)
	t.Run("UnreadableChildrenOmitted", suite.testListUnreadableOmitted)
	t.Run("BadPaginationRejected", suite.testListBadPagination)
	t.Run("ContradictoryFilterRejected", suite.testListContradictoryFilter)
	t.Run("TypeWithKindFilterRejected", suite.testListTypeWithKindFilter)
}

func (suite *StoreTestSuite) testListPagination(t *testing.T) {
	env := suite.NewStore()
	home := env.HomeID("alice")
	for _, name := range []string{"a.txt", "b.txt", "c.txt", "d.txt", "e.txt"} {
		createFile(t, env.Store, "alice", home, name)
	}

	page, err := env.Store.ListChildren(as("alice"), home, repo.ListOptions{
		OrderBy:   []repo.SortKey{{Field: repo.SortByName, Ascending: true}},
		SkipCount: 1,
		MaxItems:  2,
	})
	require.NoError(t, err)

	require.Equal(t, 5, page.TotalItems)
	require.True(t, page.HasMoreItems)
	require.Len(t, page.Entries, 2)
	require.Equal(t, "b.txt", page.Entries[0].Name)
	require.Equal(t, "c.txt", page.Entries[1].Name)
}

func (suite *StoreTestSuite) testListSort(t *testing.T) {
	env := suite.NewStore()
	home := env.HomeID("alice")
	for _, name := range []string{"banana", "apple", "cherry"} {
		createFile(t, env.Store, "alice", home, name)
	}

	page, err := env.Store.ListChildren(as("alice"), home, repo.ListOptions{
		OrderBy:  []repo.SortKey{{Field: repo.SortByName, Ascending: false}},
		MaxItems: 10,
	})
	require.NoError(t, err)

	names := make([]string, 0, len(page.Entries))
	for _, entry := range page.Entries {
		names = append(names, entry.Name)
	}
	require.Equal(t, []string{"cherry", "banana", "apple"}, names)
}

func (suite *StoreTestSuite) testListMultiKeySort(t *testing.T) {
	env := suite.NewStore()
	home := env.HomeID("alice")
	createFile(t, env.Store, "alice", home, "zeta.txt")
	createFolder(t, env.Store, "alice", home, "beta")
	createFile(t, env.Store, "alice", home, "alpha.txt")
	createFolder(t, env.Store, "alice", home, "delta")

	// Folders first (isFolder descending), then name ascending.
	page, err := env.Store.ListChildren(as("alice"), home, repo.ListOptions{
		OrderBy: []repo.SortKey{
			{Field: repo.SortByIsFolder, Ascending: false},
			{Field: repo.SortByName, Ascending: true},
		},
		MaxItems: 10,
	})
	require.NoError(t, err)

	names := make([]string, 0, len(page.Entries))
	for _, entry := range page.Entries {
		names = append(names, entry.Name)
	}
	require.Equal(t, []string{"beta", "delta", "alpha.txt", "zeta.txt"}, names)
}

func (suite *StoreTestSuite) testListFilterFolders(t *testing.T) {
	env := suite.NewStore()
	home := env.HomeID("alice")
	createFile(t, env.Store, "alice", home, "file.txt")
	createFolder(t, env.Store, "alice", home, "folder")

	page, err := env.Store.ListChildren(as("alice"), home, repo.ListOptions{
		Filter:   repo.ChildFilter{IsFolder: boolPtr(true)},
		MaxItems: 10,
	})
	require.NoError(t, err)
	require.Len(t, page.Entries, 1)
	require.Equal(t, "folder", page.Entries[0].Name)
}

func (suite *StoreTestSuite) testListFilterType(t *testing.T) {
	env := suite.NewStore()
	home := env.HomeID("alice")
	createFile(t, env.Store, "alice", home, "plain.txt")
	model, err := env.Store.Create(as("alice"), repo.CreateRequest{
		ParentID: home,
		Name:     "custom.xml",
		Type:     "cm:dictionaryModel",
	})
	require.NoError(t, err)
	createFolder(t, env.Store, "alice", home, "folder")

	// Exact type match excludes the subtype.
	page, err := env.Store.ListChildren(as("alice"), home, repo.ListOptions{
		Filter:   repo.ChildFilter{Type: repo.TypeContent},
		MaxItems: 10,
	})
	require.NoError(t, err)
	require.Len(t, page.Entries, 1)
	require.Equal(t, "plain.txt", page.Entries[0].Name)

	// Subtype-inclusive match brings it back.
	page, err = env.Store.ListChildren(as("alice"), home, repo.ListOptions{
		Filter:   repo.ChildFilter{Type: repo.TypeContent, IncludeSubtypes: true},
		MaxItems: 10,
	})
	require.NoError(t, err)
	require.Len(t, page.Entries, 2)
	_ = model
}

func (suite *StoreTestSuite) testListUnreadableOmitted(t *testing.T) {
	env := suite.NewStore()

	// Setup: a shared folder with one readable and one fenced-off child.
	shared := createFolder(t, env.Store, "admin", env.RootID, "shared")
	grant(t, env.Store, shared.ID, "bob", "Contributor")
	open := createFile(t, env.Store, "admin", shared.ID, "open.txt")
	secret := createFile(t, env.Store, "admin", shared.ID, "secret.txt")
	_, err := env.Store.SetPermissions(as("admin"), secret.ID, repo.PermissionRequest{
		Entries: []repo.PermissionEntry{
			{Authority: "bob", Name: "Consumer", Access: repo.AccessDenied},
		},
	})
	require.NoError(t, err)

	// Action: bob lists the folder.
	page, err := env.Store.ListChildren(as("bob"), shared.ID, repo.ListOptions{MaxItems: 10})
	require.NoError(t, err)

	// Assert: the denied child is silently omitted, not an error.
	require.Len(t, page.Entries, 1)
	require.Equal(t, open.ID, page.Entries[0].ID)
}

func (suite *StoreTestSuite) testListBadPagination(t *testing.T) {
	env := suite.NewStore()
	home := env.HomeID("alice")

	_, err := env.Store.ListChildren(as("alice"), home, repo.ListOptions{MaxItems: 0})
	AssertKind(t, repo.KindInvalidArgument, err)

	_, err = env.Store.ListChildren(as("alice"), home, repo.ListOptions{MaxItems: 10, SkipCount: -1})
	AssertKind(t, repo.KindInvalidArgument, err)
}

func (suite *StoreTestSuite) testListContradictoryFilter(t *testing.T) {
	env := suite.NewStore()

	_, err := env.Store.ListChildren(as("alice"), env.HomeID("alice"), repo.ListOptions{
		Filter:   repo.ChildFilter{IsFolder: boolPtr(true), IsFile: boolPtr(true)},
		MaxItems: 10,
	})
	AssertKind(t, repo.KindInvalidArgument, err)
}

func (suite *StoreTestSuite) testListTypeWithKindFilter(t *testing.T) {
	env := suite.NewStore()

	_, err := env.Store.ListChildren(as("alice"), env.HomeID("alice"), repo.ListOptions{
		Filter:   repo.ChildFilter{Type: repo.TypeContent, IsFile: boolPtr(true)},
		MaxItems: 10,
	})
	AssertKind(t, repo.KindInvalidArgument, err)
}
