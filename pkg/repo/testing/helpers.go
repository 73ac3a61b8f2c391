package testing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/treelinehq/canopy/pkg/repo"
)

// as builds an operation context for a principal in the default tenant.
func as(principal string) *repo.OperationContext {
	return &repo.OperationContext{
		Context:   context.Background(),
		Principal: principal,
		Tenant:    "default",
	}
}

// createFolder creates a folder and fails the test on error.
func createFolder(t *testing.T, store repo.Store, principal string, parent repo.NodeID, name string) *repo.Node {
	t.Helper()
	node, err := store.Create(as(principal), repo.CreateRequest{
		ParentID: parent,
		Name:     name,
		Type:     repo.TypeFolder,
	})
	require.NoError(t, err)
	return node
}

// createFile creates a content node and fails the test on error.
func createFile(t *testing.T, store repo.Store, principal string, parent repo.NodeID, name string) *repo.Node {
	t.Helper()
	node, err := store.Create(as(principal), repo.CreateRequest{
		ParentID: parent,
		Name:     name,
		Type:     repo.TypeContent,
	})
	require.NoError(t, err)
	return node
}

// createVersionedFile creates a content node carrying cm:versionable.
func createVersionedFile(t *testing.T, store repo.Store, principal string, parent repo.NodeID, name string) *repo.Node {
	t.Helper()
	node, err := store.Create(as(principal), repo.CreateRequest{
		ParentID: parent,
		Name:     name,
		Type:     repo.TypeContent,
		Aspects:  []repo.QName{repo.AspectVersionable},
	})
	require.NoError(t, err)
	return node
}

// grant gives an authority a permission on a node, acting as admin.
func grant(t *testing.T, store repo.Store, id repo.NodeID, authority, permission string) {
	t.Helper()
	_, err := store.SetPermissions(as("admin"), id, repo.PermissionRequest{
		Entries: []repo.PermissionEntry{
			{Authority: authority, Name: permission, Access: repo.AccessAllowed},
		},
	})
	require.NoError(t, err)
}

// AssertKind asserts that err is a repository error of the given kind.
func AssertKind(t *testing.T, kind repo.ErrorKind, err error) {
	t.Helper()
	require.Error(t, err)
	actual, ok := repo.KindOf(err)
	require.True(t, ok, "expected a repository error, got %T: %v", err, err)
	require.Equal(t, kind, actual, "expected %s, got %s: %v", kind, actual, err)
}

func boolPtr(v bool) *bool       { return &v }
func strPtr(v string) *string    { return &v }
func qnamePtr(v repo.QName) *repo.QName { return &v }
