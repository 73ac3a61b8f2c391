// Package testing provides a reusable conformance suite for repo.Store
// implementations. It tests the interface contract, not implementation
// details, so any backend can run it.
package testing

import (
	"testing"

	"github.com/treelinehq/canopy/pkg/identity"
	"github.com/treelinehq/canopy/pkg/repo"
)

// Environment is one fresh store instance together with the fixture data
// the suite relies on.
//
// The factory must bootstrap a single tenant named "default" containing
// the standard tree (root with "Sites", "Data Dictionary" and "User
// Homes") and home folders for the users "alice", "bob" and "carol". The
// directory must know those three users, the group "GROUP_ENGINEERING"
// with member "bob", and treat "admin" as an administrator.
type Environment struct {
	Store repo.Store

	// RootID is the "default" tenant's root node.
	RootID repo.NodeID

	// HomeID resolves a user's home folder in the "default" tenant.
	HomeID func(user string) repo.NodeID

	// Directory is the identity directory backing the store, exposed so
	// tests can add principals on the fly.
	Directory *identity.MemoryDirectory
}

// StoreTestSuite is the conformance suite for repo.Store implementations.
type StoreTestSuite struct {
	// NewStore creates a fresh environment for each test, ensuring test
	// isolation.
	NewStore func() *Environment
}

// Run executes all tests in the suite.
func (suite *StoreTestSuite) Run(test *testing.T) {
	test.Run("Create", suite.RunCreateTests)
	test.Run("Read", suite.RunReadTests)
	test.Run("Update", suite.RunUpdateTests)
	test.Run("ListChildren", suite.RunListTests)
	test.Run("Permissions", suite.RunPermissionTests)
	test.Run("Versions", suite.RunVersionTests)
	test.Run("Locks", suite.RunLockTests)
	test.Run("Trash", suite.RunTrashTests)
	test.Run("MoveCopy", suite.RunMoveCopyTests)
}
