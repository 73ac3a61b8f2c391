// Package testing provides a reusable conformance suite for content.Store
// implementations.
package testing

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/treelinehq/canopy/pkg/content"
)

// StoreTestSuite is the conformance suite for content.Store
// implementations.
type StoreTestSuite struct {
	// NewStore creates a fresh store for each test. MaxBytes applies the
	// given per-snapshot ceiling (zero means unlimited).
	NewStore func(maxBytes int64) content.Store
}

// Run executes all tests in the suite.
func (suite *StoreTestSuite) Run(test *testing.T) {
	test.Run("PutAndRead", suite.testPutAndRead)
	test.Run("PutMintsFreshIDs", suite.testPutMintsFreshIDs)
	test.Run("PutEmpty", suite.testPutEmpty)
	test.Run("SizeCeiling", suite.testSizeCeiling)
	test.Run("Size", suite.testSize)
	test.Run("Exists", suite.testExists)
	test.Run("ReadUnknown", suite.testReadUnknown)
	test.Run("Delete", suite.testDelete)
	test.Run("DeleteAbsent", suite.testDeleteAbsent)
	test.Run("List", suite.testList)
}

func (suite *StoreTestSuite) testPutAndRead(t *testing.T) {
	store := suite.NewStore(0)
	ctx := context.Background()
	payload := []byte("hello content world")

	id, size, err := store.Put(ctx, bytes.NewReader(payload))
	require.NoError(t, err)
	require.NotEmpty(t, id)
	require.Equal(t, int64(len(payload)), size)

	reader, err := store.Read(ctx, id)
	require.NoError(t, err)
	defer reader.Close()

	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	require.Equal(t, payload, data)
}

func (suite *StoreTestSuite) testPutMintsFreshIDs(t *testing.T) {
	store := suite.NewStore(0)
	ctx := context.Background()

	// Identical bytes still get distinct snapshots; snapshots are
	// write-once and never aliased.
	first, _, err := store.Put(ctx, strings.NewReader("same"))
	require.NoError(t, err)
	second, _, err := store.Put(ctx, strings.NewReader("same"))
	require.NoError(t, err)
	require.NotEqual(t, first, second)
}

func (suite *StoreTestSuite) testPutEmpty(t *testing.T) {
	store := suite.NewStore(0)
	ctx := context.Background()

	id, size, err := store.Put(ctx, bytes.NewReader(nil))
	require.NoError(t, err)
	require.Zero(t, size)

	reader, err := store.Read(ctx, id)
	require.NoError(t, err)
	defer reader.Close()
	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	require.Empty(t, data)
}

func (suite *StoreTestSuite) testSizeCeiling(t *testing.T) {
	store := suite.NewStore(8)
	ctx := context.Background()

	// Exactly at the ceiling passes.
	_, size, err := store.Put(ctx, strings.NewReader("12345678"))
	require.NoError(t, err)
	require.Equal(t, int64(8), size)

	// One byte over fails and stores nothing.
	_, _, err = store.Put(ctx, strings.NewReader("123456789"))
	require.ErrorIs(t, err, content.ErrTooLarge)

	ids, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, ids, 1)
}

func (suite *StoreTestSuite) testSize(t *testing.T) {
	store := suite.NewStore(0)
	ctx := context.Background()

	id, _, err := store.Put(ctx, strings.NewReader("12345"))
	require.NoError(t, err)

	size, err := store.Size(ctx, id)
	require.NoError(t, err)
	require.Equal(t, int64(5), size)

	_, err = store.Size(ctx, "no-such-id")
	require.ErrorIs(t, err, content.ErrNotFound)
}

func (suite *StoreTestSuite) testExists(t *testing.T) {
	store := suite.NewStore(0)
	ctx := context.Background()

	id, _, err := store.Put(ctx, strings.NewReader("x"))
	require.NoError(t, err)

	exists, err := store.Exists(ctx, id)
	require.NoError(t, err)
	require.True(t, exists)

	exists, err = store.Exists(ctx, "no-such-id")
	require.NoError(t, err)
	require.False(t, exists)
}

func (suite *StoreTestSuite) testReadUnknown(t *testing.T) {
	store := suite.NewStore(0)

	_, err := store.Read(context.Background(), "no-such-id")
	require.ErrorIs(t, err, content.ErrNotFound)
}

func (suite *StoreTestSuite) testDelete(t *testing.T) {
	store := suite.NewStore(0)
	ctx := context.Background()

	id, _, err := store.Put(ctx, strings.NewReader("doomed"))
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, id))

	_, err = store.Read(ctx, id)
	require.ErrorIs(t, err, content.ErrNotFound)
}

func (suite *StoreTestSuite) testDeleteAbsent(t *testing.T) {
	store := suite.NewStore(0)

	// Idempotent: the garbage collector retries sweeps.
	require.NoError(t, store.Delete(context.Background(), "no-such-id"))
}

func (suite *StoreTestSuite) testList(t *testing.T) {
	store := suite.NewStore(0)
	ctx := context.Background()

	expected := make(map[content.ID]bool)
	for _, payload := range []string{"a", "b", "c"} {
		id, _, err := store.Put(ctx, strings.NewReader(payload))
		require.NoError(t, err)
		expected[id] = true
	}

	ids, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, ids, len(expected))
	for _, id := range ids {
		require.True(t, expected[id])
	}
}
