package badger_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/treelinehq/canopy/pkg/content"
	"github.com/treelinehq/canopy/pkg/content/badger"
	contenttesting "github.com/treelinehq/canopy/pkg/content/testing"
)

func TestBadgerContentStore(t *testing.T) {
	suite := &contenttesting.StoreTestSuite{
		NewStore: func(maxBytes int64) content.Store {
			store, err := badger.NewBadgerContentStore(context.Background(), badger.Options{
				InMemory: true,
				MaxBytes: maxBytes,
			})
			require.NoError(t, err)
			t.Cleanup(func() { _ = store.Close() })
			return store
		},
	}
	suite.Run(t)
}

func TestBadgerContentStorePersistence(t *testing.T) {
	// Setup: write a snapshot, close the database.
	ctx := context.Background()
	dir := t.TempDir()

	store, err := badger.NewBadgerContentStore(ctx, badger.Options{Path: dir})
	require.NoError(t, err)

	id, size, err := store.Put(ctx, strings.NewReader("survives restart"))
	require.NoError(t, err)
	require.Equal(t, int64(16), size)
	require.NoError(t, store.Close())

	// Action: reopen from the same directory.
	reopened, err := badger.NewBadgerContentStore(ctx, badger.Options{Path: dir})
	require.NoError(t, err)
	defer reopened.Close()

	// Assert: the snapshot is still there.
	got, err := reopened.Size(ctx, id)
	require.NoError(t, err)
	require.Equal(t, int64(16), got)
}

func TestBadgerContentStoreRequiresPath(t *testing.T) {
	_, err := badger.NewBadgerContentStore(context.Background(), badger.Options{})
	require.Error(t, err)
}
