package gc_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/treelinehq/canopy/pkg/content/gc"
	"github.com/treelinehq/canopy/pkg/content/memory"
)

// staticRefs is a fixed reference set standing in for the repository.
type staticRefs map[string]bool

func (r staticRefs) ReferencedContentRefs() map[string]bool {
	return r
}

func TestCollectRemovesOrphans(t *testing.T) {
	// Setup: two referenced snapshots and one orphan.
	ctx := context.Background()
	store := memory.NewMemoryContentStore(memory.Options{})

	live, _, err := store.Put(ctx, strings.NewReader("current"))
	require.NoError(t, err)
	frozen, _, err := store.Put(ctx, strings.NewReader("versioned"))
	require.NoError(t, err)
	orphan, _, err := store.Put(ctx, strings.NewReader("abandoned"))
	require.NoError(t, err)

	refs := staticRefs{string(live): true, string(frozen): true}
	collector := gc.NewCollector(refs, store, gc.Config{Enabled: true})

	// Action
	removed, err := collector.Collect(ctx)
	require.NoError(t, err)

	// Assert: only the orphan is gone.
	require.Equal(t, 1, removed)

	exists, err := store.Exists(ctx, live)
	require.NoError(t, err)
	require.True(t, exists)

	exists, err = store.Exists(ctx, frozen)
	require.NoError(t, err)
	require.True(t, exists)

	exists, err = store.Exists(ctx, orphan)
	require.NoError(t, err)
	require.False(t, exists)
}

func TestCollectDryRun(t *testing.T) {
	ctx := context.Background()
	store := memory.NewMemoryContentStore(memory.Options{})

	orphan, _, err := store.Put(ctx, strings.NewReader("abandoned"))
	require.NoError(t, err)

	collector := gc.NewCollector(staticRefs{}, store, gc.Config{
		Enabled: true,
		DryRun:  true,
	})

	removed, err := collector.Collect(ctx)
	require.NoError(t, err)

	// Counted but not deleted.
	require.Equal(t, 1, removed)
	exists, err := store.Exists(ctx, orphan)
	require.NoError(t, err)
	require.True(t, exists)
}

func TestCollectEmptyStore(t *testing.T) {
	store := memory.NewMemoryContentStore(memory.Options{})
	collector := gc.NewCollector(staticRefs{}, store, gc.Config{Enabled: true})

	removed, err := collector.Collect(context.Background())
	require.NoError(t, err)
	require.Zero(t, removed)
}

func TestStartStop(t *testing.T) {
	store := memory.NewMemoryContentStore(memory.Options{})
	collector := gc.NewCollector(staticRefs{}, store, gc.Config{
		Enabled:  true,
		Interval: time.Hour,
	})

	collector.Start()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, collector.Stop(ctx))
}

func TestStartDisabled(t *testing.T) {
	store := memory.NewMemoryContentStore(memory.Options{})
	collector := gc.NewCollector(staticRefs{}, store, gc.Config{Enabled: false})

	collector.Start()

	// Stop returns immediately: no worker was launched.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, collector.Stop(ctx))
}

func TestCollectCancelledContext(t *testing.T) {
	ctx := context.Background()
	store := memory.NewMemoryContentStore(memory.Options{})

	_, _, err := store.Put(ctx, strings.NewReader("abandoned"))
	require.NoError(t, err)

	collector := gc.NewCollector(staticRefs{}, store, gc.Config{Enabled: true})

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = collector.Collect(cancelled)
	require.ErrorIs(t, err, context.Canceled)
}
