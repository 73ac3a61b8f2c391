package memory_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/treelinehq/canopy/pkg/identity"
	"github.com/treelinehq/canopy/pkg/repo"
	"github.com/treelinehq/canopy/pkg/repo/memory"
	repotesting "github.com/treelinehq/canopy/pkg/repo/testing"
)

func newEnvironment(opts memory.Options) (*memory.MemoryStore, *repotesting.Environment) {
	directory := identity.NewMemoryDirectory()
	for _, user := range []string{"admin", "alice", "bob", "carol"} {
		directory.AddUser(user)
	}
	directory.AddGroup("GROUP_ENGINEERING")
	directory.AddMember("GROUP_ENGINEERING", "bob")

	opts.Directory = directory
	opts.Tenants = []memory.TenantSeed{
		{Name: "default", Users: []string{"alice", "bob", "carol"}},
	}
	store := memory.NewMemoryStore(opts)

	rootID, err := store.RootID("default")
	if err != nil {
		panic(err)
	}
	return store, &repotesting.Environment{
		Store:  store,
		RootID: rootID,
		HomeID: func(user string) repo.NodeID {
			id, err := store.HomeID("default", user)
			if err != nil {
				panic(err)
			}
			return id
		},
		Directory: directory,
	}
}

func TestMemoryStore(t *testing.T) {
	suite := &repotesting.StoreTestSuite{
		NewStore: func() *repotesting.Environment {
			_, env := newEnvironment(memory.Options{})
			return env
		},
	}
	suite.Run(t)
}

func opCtx(principal string) *repo.OperationContext {
	return &repo.OperationContext{
		Context:   context.Background(),
		Principal: principal,
		Tenant:    "default",
	}
}

// ============================================================================
// Backend-Specific Tests
// ============================================================================

func TestMemoryStoreLockExpiry(t *testing.T) {
	// Setup: an injectable clock.
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store, env := newEnvironment(memory.Options{Clock: func() time.Time { return now }})

	file, err := store.Create(opCtx("alice"), repo.CreateRequest{
		ParentID: env.HomeID("alice"),
		Name:     "doc.txt",
		Type:     repo.TypeContent,
	})
	require.NoError(t, err)

	info, err := store.Lock(opCtx("alice"), file.ID, repo.LockRequest{TimeToExpireSeconds: 30})
	require.NoError(t, err)
	require.Equal(t, now.Add(30*time.Second), info.ExpiresAt)

	// Administrators pass through a live lock.
	_, err = store.SetContent(opCtx("admin"), file.ID, repo.ContentUpdate{ContentRef: "r", Size: 1})
	require.NoError(t, err)

	// Advance past expiry: the lock lazily evaporates on next access.
	now = now.Add(time.Minute)
	node, err := store.Get(opCtx("alice"), file.ID, repo.GetOptions{})
	require.NoError(t, err)
	require.Nil(t, node.Lock)
	require.False(t, node.HasAspect(repo.AspectLockable))

	// An expired lock counts as no lock for unlock purposes.
	err = store.Unlock(opCtx("alice"), file.ID)
	require.True(t, repo.IsKind(err, repo.KindUnprocessableEntity))
}

func TestMemoryStoreEphemeralLockCap(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store, env := newEnvironment(memory.Options{
		Clock:            func() time.Time { return now },
		EphemeralLockTTL: 5 * time.Minute,
	})

	file, err := store.Create(opCtx("alice"), repo.CreateRequest{
		ParentID: env.HomeID("alice"),
		Name:     "doc.txt",
		Type:     repo.TypeContent,
	})
	require.NoError(t, err)

	// A "no expiry" ephemeral request is still capped.
	info, err := store.Lock(opCtx("alice"), file.ID, repo.LockRequest{
		Lifetime: repo.LockEphemeral,
	})
	require.NoError(t, err)
	require.Equal(t, now.Add(5*time.Minute), info.ExpiresAt)

	// A TTL above the cap is clamped down; one below passes through.
	info, err = store.Lock(opCtx("alice"), file.ID, repo.LockRequest{
		Lifetime:            repo.LockEphemeral,
		TimeToExpireSeconds: 3600,
	})
	require.NoError(t, err)
	require.Equal(t, now.Add(5*time.Minute), info.ExpiresAt)

	info, err = store.Lock(opCtx("alice"), file.ID, repo.LockRequest{
		Lifetime:            repo.LockEphemeral,
		TimeToExpireSeconds: 60,
	})
	require.NoError(t, err)
	require.Equal(t, now.Add(time.Minute), info.ExpiresAt)
}

func TestMemoryStoreTenantIsolation(t *testing.T) {
	directory := identity.NewMemoryDirectory()
	directory.AddUser("alice")
	store := memory.NewMemoryStore(memory.Options{
		Directory: directory,
		Tenants: []memory.TenantSeed{
			{Name: "acme", Users: []string{"alice"}},
			{Name: "globex", Users: []string{"alice"}},
		},
	})

	acmeHome, err := store.HomeID("acme", "alice")
	require.NoError(t, err)

	file, err := store.Create(&repo.OperationContext{
		Context: context.Background(), Principal: "alice", Tenant: "acme",
	}, repo.CreateRequest{ParentID: acmeHome, Name: "doc.txt", Type: repo.TypeContent})
	require.NoError(t, err)

	// The node is invisible from the other tenant, even to its creator.
	_, err = store.Get(&repo.OperationContext{
		Context: context.Background(), Principal: "alice", Tenant: "globex",
	}, file.ID, repo.GetOptions{})
	require.True(t, repo.IsKind(err, repo.KindNotFound))

	// Unknown tenants are themselves a NotFound.
	_, err = store.Get(&repo.OperationContext{
		Context: context.Background(), Principal: "alice", Tenant: "initech",
	}, file.ID, repo.GetOptions{})
	require.True(t, repo.IsKind(err, repo.KindNotFound))
}

func TestMemoryStoreReferencedContentRefs(t *testing.T) {
	store, env := newEnvironment(memory.Options{})

	file, err := store.Create(opCtx("alice"), repo.CreateRequest{
		ParentID: env.HomeID("alice"),
		Name:     "doc.txt",
		Type:     repo.TypeContent,
		Aspects:  []repo.QName{repo.AspectVersionable},
	})
	require.NoError(t, err)

	_, err = store.SetContent(opCtx("alice"), file.ID, repo.ContentUpdate{ContentRef: "ref-a", Size: 1})
	require.NoError(t, err)
	_, err = store.SetContent(opCtx("alice"), file.ID, repo.ContentUpdate{ContentRef: "ref-b", Size: 1})
	require.NoError(t, err)

	// Both the current and the version-frozen references count as live,
	// and archiving changes nothing.
	require.NoError(t, store.SoftDelete(opCtx("alice"), file.ID))

	refs := store.ReferencedContentRefs()
	require.True(t, refs["ref-a"])
	require.True(t, refs["ref-b"])
	require.False(t, refs["ref-orphan"])
}

func TestMemoryStoreConcurrentContentWrites(t *testing.T) {
	store, env := newEnvironment(memory.Options{})

	file, err := store.Create(opCtx("alice"), repo.CreateRequest{
		ParentID: env.HomeID("alice"),
		Name:     "doc.txt",
		Type:     repo.TypeContent,
	})
	require.NoError(t, err)

	const (
		writers = 16
		readers = 4
	)
	refFor := func(i int) string { return fmt.Sprintf("snapshot-%d", i) }
	sizeFor := func(i int) int64 { return int64(100 + i) }

	// checkContent verifies that an observed (ref, size) pair belongs to a
	// single writer; a mismatch means two updates interleaved.
	checkContent := func(info *repo.ContentInfo) error {
		var n int
		if _, err := fmt.Sscanf(info.ContentRef, "snapshot-%d", &n); err != nil {
			return fmt.Errorf("unexpected content ref %q", info.ContentRef)
		}
		if n < 0 || n >= writers {
			return fmt.Errorf("content ref %q out of range", info.ContentRef)
		}
		if info.Size != sizeFor(n) {
			return fmt.Errorf("ref %q carries size %d, want %d", info.ContentRef, info.Size, sizeFor(n))
		}
		return nil
	}

	// Action: parallel writers race on one node while readers poll it.
	errCh := make(chan error, writers+readers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := store.SetContent(opCtx("alice"), file.ID, repo.ContentUpdate{
				ContentRef: refFor(i),
				Size:       sizeFor(i),
				MimeType:   "text/plain",
			})
			if err != nil {
				errCh <- err
			}
		}(i)
	}
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				node, err := store.Get(opCtx("alice"), file.ID, repo.GetOptions{})
				if err != nil {
					errCh <- err
					return
				}
				if node.Content == nil {
					continue
				}
				if err := checkContent(node.Content); err != nil {
					errCh <- err
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		require.NoError(t, err)
	}

	// Assert: the surviving state is one complete writer's ref and size.
	node, err := store.Get(opCtx("alice"), file.ID, repo.GetOptions{})
	require.NoError(t, err)
	require.NotNil(t, node.Content)
	require.NoError(t, checkContent(node.Content))
}

func TestMemoryStoreCancelledContext(t *testing.T) {
	store, env := newEnvironment(memory.Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Get(&repo.OperationContext{
		Context: ctx, Principal: "alice", Tenant: "default",
	}, env.RootID, repo.GetOptions{})
	require.Error(t, err)
}
