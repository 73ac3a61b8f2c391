package rendition_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/treelinehq/canopy/pkg/rendition"
	"github.com/treelinehq/canopy/pkg/repo"
)

func key(name string) rendition.Key {
	return rendition.Key{
		Tenant:       "default",
		NodeID:       "node-1",
		VersionLabel: "1.0",
		Name:         name,
	}
}

// settle polls until the job leaves PENDING.
func settle(t *testing.T, m *rendition.Manager, k rendition.Key) rendition.Job {
	t.Helper()
	require.Eventually(t, func() bool {
		job, err := m.Get(context.Background(), k)
		return err == nil && job.Status != rendition.StatusPending
	}, 5*time.Second, 5*time.Millisecond)

	job, err := m.Get(context.Background(), k)
	require.NoError(t, err)
	return job
}

func TestRequestAndPoll(t *testing.T) {
	manager := rendition.NewManager(rendition.PassThrough(), rendition.Config{Workers: 1})
	manager.Start()
	defer manager.Stop(context.Background())
	ctx := context.Background()

	job, err := manager.RequestRendition(ctx, rendition.Request{
		Key:       key("pdf"),
		SourceRef: "snapshot-42",
	})
	require.NoError(t, err)
	require.NotEmpty(t, job.ID)

	done := settle(t, manager, key("pdf"))
	require.Equal(t, rendition.StatusCreated, done.Status)
	require.Equal(t, "snapshot-42", done.ResultRef)

	status, err := manager.StatusOf(ctx, key("pdf"))
	require.NoError(t, err)
	require.Equal(t, rendition.StatusCreated, status)
}

func TestUnknownKeyIsNotCreated(t *testing.T) {
	manager := rendition.NewManager(rendition.PassThrough(), rendition.Config{})
	ctx := context.Background()

	// Never-requested renditions poll as NOT_CREATED, not as an error.
	status, err := manager.StatusOf(ctx, key("doclib"))
	require.NoError(t, err)
	require.Equal(t, rendition.StatusNotCreated, status)

	_, err = manager.Get(ctx, key("doclib"))
	require.True(t, repo.IsKind(err, repo.KindNotFound))
}

func TestRendererFailure(t *testing.T) {
	boom := rendition.RendererFunc(func(context.Context, rendition.Request) (string, error) {
		return "", errors.New("unsupported source format")
	})
	manager := rendition.NewManager(boom, rendition.Config{Workers: 1})
	manager.Start()
	defer manager.Stop(context.Background())
	ctx := context.Background()

	_, err := manager.RequestRendition(ctx, rendition.Request{Key: key("pdf")})
	require.NoError(t, err)

	failed := settle(t, manager, key("pdf"))
	require.Equal(t, rendition.StatusFailed, failed.Status)
	require.Equal(t, "unsupported source format", failed.FailureMessage)
}

func TestFailedKeyRetries(t *testing.T) {
	attempts := 0
	flaky := rendition.RendererFunc(func(context.Context, rendition.Request) (string, error) {
		attempts++
		if attempts == 1 {
			return "", errors.New("transient")
		}
		return "rendered", nil
	})
	manager := rendition.NewManager(flaky, rendition.Config{Workers: 1})
	manager.Start()
	defer manager.Stop(context.Background())
	ctx := context.Background()

	first, err := manager.RequestRendition(ctx, rendition.Request{Key: key("pdf")})
	require.NoError(t, err)
	require.Equal(t, rendition.StatusFailed, settle(t, manager, key("pdf")).Status)

	// A new request after failure gets a fresh handle and succeeds.
	second, err := manager.RequestRendition(ctx, rendition.Request{Key: key("pdf")})
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)
	require.Equal(t, rendition.StatusCreated, settle(t, manager, key("pdf")).Status)
}

func TestRequestIsIdempotentWhileLive(t *testing.T) {
	manager := rendition.NewManager(rendition.PassThrough(), rendition.Config{Workers: 1})
	manager.Start()
	defer manager.Stop(context.Background())
	ctx := context.Background()

	first, err := manager.RequestRendition(ctx, rendition.Request{Key: key("pdf")})
	require.NoError(t, err)
	settle(t, manager, key("pdf"))

	// Re-requesting a CREATED rendition reuses the handle.
	again, err := manager.RequestRendition(ctx, rendition.Request{Key: key("pdf")})
	require.NoError(t, err)
	require.Equal(t, first.ID, again.ID)
}

func TestJobByID(t *testing.T) {
	manager := rendition.NewManager(rendition.PassThrough(), rendition.Config{Workers: 1})
	manager.Start()
	defer manager.Stop(context.Background())
	ctx := context.Background()

	job, err := manager.RequestRendition(ctx, rendition.Request{Key: key("pdf")})
	require.NoError(t, err)
	settle(t, manager, key("pdf"))

	byID, err := manager.JobByID(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, job.ID, byID.ID)
	require.Equal(t, rendition.StatusCreated, byID.Status)

	_, err = manager.JobByID(ctx, "no-such-job")
	require.True(t, repo.IsKind(err, repo.KindNotFound))
}

func TestDelete(t *testing.T) {
	manager := rendition.NewManager(rendition.PassThrough(), rendition.Config{Workers: 1})
	manager.Start()
	defer manager.Stop(context.Background())
	ctx := context.Background()

	_, err := manager.RequestRendition(ctx, rendition.Request{Key: key("pdf")})
	require.NoError(t, err)
	settle(t, manager, key("pdf"))

	require.NoError(t, manager.Delete(ctx, key("pdf")))

	status, err := manager.StatusOf(ctx, key("pdf"))
	require.NoError(t, err)
	require.Equal(t, rendition.StatusNotCreated, status)

	require.True(t, repo.IsKind(manager.Delete(ctx, key("pdf")), repo.KindNotFound))
}

func TestDeleteForNode(t *testing.T) {
	manager := rendition.NewManager(rendition.PassThrough(), rendition.Config{Workers: 1})
	manager.Start()
	defer manager.Stop(context.Background())
	ctx := context.Background()

	_, err := manager.RequestRendition(ctx, rendition.Request{Key: key("pdf")})
	require.NoError(t, err)
	_, err = manager.RequestRendition(ctx, rendition.Request{Key: key("doclib")})
	require.NoError(t, err)

	other := rendition.Key{Tenant: "default", NodeID: "node-2", Name: "pdf"}
	_, err = manager.RequestRendition(ctx, rendition.Request{Key: other})
	require.NoError(t, err)
	settle(t, manager, other)

	manager.DeleteForNode("default", "node-1")

	status, err := manager.StatusOf(ctx, key("pdf"))
	require.NoError(t, err)
	require.Equal(t, rendition.StatusNotCreated, status)
	status, err = manager.StatusOf(ctx, key("doclib"))
	require.NoError(t, err)
	require.Equal(t, rendition.StatusNotCreated, status)

	// Other nodes are untouched.
	status, err = manager.StatusOf(ctx, other)
	require.NoError(t, err)
	require.Equal(t, rendition.StatusCreated, status)
}

func TestEmptyNameRejected(t *testing.T) {
	manager := rendition.NewManager(rendition.PassThrough(), rendition.Config{})

	_, err := manager.RequestRendition(context.Background(), rendition.Request{
		Key: rendition.Key{Tenant: "default", NodeID: "node-1"},
	})
	require.True(t, repo.IsKind(err, repo.KindInvalidArgument))
}

func TestQueueFull(t *testing.T) {
	// A renderer that never finishes keeps the single worker busy while
	// the queue backs up.
	started := make(chan struct{}, 4)
	block := make(chan struct{})
	stuck := rendition.RendererFunc(func(context.Context, rendition.Request) (string, error) {
		started <- struct{}{}
		<-block
		return "", nil
	})
	manager := rendition.NewManager(stuck, rendition.Config{Workers: 1, QueueSize: 1})
	manager.Start()
	defer manager.Stop(context.Background())
	// Unblock the worker before Stop waits on it.
	defer close(block)
	ctx := context.Background()

	_, err := manager.RequestRendition(ctx, rendition.Request{Key: key("pdf")})
	require.NoError(t, err)
	// Wait until the worker has dequeued the first job so the next
	// request lands in the queue, not on a worker.
	<-started
	_, err = manager.RequestRendition(ctx, rendition.Request{Key: key("doclib")})
	require.NoError(t, err)

	_, err = manager.RequestRendition(ctx, rendition.Request{Key: key("imgpreview")})
	require.True(t, repo.IsKind(err, repo.KindConflict))
}

func TestStoppedManagerRejectsRequests(t *testing.T) {
	manager := rendition.NewManager(rendition.PassThrough(), rendition.Config{Workers: 1})
	manager.Start()
	require.NoError(t, manager.Stop(context.Background()))

	_, err := manager.RequestRendition(context.Background(), rendition.Request{Key: key("pdf")})
	require.True(t, repo.IsKind(err, repo.KindConflict))
}
