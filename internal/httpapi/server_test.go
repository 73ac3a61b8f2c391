package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/treelinehq/canopy/internal/httpapi"
	"github.com/treelinehq/canopy/pkg/content"
	contentMemory "github.com/treelinehq/canopy/pkg/content/memory"
	"github.com/treelinehq/canopy/pkg/identity"
	"github.com/treelinehq/canopy/pkg/rendition"
	"github.com/treelinehq/canopy/pkg/repo"
	repoMemory "github.com/treelinehq/canopy/pkg/repo/memory"
)

type fixture struct {
	server    *httptest.Server
	store     *repoMemory.MemoryStore
	contents  content.Store
	rootID    repo.NodeID
	aliceHome repo.NodeID
	bobHome   repo.NodeID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	directory := identity.NewMemoryDirectory()
	for _, user := range []string{"admin", "alice", "bob"} {
		directory.AddUser(user)
	}

	store := repoMemory.NewMemoryStore(repoMemory.Options{
		Directory: directory,
		Tenants: []repoMemory.TenantSeed{
			{Name: "default", Users: []string{"alice", "bob"}},
		},
	})

	contents := contentMemory.NewMemoryContentStore(contentMemory.Options{})

	renditions := rendition.NewManager(rendition.PassThrough(), rendition.Config{Workers: 1})
	renditions.Start()
	t.Cleanup(func() { _ = renditions.Stop(context.Background()) })

	api := httpapi.New(store, contents, renditions, nil)
	server := httptest.NewServer(api.Router())
	t.Cleanup(server.Close)

	rootID, err := store.RootID("default")
	require.NoError(t, err)
	aliceHome, err := store.HomeID("default", "alice")
	require.NoError(t, err)
	bobHome, err := store.HomeID("default", "bob")
	require.NoError(t, err)

	return &fixture{
		server:    server,
		store:     store,
		contents:  contents,
		rootID:    rootID,
		aliceHome: aliceHome,
		bobHome:   bobHome,
	}
}

// do issues a request as the given user against the test server.
func (f *fixture) do(t *testing.T, user, method, path string, body any) *http.Response {
	t.Helper()

	var reader io.Reader
	contentType := ""
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	case []byte:
		reader = bytes.NewReader(b)
	default:
		encoded, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
		contentType = "application/json"
	}

	req, err := http.NewRequest(method, f.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("X-Canopy-User", user)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := f.server.Client().Do(req)
	require.NoError(t, err)
	return resp
}

func decodeNode(t *testing.T, resp *http.Response) *repo.Node {
	t.Helper()
	defer resp.Body.Close()
	var node repo.Node
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&node))
	return &node
}

func (f *fixture) createNode(t *testing.T, user string, parent repo.NodeID, name string, nodeType repo.QName) *repo.Node {
	t.Helper()
	resp := f.do(t, user, http.MethodPost, fmt.Sprintf("/api/nodes/%s/children", parent), map[string]any{
		"name":     name,
		"nodeType": string(nodeType),
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decodeNode(t, resp)
}

func TestHealthCheck(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, "alice", http.MethodGet, "/health", nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCreateAndGetNode(t *testing.T) {
	f := newFixture(t)

	node := f.createNode(t, "alice", f.aliceHome, "report.txt", repo.TypeContent)
	require.Equal(t, "report.txt", node.Name)
	require.True(t, node.IsFile)

	resp := f.do(t, "alice", http.MethodGet, "/api/nodes/"+string(node.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decodeNode(t, resp)
	require.Equal(t, node.ID, got.ID)
}

func TestGetNodeWithPath(t *testing.T) {
	f := newFixture(t)

	node := f.createNode(t, "alice", f.aliceHome, "report.txt", repo.TypeContent)

	resp := f.do(t, "alice", http.MethodGet, "/api/nodes/"+string(node.ID)+"?include=path", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decodeNode(t, resp)
	require.NotNil(t, got.Path)
	require.True(t, strings.HasSuffix(got.Path.Name, "/report.txt"))
}

func TestGetUnknownNodeIs404(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, "alice", http.MethodGet, "/api/nodes/no-such-node", nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	var body map[string]map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "NotFound", body["error"]["errorKey"])
}

func TestForeignHomeIs403(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, "bob", http.MethodPost, fmt.Sprintf("/api/nodes/%s/children", f.aliceHome), map[string]any{
		"name":     "intruder.txt",
		"nodeType": "cm:content",
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestCreateCollisionIs409AndAutoRename(t *testing.T) {
	f := newFixture(t)
	f.createNode(t, "alice", f.aliceHome, "doc.txt", repo.TypeContent)

	resp := f.do(t, "alice", http.MethodPost, fmt.Sprintf("/api/nodes/%s/children", f.aliceHome), map[string]any{
		"name":     "doc.txt",
		"nodeType": "cm:content",
	})
	resp.Body.Close()
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = f.do(t, "alice", http.MethodPost, fmt.Sprintf("/api/nodes/%s/children?autoRename=true", f.aliceHome), map[string]any{
		"name":     "doc.txt",
		"nodeType": "cm:content",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	renamed := decodeNode(t, resp)
	require.Equal(t, "doc-1.txt", renamed.Name)
}

func TestUpdateNode(t *testing.T) {
	f := newFixture(t)
	node := f.createNode(t, "alice", f.aliceHome, "old.txt", repo.TypeContent)

	resp := f.do(t, "alice", http.MethodPut, "/api/nodes/"+string(node.ID), map[string]any{
		"name": "new.txt",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decodeNode(t, resp)
	require.Equal(t, "new.txt", updated.Name)
}

func TestMalformedBodyIs400(t *testing.T) {
	f := newFixture(t)
	node := f.createNode(t, "alice", f.aliceHome, "doc.txt", repo.TypeContent)

	resp := f.do(t, "alice", http.MethodPut, "/api/nodes/"+string(node.ID), "{not json")
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListChildren(t *testing.T) {
	f := newFixture(t)
	folder := f.createNode(t, "alice", f.aliceHome, "docs", repo.TypeFolder)
	f.createNode(t, "alice", folder.ID, "a.txt", repo.TypeContent)
	f.createNode(t, "alice", folder.ID, "b.txt", repo.TypeContent)
	f.createNode(t, "alice", folder.ID, "sub", repo.TypeFolder)

	resp := f.do(t, "alice", http.MethodGet,
		fmt.Sprintf("/api/nodes/%s/children?maxItems=2&orderBy=name%%20ASC", folder.ID), nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var page repo.ChildPage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&page))
	require.Equal(t, 3, page.TotalItems)
	require.True(t, page.HasMoreItems)
	require.Len(t, page.Entries, 2)
	require.Equal(t, "a.txt", page.Entries[0].Name)
}

func TestListChildrenWhereFilter(t *testing.T) {
	f := newFixture(t)
	folder := f.createNode(t, "alice", f.aliceHome, "docs", repo.TypeFolder)
	f.createNode(t, "alice", folder.ID, "a.txt", repo.TypeContent)
	f.createNode(t, "alice", folder.ID, "sub", repo.TypeFolder)

	resp := f.do(t, "alice", http.MethodGet,
		fmt.Sprintf("/api/nodes/%s/children?where=%s", folder.ID, "(isFolder%3Dtrue)"), nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var page repo.ChildPage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&page))
	require.Len(t, page.Entries, 1)
	require.Equal(t, "sub", page.Entries[0].Name)
}

func TestListChildrenBadParamsAre400(t *testing.T) {
	f := newFixture(t)

	for _, query := range []string{
		"maxItems=zero",
		"skipCount=-1",
		"maxItems=0",
		"orderBy=color",
		"where=(isFolder=true%20AND%20isFile=true)",
		"where=isFolder=true",
	} {
		resp := f.do(t, "alice", http.MethodGet,
			fmt.Sprintf("/api/nodes/%s/children?%s", f.aliceHome, query), nil)
		resp.Body.Close()
		require.Equal(t, http.StatusBadRequest, resp.StatusCode, query)
	}
}

func TestDeleteRestoreAndPurge(t *testing.T) {
	f := newFixture(t)
	node := f.createNode(t, "alice", f.aliceHome, "doomed.txt", repo.TypeContent)

	// Soft delete archives.
	resp := f.do(t, "alice", http.MethodDelete, "/api/nodes/"+string(node.ID), nil)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = f.do(t, "alice", http.MethodGet, "/api/nodes/"+string(node.ID), nil)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = f.do(t, "alice", http.MethodGet, "/api/archive/"+string(node.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// Restore brings it back.
	resp = f.do(t, "alice", http.MethodPost, "/api/archive/"+string(node.ID)+"/restore", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	restored := decodeNode(t, resp)
	require.Equal(t, node.ID, restored.ID)

	// Archive then purge for good.
	resp = f.do(t, "alice", http.MethodDelete, "/api/nodes/"+string(node.ID), nil)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = f.do(t, "alice", http.MethodDelete, "/api/archive/"+string(node.ID), nil)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = f.do(t, "alice", http.MethodGet, "/api/archive/"+string(node.ID), nil)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRootDeleteIs403(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, "admin", http.MethodDelete, "/api/nodes/"+string(f.rootID), nil)
	resp.Body.Close()
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestMoveAndCopy(t *testing.T) {
	f := newFixture(t)
	src := f.createNode(t, "alice", f.aliceHome, "src", repo.TypeFolder)
	dst := f.createNode(t, "alice", f.aliceHome, "dst", repo.TypeFolder)
	file := f.createNode(t, "alice", src.ID, "doc.txt", repo.TypeContent)

	resp := f.do(t, "alice", http.MethodPost, "/api/nodes/"+string(file.ID)+"/move", map[string]any{
		"targetParentId": string(dst.ID),
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	moved := decodeNode(t, resp)
	require.Equal(t, dst.ID, moved.ParentID)
	require.Equal(t, file.ID, moved.ID)

	resp = f.do(t, "alice", http.MethodPost, "/api/nodes/"+string(file.ID)+"/copy", map[string]any{
		"targetParentId": string(src.ID),
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	copied := decodeNode(t, resp)
	require.NotEqual(t, file.ID, copied.ID)
}

func TestBatchMoveIs405(t *testing.T) {
	f := newFixture(t)
	file := f.createNode(t, "alice", f.aliceHome, "doc.txt", repo.TypeContent)

	resp := f.do(t, "alice", http.MethodPost, "/api/nodes/"+string(file.ID)+"/move",
		[]byte(`[{"targetParentId":"a"},{"targetParentId":"b"}]`))
	resp.Body.Close()
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestMoveCycleIs400(t *testing.T) {
	f := newFixture(t)
	outer := f.createNode(t, "alice", f.aliceHome, "outer", repo.TypeFolder)
	inner := f.createNode(t, "alice", outer.ID, "inner", repo.TypeFolder)

	resp := f.do(t, "alice", http.MethodPost, "/api/nodes/"+string(outer.ID)+"/move", map[string]any{
		"targetParentId": string(inner.ID),
	})
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPermissionsRoundTrip(t *testing.T) {
	f := newFixture(t)
	folder := f.createNode(t, "alice", f.aliceHome, "shared", repo.TypeFolder)

	resp := f.do(t, "alice", http.MethodPut, "/api/nodes/"+string(folder.ID)+"/permissions", map[string]any{
		"locallySet": []map[string]string{
			{"authorityId": "bob", "name": "Editor", "accessStatus": "ALLOWED"},
		},
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var set repo.PermissionSet
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&set))
	require.Len(t, set.LocallySet, 1)
	require.Equal(t, "bob", set.LocallySet[0].Authority)

	// Unknown authority is 422.
	resp = f.do(t, "alice", http.MethodPut, "/api/nodes/"+string(folder.ID)+"/permissions", map[string]any{
		"locallySet": []map[string]string{
			{"authorityId": "nobody", "name": "Editor", "accessStatus": "ALLOWED"},
		},
	})
	resp.Body.Close()
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestLockLifecycle(t *testing.T) {
	f := newFixture(t)
	file := f.createNode(t, "alice", f.aliceHome, "doc.txt", repo.TypeContent)

	resp := f.do(t, "alice", http.MethodPost, "/api/nodes/"+string(file.ID)+"/lock", map[string]any{
		"type": "FULL",
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var info repo.LockInfo
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&info))
	require.Equal(t, "alice", info.Owner)

	// Bad lock kind is 400.
	resp = f.do(t, "alice", http.MethodPost, "/api/nodes/"+string(file.ID)+"/lock", map[string]any{
		"type": "EXCLUSIVE",
	})
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.do(t, "alice", http.MethodPost, "/api/nodes/"+string(file.ID)+"/unlock", nil)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	// Unlocking again is 422.
	resp = f.do(t, "alice", http.MethodPost, "/api/nodes/"+string(file.ID)+"/unlock", nil)
	resp.Body.Close()
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestAssociations(t *testing.T) {
	f := newFixture(t)
	source := f.createNode(t, "alice", f.aliceHome, "link.txt", repo.TypeContent)
	target := f.createNode(t, "alice", f.aliceHome, "target.txt", repo.TypeContent)

	resp := f.do(t, "alice", http.MethodPost, "/api/nodes/"+string(source.ID)+"/associations", map[string]any{
		"targetId":  string(target.ID),
		"assocType": "cm:original",
	})
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = f.do(t, "alice", http.MethodGet, "/api/nodes/"+string(source.ID)+"/associations", nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var assocs []repo.Association
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&assocs))
	require.Len(t, assocs, 1)
	require.Equal(t, target.ID, assocs[0].TargetID)
}
