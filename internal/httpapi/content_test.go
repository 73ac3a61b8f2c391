package httpapi_test

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/treelinehq/canopy/pkg/rendition"
	"github.com/treelinehq/canopy/pkg/repo"
)

// createVersionedFile creates a file carrying cm:versionable.
func (f *fixture) createVersionedFile(t *testing.T, user string, parent repo.NodeID, name string) *repo.Node {
	t.Helper()
	resp := f.do(t, user, http.MethodPost, fmt.Sprintf("/api/nodes/%s/children", parent), map[string]any{
		"name":        name,
		"nodeType":    "cm:content",
		"aspectNames": []string{"cm:versionable"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decodeNode(t, resp)
}

func (f *fixture) upload(t *testing.T, user string, id repo.NodeID, body, query string) *repo.Node {
	t.Helper()
	resp := f.do(t, user, http.MethodPut, "/api/nodes/"+string(id)+"/content"+query, body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return decodeNode(t, resp)
}

func TestUploadAndDownload(t *testing.T) {
	f := newFixture(t)
	file := f.createNode(t, "alice", f.aliceHome, "notes.txt", repo.TypeContent)

	node := f.upload(t, "alice", file.ID, "hello repository", "")
	require.NotNil(t, node.Content)
	require.Equal(t, int64(16), node.Content.Size)
	// Sniffed from the bytes: plain text.
	require.Equal(t, "text/plain", node.Content.MimeType)

	resp := f.do(t, "alice", http.MethodGet, "/api/nodes/"+string(file.ID)+"/content", nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/plain", resp.Header.Get("Content-Type"))
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, "hello repository", string(data))
}

func TestDownloadWithoutContentIs404(t *testing.T) {
	f := newFixture(t)
	file := f.createNode(t, "alice", f.aliceHome, "empty.txt", repo.TypeContent)

	resp := f.do(t, "alice", http.MethodGet, "/api/nodes/"+string(file.ID)+"/content", nil)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUploadToFolderIs400(t *testing.T) {
	f := newFixture(t)
	folder := f.createNode(t, "alice", f.aliceHome, "docs", repo.TypeFolder)

	resp := f.do(t, "alice", http.MethodPut, "/api/nodes/"+string(folder.ID)+"/content", "data")
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUploadVersioning(t *testing.T) {
	f := newFixture(t)
	file := f.createVersionedFile(t, "alice", f.aliceHome, "versioned.txt")

	first := f.upload(t, "alice", file.ID, "v1", "")
	require.Equal(t, "1.0", first.VersionLabel)

	minor := f.upload(t, "alice", file.ID, "v1.1", "")
	require.Equal(t, "1.1", minor.VersionLabel)

	major := f.upload(t, "alice", file.ID, "v2", "?majorVersion=true&comment=release")
	require.Equal(t, "2.0", major.VersionLabel)

	// Version ledger comes back newest first.
	resp := f.do(t, "alice", http.MethodGet, "/api/nodes/"+string(file.ID)+"/versions", nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Entries []repo.VersionRecord `json:"entries"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Entries, 3)
	require.Equal(t, "2.0", body.Entries[0].Label)
	require.Equal(t, "release", body.Entries[0].Comment)

	// Historical download by label.
	resp = f.do(t, "alice", http.MethodGet,
		"/api/nodes/"+string(file.ID)+"/content?versionLabel=1.0", nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, "v1", string(data))
}

func TestDeleteVersion(t *testing.T) {
	f := newFixture(t)
	file := f.createVersionedFile(t, "alice", f.aliceHome, "versioned.txt")
	f.upload(t, "alice", file.ID, "v1", "")
	f.upload(t, "alice", file.ID, "v1.1", "")

	resp := f.do(t, "alice", http.MethodDelete,
		"/api/nodes/"+string(file.ID)+"/versions/1.0", nil)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	// The only remaining version cannot be deleted.
	resp = f.do(t, "alice", http.MethodDelete,
		"/api/nodes/"+string(file.ID)+"/versions/1.1", nil)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Unknown label is 404.
	resp = f.do(t, "alice", http.MethodDelete,
		"/api/nodes/"+string(file.ID)+"/versions/9.9", nil)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestLockedUploadIs409(t *testing.T) {
	f := newFixture(t)
	file := f.createNode(t, "alice", f.aliceHome, "doc.txt", repo.TypeContent)
	f.upload(t, "alice", file.ID, "original", "")

	// Share with bob, then lock as alice.
	resp := f.do(t, "alice", http.MethodPut, "/api/nodes/"+string(file.ID)+"/permissions", map[string]any{
		"locallySet": []map[string]string{
			{"authorityId": "bob", "name": "Editor", "accessStatus": "ALLOWED"},
		},
	})
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = f.do(t, "alice", http.MethodPost, "/api/nodes/"+string(file.ID)+"/lock", map[string]any{})
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = f.do(t, "bob", http.MethodPut, "/api/nodes/"+string(file.ID)+"/content", "overwrite")
	resp.Body.Close()
	require.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestRenditionLifecycle(t *testing.T) {
	f := newFixture(t)
	file := f.createNode(t, "alice", f.aliceHome, "doc.txt", repo.TypeContent)
	f.upload(t, "alice", file.ID, "render me", "")

	resp := f.do(t, "alice", http.MethodPost, "/api/nodes/"+string(file.ID)+"/renditions", map[string]any{
		"id": "pdf",
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var job rendition.Job
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&job))
	require.NotEmpty(t, job.ID)

	// Poll until the pass-through renderer settles.
	require.Eventually(t, func() bool {
		resp := f.do(t, "alice", http.MethodGet, "/api/nodes/"+string(file.ID)+"/renditions/pdf", nil)
		defer resp.Body.Close()
		var polled rendition.Job
		if err := json.NewDecoder(resp.Body).Decode(&polled); err != nil {
			return false
		}
		return polled.Status == rendition.StatusCreated
	}, 5*time.Second, 10*time.Millisecond)

	resp = f.do(t, "alice", http.MethodDelete, "/api/nodes/"+string(file.ID)+"/renditions/pdf", nil)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	// After deletion the poll endpoint reports NOT_CREATED, not 404.
	resp = f.do(t, "alice", http.MethodGet, "/api/nodes/"+string(file.ID)+"/renditions/pdf", nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var gone rendition.Job
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&gone))
	require.Equal(t, rendition.StatusNotCreated, gone.Status)
}

func TestRenditionWithoutContentIs400(t *testing.T) {
	f := newFixture(t)
	file := f.createNode(t, "alice", f.aliceHome, "empty.txt", repo.TypeContent)

	resp := f.do(t, "alice", http.MethodPost, "/api/nodes/"+string(file.ID)+"/renditions", map[string]any{
		"id": "pdf",
	})
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
