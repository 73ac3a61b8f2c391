package httpapi

import (
	"bytes"
	"io"
	"mime"
	"net/http"

	"github.com/gabriel-vasile/mimetype"
	"github.com/treelinehq/canopy/internal/logger"
	"github.com/treelinehq/canopy/pkg/content"
	"github.com/treelinehq/canopy/pkg/repo"
)

// sniffContentType resolves the (mimetype, encoding) pair for an upload.
//
// A declared Content-Type wins when present and well-formed; a malformed
// declaration is UnsupportedMediaType. Without a declaration the bytes
// are sniffed.
func sniffContentType(declared string, data []byte) (mimeType, encoding string, err error) {
	if declared != "" && declared != "application/octet-stream" {
		mediaType, params, parseErr := mime.ParseMediaType(declared)
		if parseErr != nil {
			return "", "", repo.NewError(repo.KindUnsupportedMediaType,
				"malformed content type: "+declared)
		}
		return mediaType, params["charset"], nil
	}

	detected := mimetype.Detect(data)
	mediaType, params, parseErr := mime.ParseMediaType(detected.String())
	if parseErr != nil {
		return detected.String(), "", nil
	}
	return mediaType, params["charset"], nil
}

// UploadContent handles PUT /api/nodes/{id}/content.
//
// The snapshot lands in the content store first; only then is the
// reference attached to the node. A rejected attach leaves an orphaned
// snapshot for the garbage collector rather than a node pointing at
// missing bytes.
//
// Supports ?majorVersion=true and ?comment= for versionable nodes.
func (s *Server) UploadContent(w http.ResponseWriter, r *http.Request) {
	opCtx := opContext(r)

	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, repo.NewError(repo.KindInvalidArgument, "failed to read request body"))
		return
	}

	mimeType, encoding, err := sniffContentType(r.Header.Get("Content-Type"), data)
	if err != nil {
		writeError(w, err)
		return
	}

	ref, size, err := s.contents.Put(r.Context(), bytes.NewReader(data))
	if err != nil {
		writeError(w, err)
		return
	}

	node, err := s.store.SetContent(opCtx, nodeID(r), repo.ContentUpdate{
		ContentRef: string(ref),
		Size:       size,
		MimeType:   mimeType,
		Encoding:   encoding,
		Major:      r.URL.Query().Get("majorVersion") == "true",
		Comment:    r.URL.Query().Get("comment"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, node)
}

// DownloadContent handles GET /api/nodes/{id}/content.
//
// ?versionLabel= streams the snapshot frozen by a historical version
// instead of the current content.
func (s *Server) DownloadContent(w http.ResponseWriter, r *http.Request) {
	opCtx := opContext(r)
	id := nodeID(r)

	node, err := s.store.Get(opCtx, id, repo.GetOptions{})
	if err != nil {
		writeError(w, err)
		return
	}
	if node.Content == nil {
		writeError(w, repo.NewErrorAt(repo.KindNotFound, "node has no content", string(id)))
		return
	}

	ref := node.Content.ContentRef
	mimeType := node.Content.MimeType

	if label := r.URL.Query().Get("versionLabel"); label != "" {
		records, err := s.store.Versions(opCtx, id)
		if err != nil {
			writeError(w, err)
			return
		}
		ref = ""
		for _, record := range records {
			if record.Label == label {
				ref = record.ContentRef
				break
			}
		}
		if ref == "" {
			writeError(w, repo.NewErrorAt(repo.KindNotFound, "version not found", label))
			return
		}
	}

	reader, err := s.contents.Read(r.Context(), content.ID(ref))
	if err != nil {
		writeError(w, err)
		return
	}
	defer reader.Close()

	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", mimeType)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, reader); err != nil {
		// Headers are already sent; nothing left to do but log.
		logger.Warn("Content stream for node %s aborted: %v", id, err)
	}
}
