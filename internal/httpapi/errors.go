package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/treelinehq/canopy/internal/logger"
	"github.com/treelinehq/canopy/pkg/content"
	"github.com/treelinehq/canopy/pkg/repo"
)

// errorBody is the wire shape of every error response.
type errorBody struct {
	Error struct {
		Kind    string `json:"errorKey"`
		Message string `json:"briefSummary"`
		Status  int    `json:"statusCode"`
	} `json:"error"`
}

// statusFor maps the repository error taxonomy to HTTP status codes.
func statusFor(kind repo.ErrorKind) int {
	switch kind {
	case repo.KindNotFound:
		return http.StatusNotFound
	case repo.KindPermissionDenied:
		return http.StatusForbidden
	case repo.KindConflict:
		return http.StatusConflict
	case repo.KindInvalidArgument:
		return http.StatusBadRequest
	case repo.KindUnprocessableEntity:
		return http.StatusUnprocessableEntity
	case repo.KindMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case repo.KindPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case repo.KindUnsupportedMediaType:
		return http.StatusUnsupportedMediaType
	default:
		return http.StatusInternalServerError
	}
}

// writeError translates any error into its wire representation.
//
// Repository errors carry their kind; content store sentinels map to 404
// and 413. Everything else is an opaque 500 with the detail logged, not
// leaked.
func writeError(w http.ResponseWriter, err error) {
	var body errorBody

	if kind, ok := repo.KindOf(err); ok {
		body.Error.Kind = kind.String()
		body.Error.Message = err.Error()
		body.Error.Status = statusFor(kind)
	} else if errors.Is(err, content.ErrNotFound) {
		body.Error.Kind = repo.KindNotFound.String()
		body.Error.Message = err.Error()
		body.Error.Status = http.StatusNotFound
	} else if errors.Is(err, content.ErrTooLarge) {
		body.Error.Kind = repo.KindPayloadTooLarge.String()
		body.Error.Message = err.Error()
		body.Error.Status = http.StatusRequestEntityTooLarge
	} else {
		logger.Error("Internal error serving request: %v", err)
		body.Error.Kind = "Internal"
		body.Error.Message = "internal server error"
		body.Error.Status = http.StatusInternalServerError
	}

	writeJSON(w, body.Error.Status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("Failed to encode response body: %v", err)
	}
}
