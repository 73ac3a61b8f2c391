package content

import "errors"

// Standard content store errors. Implementations wrap these with context;
// callers test with errors.Is. The REST adapter maps ErrNotFound to 404
// and ErrTooLarge to 413.
var (
	// ErrNotFound indicates the requested snapshot does not exist.
	ErrNotFound = errors.New("content not found")

	// ErrTooLarge indicates an upload exceeding the configured size
	// ceiling. The store keeps nothing of the rejected upload.
	ErrTooLarge = errors.New("content too large")
)
