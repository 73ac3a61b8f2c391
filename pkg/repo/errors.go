package repo

import "errors"

// Error represents a domain error from repository operations.
//
// These are business logic errors (node not found, permission denied,
// name collision, etc.) as opposed to infrastructure errors (disk error,
// network failure). Protocol adapters translate Error kinds to their wire
// representation (e.g., HTTP status codes, CMIS fault types).
type Error struct {
	// Kind is the error category
	Kind ErrorKind

	// Message is a human-readable error description
	Message string

	// Path is the repository path or node id related to the error, when known.
	// This helps with debugging and error reporting.
	Path string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Path != "" {
		return e.Message + ": " + e.Path
	}
	return e.Message
}

// ErrorKind represents the category of a repository error.
//
// These are generic error categories that map onto protocol-specific
// errors. The REST adapter maps them to HTTP status codes:
//
//	NotFound             -> 404
//	PermissionDenied     -> 403
//	Conflict             -> 409
//	InvalidArgument      -> 400
//	UnprocessableEntity  -> 422
//	MethodNotAllowed     -> 405
//	PayloadTooLarge      -> 413
//	UnsupportedMediaType -> 415
type ErrorKind int

const (
	// KindNotFound indicates the requested node, version, rendition or
	// tenant doesn't exist (or has already been archived/purged).
	KindNotFound ErrorKind = iota

	// KindPermissionDenied indicates the principal is authenticated but not
	// authorized for the action. Also used for the fatal, non-overridable
	// rejections on protected nodes (repository root, "Sites", "Data
	// Dictionary"), which no permission grant can bypass.
	KindPermissionDenied

	// KindConflict indicates a name collision, a mutation attempt on a
	// locked node, or a lock already held by another principal.
	KindConflict

	// KindInvalidArgument indicates malformed input: reserved characters in
	// a name, a bad enum value for lock kind/lifetime, negative pagination
	// bounds, a contradictory filter predicate, a cyclical move target, or
	// the wrong node kind for an operation (e.g., locking a folder).
	KindInvalidArgument

	// KindUnprocessableEntity indicates semantically invalid input that is
	// syntactically well-formed: duplicate permission tuples, an unknown
	// authority or permission name, copying a structural site node,
	// unlocking a node that holds no lock.
	KindUnprocessableEntity

	// KindMethodNotAllowed indicates an unsupported operation shape, such
	// as multi-destination batch move/copy requests.
	KindMethodNotAllowed

	// KindPayloadTooLarge indicates content exceeding the configured size
	// ceiling.
	KindPayloadTooLarge

	// KindUnsupportedMediaType indicates a malformed or unsupported content
	// type at the boundary.
	KindUnsupportedMediaType
)

// String returns the canonical name of the error kind.
func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "NotFound"
	case KindPermissionDenied:
		return "PermissionDenied"
	case KindConflict:
		return "Conflict"
	case KindInvalidArgument:
		return "InvalidArgument"
	case KindUnprocessableEntity:
		return "UnprocessableEntity"
	case KindMethodNotAllowed:
		return "MethodNotAllowed"
	case KindPayloadTooLarge:
		return "PayloadTooLarge"
	case KindUnsupportedMediaType:
		return "UnsupportedMediaType"
	default:
		return "Unknown"
	}
}

// NewError builds a repository error with the given kind and message.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// NewErrorAt builds a repository error carrying the related path or node id.
func NewErrorAt(kind ErrorKind, message, path string) *Error {
	return &Error{Kind: kind, Message: message, Path: path}
}

// KindOf extracts the ErrorKind from err. The second return is false when
// err is not a repository error (infrastructure errors, context errors).
func KindOf(err error) (ErrorKind, bool) {
	var repoErr *Error
	if errors.As(err, &repoErr) {
		return repoErr.Kind, true
	}
	return 0, false
}

// IsKind reports whether err is a repository error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
