package transport

import "errors"

var (
	// ErrNotFound means the referenced message (or emoji) no longer exists.
	ErrNotFound = errors.New("transport: not found")
	// ErrForbidden means the platform rejected the call for lack of rights.
	ErrForbidden = errors.New("transport: forbidden")
	// ErrBadReference means a reply target was rejected.
	ErrBadReference = errors.New("transport: invalid reply reference")
	// ErrUnsupported means the transport cannot perform the operation.
	ErrUnsupported = errors.New("transport: unsupported")
)
