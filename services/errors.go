package services

import "errors"

// Error kinds surfaced by the room lifecycle operations. Handlers map these
// to HTTP statuses; everything else is treated as an internal failure.
var (
	// ErrInvalidArgument: malformed or missing input, the caller must fix
	// the request before retrying.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotFound: room or participant absent, or the room is in a state
	// that makes it unjoinable.
	ErrNotFound = errors.New("not found")
	// ErrPermissionDenied: a non-host attempted a host-only action.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrFailedPrecondition: the room exists but is in the wrong lifecycle
	// state for the requested transition.
	ErrFailedPrecondition = errors.New("failed precondition")
	// ErrResourceExhausted: the code generation retry budget ran out.
	ErrResourceExhausted = errors.New("resource exhausted")
	// ErrUnavailable: the room store could not be reached; safe to retry
	// with backoff.
	ErrUnavailable = errors.New("store unavailable")
)
