package apperr

import "errors"

// Shared error taxonomy - matched with errors.Is across all layers.
var (
	// ErrNotFound indicates the document or message does not exist or
	// belongs to another owner; callers cannot tell the two apart.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a record with the same storage key already exists.
	ErrConflict = errors.New("already exists")

	// ErrUnauthorized indicates the caller could not be identified.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidInput indicates request validation failed.
	ErrInvalidInput = errors.New("invalid input")

	// ErrPolicyExceeded indicates a document violates the caller's plan limits.
	ErrPolicyExceeded = errors.New("plan policy exceeded")

	// ErrUpstream indicates a fetch, parse, embedding or completion failure.
	ErrUpstream = errors.New("upstream failure")
)
