package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure. Unknown usernames,
	// wrong secrets and inactive identities all map to it.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthenticated indicates no usable identity could be resolved
	// from the request.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrForbidden indicates the resolved identity lacks a capability.
	ErrForbidden = errors.New("insufficient permissions")
	// ErrValidation indicates malformed input.
	ErrValidation = errors.New("validation failed")
	// ErrConflict indicates a uniqueness violation.
	ErrConflict = errors.New("already exists")
)
