// Package apperr defines the error taxonomy shared across the service.
//
// Callers classify failures with errors.Is against these sentinels; the HTTP
// layer maps them to status codes. Packages wrap them with %w to add detail.
package apperr

import "errors"

var (
	// ErrInvalidArgument indicates malformed or missing required input, such
	// as a bad project identifier or a missing name. Never retried.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFound indicates the referenced project does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState indicates operation preconditions are unmet, such as
	// requesting audio before any text has been generated.
	ErrInvalidState = errors.New("invalid state")

	// ErrDuplicateKey indicates a store-level uniqueness violation on create.
	// Treated as an internal error: generated identifiers should never collide.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrProviderFailure indicates a live generation or speech call failed.
	// Only surfaced in strict generation mode; the default policy absorbs it.
	ErrProviderFailure = errors.New("provider failure")

	// ErrStoreUnavailable indicates the persistence layer cannot make
	// progress. Always surfaced; retries belong to the caller.
	ErrStoreUnavailable = errors.New("store unavailable")
)
