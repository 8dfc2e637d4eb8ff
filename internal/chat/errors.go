package chat

import "errors"

// Error taxonomy for the messaging core. Handlers and the client library map
// these to transport-level codes; everything a store can throw is collapsed
// into ErrStoreUnavailable so callers can treat it as retryable.
var (
	// ErrInvalidOperation marks requests rejected before any store call:
	// messaging yourself, or sending empty content.
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrStoreUnavailable wraps backend query/insert/update failures.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrNotFound marks a missing conversation, project or user.
	ErrNotFound = errors.New("not found")
)
