package chat

import "errors"

// Error kinds surfaced by the message service. Handlers map them onto HTTP
// statuses; the polling layer only ever retries ErrStoreUnavailable.
var (
	// ErrValidation: bad input, never retried.
	ErrValidation = errors.New("validation failed")
	// ErrNotOwner: actor is not the sender of the target message.
	ErrNotOwner = errors.New("not owner")
	// ErrWindowExpired: the bounded mutation window has closed.
	ErrWindowExpired = errors.New("edit window expired")
	// ErrNotFound: referenced message or conversation is absent.
	ErrNotFound = errors.New("not found")
	// ErrStoreUnavailable: transient storage failure, eligible for retry.
	ErrStoreUnavailable = errors.New("store unavailable")
)
