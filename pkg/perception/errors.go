package perception

import "errors"

// Sentinel errors for common conditions.
var (
	// ErrTimeout is returned when the inference service does not reply
	// within the round-trip budget. The request socket has been reset.
	ErrTimeout = errors.New("perception: request timed out")

	// ErrClosed is returned when the client has been closed.
	ErrClosed = errors.New("perception: client closed")
)
