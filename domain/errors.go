package domain

import "errors"

// Error kinds. Handlers keep the distinction internally and collapse to a
// single opaque failure at the transport boundary.
var (
	// ErrValidation marks a malformed or incomplete inbound payload.
	ErrValidation = errors.New("invalid-request")

	// ErrNotFound marks a missing presence or membership record. Cleanup
	// paths treat it as a no-op, read-dependent paths as a hard failure.
	ErrNotFound = errors.New("not-found")

	// ErrTransient marks a registry, queue or push infrastructure failure
	// that happened before any side effect was applied.
	ErrTransient = errors.New("transient-infra")

	// ErrNonRetryable marks a failure that happened after a side effect was
	// already applied (mid fan-out, post-persist). Callers must not retry.
	ErrNonRetryable = errors.New("non-retryable")

	// ErrGone means the remote end of a push channel is closed. It is an
	// expected condition, never surfaced as a delivery failure.
	ErrGone = errors.New("connection-gone")
)

var (
	ErrBlankSketch            = errors.New("blank-sketch")
	ErrInsufficientVocabulary = errors.New("insufficient-vocabulary")
)
