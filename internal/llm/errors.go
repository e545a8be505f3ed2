package llm

import "errors"

var (
	// ErrUnavailable is returned when no adapter is configured.
	ErrUnavailable = errors.New("llm: no adapter configured")
	// ErrTimeout is returned when a call exceeds its time budget.
	ErrTimeout = errors.New("llm: adapter call timed out")
	// ErrFailure wraps any other backend error.
	ErrFailure = errors.New("llm: adapter call failed")
)
