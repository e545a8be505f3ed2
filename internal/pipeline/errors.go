package pipeline

import "errors"

var (
	// ErrInvalidInput marks an empty or blank utterance. The engine answers it
	// with a degraded output rather than returning it.
	ErrInvalidInput = errors.New("pipeline: utterance is empty")
	// ErrMissingContext is returned when HandleTurn is called without a TurnContext.
	ErrMissingContext = errors.New("pipeline: turn context is required")
)
