package service

import "errors"

// Sentinel kinds for service-level failures.
var (
	// ErrValidation means the batch was rejected by the validation
	// pipeline; the message carries every collected error.
	ErrValidation = errors.New("batch failed validation")

	// ErrNotStarted means an operation was called before Start.
	ErrNotStarted = errors.New("service not started")
)
