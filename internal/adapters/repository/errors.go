package repository

import "errors"

// Sentinel kinds for store errors. These allow errors.Is from callers.
var (
	// ErrNotFound means no version was ever committed for the key.
	// Distinct from an empty batch: callers treat it as "no data yet".
	ErrNotFound = errors.New("no committed version for key")

	// ErrConflict means the commit lost a sequence race or duplicated a
	// previous submission. Retryable after re-reading the latest seq.
	ErrConflict = errors.New("commit sequence conflict")

	// ErrTimeout means the per-key commit lock or a caller deadline was
	// exceeded. Retryable.
	ErrTimeout = errors.New("operation timed out")

	// ErrInvalidRecord means a record failed the store's final-gate
	// invariant checks. The caller must fix and resubmit.
	ErrInvalidRecord = errors.New("invalid stat record")

	// ErrInvalidKey means the week key or category is malformed.
	ErrInvalidKey = errors.New("invalid week key or category")
)
