package queue

import "errors"

// Sentinel kinds for enqueue failures, used by callers that need to
// map the boolean Enqueue result onto an error.
var (
	ErrQueueFull   = errors.New("queue full")
	ErrQueueClosed = errors.New("queue closed")
)
