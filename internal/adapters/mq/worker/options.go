// Package worker runs the asynchronous ingest pool.
package worker

import (
	"github.com/gridstat/gridstat/pkg/logger"
)

// Option applies a configuration option to the InMemoryWorker.
type Option func(*InMemoryWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *InMemoryWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(logger logger.Logger) Option {
	return func(w *InMemoryWorker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// withSeenSet shares one duplicate-suppression set across a pool.
func withSeenSet(s *seenSet) Option {
	return func(w *InMemoryWorker) {
		if s != nil {
			w.seen = s
		}
	}
}
