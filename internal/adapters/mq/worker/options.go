package worker

import (
	"time"

	"github.com/okian/tally/pkg/logger"
)

// Option configures an InMemoryWorker. Pool passes its options to every
// worker it creates.
type Option func(*InMemoryWorker)

// WithName names the worker in logs. Empty names are ignored.
func WithName(name string) Option {
	return func(w *InMemoryWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger replaces the worker's logger.
func WithLogger(log logger.Logger) Option {
	return func(w *InMemoryWorker) {
		if log != nil {
			w.logger = log
		}
	}
}

// WithJobTimeout cancels a job's context after d. Zero leaves jobs unbounded.
func WithJobTimeout(d time.Duration) Option {
	return func(w *InMemoryWorker) {
		if d > 0 {
			w.jobTimeout = d
		}
	}
}
