package queue

import "github.com/okian/tally/internal/domain/dedupe"

// Option applies a configuration option to the InMemoryQueue.
type Option func(*InMemoryQueue)

// WithCapacity sets the maximum capacity of the queue.
func WithCapacity(capacity int) Option {
	return func(q *InMemoryQueue) {
		if capacity > 0 {
			q.capacity = capacity
		}
	}
}

// WithDeduper refuses a job while another job with the same key is
// pending or running. Workers release the key through Release.
func WithDeduper(d dedupe.Deduper) Option {
	return func(q *InMemoryQueue) {
		q.pending = d
	}
}
