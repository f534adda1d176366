package queue

import "errors"

// Sentinel kinds for queue errors.
var (
	ErrClosed  = errors.New("queue closed")
	ErrFull    = errors.New("queue full")
	ErrPending = errors.New("job already pending")
)
