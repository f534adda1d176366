package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrUnknownLedger = errors.New("unknown ledger")
	ErrTimeout       = errors.New("operation timed out")
	ErrNotStarted    = errors.New("service not started")
)
