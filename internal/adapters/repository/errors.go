package repository

import "errors"

// Sentinel kinds for settings errors.
var (
	ErrNotFound        = errors.New("ledger not found")
	ErrInvalidSettings = errors.New("invalid ledger settings")
)
