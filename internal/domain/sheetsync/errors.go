package sheetsync

import "errors"

// Sentinel kinds for spreadsheet synchronization errors.
var (
	ErrPublish        = errors.New("publish ledger snapshot failed")
	ErrLoad           = errors.New("load ledger ranges failed")
	ErrMalformedRange = errors.New("malformed reserved range")
)
