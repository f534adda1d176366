package audit

import "errors"

// Sentinel kinds for audit sink errors.
var (
	ErrSinkUnavailable = errors.New("audit sink unavailable")
	ErrInvalidPolicy   = errors.New("invalid audit policy")
)
