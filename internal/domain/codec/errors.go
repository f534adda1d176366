package codec

import "errors"

// Sentinel kinds for codec errors.
var (
	ErrDecode      = errors.New("mapping token unreadable")
	ErrInvalidIV   = errors.New("invalid mapping iv")
	ErrEmptySecret = errors.New("mapping secret is empty")
)
