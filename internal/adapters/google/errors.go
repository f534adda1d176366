package google

import "errors"

// Sentinel kinds for Google API errors.
var (
	ErrClient   = errors.New("google client")
	ErrResponse = errors.New("unexpected google response")
)
