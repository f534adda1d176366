package model

import "errors"

// Sentinel kinds for model parsing errors.
var (
	ErrUnknownSourceKind = errors.New("unknown source kind")
	ErrUnknownAttribute  = errors.New("unknown member attribute")
	ErrInvalidDate       = errors.New("invalid date")
)
