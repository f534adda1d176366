package ctl

import "errors"

// ErrRequest marks a non-2xx answer from the tally API.
var ErrRequest = errors.New("request failed")
