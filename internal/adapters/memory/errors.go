package memory

import "errors"

// Sentinel kinds for in-memory collaborator errors.
var (
	ErrNotFound = errors.New("document not found")
)
