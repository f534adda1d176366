package ledger

import (
	"errors"

	"github.com/okian/tally/internal/domain/model"
)

// Sentinel kinds for ledger errors.
var (
	ErrReload            = errors.New("ledger reload failed")
	ErrSourceIngestion   = errors.New("source ingestion failed")
	ErrUnknownSourceKind = model.ErrUnknownSourceKind
	ErrNotReady          = errors.New("ledger has not been loaded")
	ErrEventNotFound     = errors.New("event not found")
	ErrCategoryNotFound  = errors.New("category not found")
	ErrPublishHeld       = errors.New("publishing held for unreadable event rows")
)
