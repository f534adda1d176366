// Package repository persists ledger settings.
package repository

import (
	"context"

	"github.com/okian/tally/internal/domain/model"
)

// SettingsStore provides read/write access to ledger settings.
type SettingsStore interface {
	// Load returns every ledger's settings, generating missing IVs.
	Load(ctx context.Context) ([]model.Settings, error)
	// Get returns the settings of one ledger.
	// Returns ErrNotFound if the ledger is unknown.
	Get(ctx context.Context, id int) (model.Settings, error)
	// Upsert stores the settings of one ledger and returns what was stored.
	Upsert(ctx context.Context, s model.Settings) (model.Settings, error)
}
