package ctl

import (
	"context"

	"github.com/okian/tally/internal/adapters/repository"
	"github.com/okian/tally/internal/domain/model"
)

// InitSettings adds or replaces s in the settings file at path. A mapping
// IV is generated when s has none.
func InitSettings(ctx context.Context, path string, s model.Settings) (model.Settings, error) {
	return repository.NewFileStore(path).Upsert(ctx, s)
}
