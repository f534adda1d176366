package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/okian/tally/internal/domain/codec"
	"github.com/okian/tally/internal/domain/model"
)

// FileStore keeps every ledger's settings in one JSON array file.
type FileStore struct {
	mu    sync.Mutex
	path  string
	newIV func() (string, error)
}

var _ SettingsStore = (*FileStore)(nil)

// NewFileStore returns a store backed by path. The file is created on the
// first write.
func NewFileStore(path string, opts ...Option) *FileStore {
	s := &FileStore{path: path, newIV: codec.NewIV}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load reads all settings. Ledgers without a mapping IV get one, and the
// file is rewritten so the IV stays fixed from then on.
func (s *FileStore) Load(_ context.Context) ([]model.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.read()
	if err != nil {
		return nil, err
	}
	generated, err := s.fillIVs(all)
	if err != nil {
		return nil, err
	}
	if err := validate(all); err != nil {
		return nil, err
	}
	if generated {
		if err := s.write(all); err != nil {
			return nil, err
		}
	}
	return all, nil
}

// Get returns the settings of ledger id.
func (s *FileStore) Get(ctx context.Context, id int) (model.Settings, error) {
	all, err := s.Load(ctx)
	if err != nil {
		return model.Settings{}, err
	}
	for _, st := range all {
		if st.ID == id {
			return st, nil
		}
	}
	return model.Settings{}, fmt.Errorf("%w: %d", ErrNotFound, id)
}

// Upsert replaces the ledger with the same id or appends a new one. An
// existing mapping IV is never replaced.
func (s *FileStore) Upsert(_ context.Context, st model.Settings) (model.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.read()
	if err != nil {
		return model.Settings{}, err
	}
	idx := -1
	for i := range all {
		if all[i].ID == st.ID {
			idx = i
			break
		}
	}
	if idx >= 0 && all[idx].MappingIV != "" {
		st.MappingIV = all[idx].MappingIV
	}
	if idx >= 0 {
		all[idx] = st
	} else {
		idx = len(all)
		all = append(all, st)
	}
	if _, err := s.fillIVs(all); err != nil {
		return model.Settings{}, err
	}
	st = all[idx]
	if err := validate(all); err != nil {
		return model.Settings{}, err
	}
	if err := s.write(all); err != nil {
		return model.Settings{}, err
	}
	return st, nil
}

func (s *FileStore) fillIVs(all []model.Settings) (bool, error) {
	generated := false
	for i := range all {
		if all[i].MappingIV != "" {
			continue
		}
		iv, err := s.newIV()
		if err != nil {
			return false, fmt.Errorf("generate mapping iv: %w", err)
		}
		all[i].MappingIV = iv
		generated = true
	}
	return generated, nil
}

func (s *FileStore) read() ([]model.Settings, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}
	var all []model.Settings
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSettings, err)
	}
	return all, nil
}

// write replaces the file atomically through a temp file and rename.
func (s *FileStore) write(all []model.Settings) error {
	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".settings-*.json")
	if err != nil {
		return fmt.Errorf("create temp settings: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp settings: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace settings: %w", err)
	}
	return nil
}

func validate(all []model.Settings) error {
	seen := make(map[int]struct{}, len(all))
	for _, st := range all {
		if _, dup := seen[st.ID]; dup {
			return fmt.Errorf("%w: duplicate ledger id %d", ErrInvalidSettings, st.ID)
		}
		seen[st.ID] = struct{}{}
		if st.SpreadsheetLocator == "" {
			return fmt.Errorf("%w: ledger %d has no spreadsheet locator", ErrInvalidSettings, st.ID)
		}
		if st.OutputCapacity < 0 || st.OutputRetentionDays < 0 {
			return fmt.Errorf("%w: ledger %d has a negative output bound", ErrInvalidSettings, st.ID)
		}
		if _, err := codec.ParseIV(st.MappingIV); err != nil {
			return fmt.Errorf("%w: ledger %d: %w", ErrInvalidSettings, st.ID, err)
		}
	}
	return nil
}
