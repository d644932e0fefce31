package local

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/miguelmontanez/bbb-roofing-business-scraper/internal/store"
)

// CheckpointStore persists the crawl checkpoint as a JSON file. Writes go
// through a temp file and rename so a crash mid-write never leaves a
// truncated checkpoint behind.
type CheckpointStore struct {
	path string
}

// NewCheckpointStore creates a file-backed checkpoint store at path.
func NewCheckpointStore(path string) (*CheckpointStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("checkpoint path is required")
	}
	return &CheckpointStore{path: path}, nil
}

// Path returns the checkpoint file location.
func (s *CheckpointStore) Path() string {
	return s.path
}

// Load reads the checkpoint file, returning store.ErrNotFound when absent.
func (s *CheckpointStore) Load(_ context.Context) (store.Checkpoint, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return store.Checkpoint{}, store.ErrNotFound
		}
		return store.Checkpoint{}, fmt.Errorf("read checkpoint: %w", err)
	}
	var cp store.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return store.Checkpoint{}, fmt.Errorf("decode checkpoint %s: %w", s.path, err)
	}
	return cp, nil
}

// Save overwrites the checkpoint file.
func (s *CheckpointStore) Save(_ context.Context, cp store.Checkpoint) error {
	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create checkpoint directory: %w", err)
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace checkpoint: %w", err)
	}
	return nil
}

// Reset removes the checkpoint file; a missing file is not an error.
func (s *CheckpointStore) Reset(_ context.Context) error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove checkpoint: %w", err)
	}
	return nil
}
