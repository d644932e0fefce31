package memory

import (
	"context"
	"sync"

	"github.com/miguelmontanez/bbb-roofing-business-scraper/internal/store"
)

// CheckpointStore keeps the checkpoint in memory. Progress is lost when the
// process exits; it exists for tests and dry runs.
type CheckpointStore struct {
	mu    sync.Mutex
	cp    store.Checkpoint
	found bool
}

// NewCheckpointStore creates an empty in-memory checkpoint store.
func NewCheckpointStore() *CheckpointStore {
	return &CheckpointStore{}
}

// Load returns the stored checkpoint or store.ErrNotFound.
func (s *CheckpointStore) Load(context.Context) (store.Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.found {
		return store.Checkpoint{}, store.ErrNotFound
	}
	cp := s.cp
	cp.ProcessedTargets = append([]string(nil), s.cp.ProcessedTargets...)
	return cp, nil
}

// Save replaces the stored checkpoint.
func (s *CheckpointStore) Save(_ context.Context, cp store.Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp.ProcessedTargets = append([]string(nil), cp.ProcessedTargets...)
	s.cp = cp
	s.found = true
	return nil
}

// Reset clears the stored checkpoint.
func (s *CheckpointStore) Reset(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cp = store.Checkpoint{}
	s.found = false
	return nil
}
