// Package store declares interfaces for persisting crawl progress.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound signals that no checkpoint exists for this crawl yet.
var ErrNotFound = errors.New("checkpoint not found")

// Checkpoint captures how far a crawl has progressed through its target
// list. It is written after every completed target so an interrupted run
// can resume without revisiting finished cities.
type Checkpoint struct {
	// RunID identifies the run that last touched the checkpoint.
	RunID string `json:"run_id"`
	// StartedAt is when the first run against this target list began.
	// Resumed runs keep the original value.
	StartedAt time.Time `json:"started_at"`
	// UpdatedAt is bumped on every save.
	UpdatedAt time.Time `json:"updated_at"`
	// TotalRecords counts rows written to the output across all runs.
	TotalRecords int `json:"total_records"`
	// MaxRecords is the total-record cap the run was started with, zero
	// when uncapped. Kept so a resumed run honors the original budget.
	MaxRecords int `json:"max_records,omitempty"`
	// ProcessedTargets holds the display strings of completed targets in
	// the order they finished. Membership checks belong to the caller.
	ProcessedTargets []string `json:"processed_targets"`
}

// Processed reports whether the target key has already been completed.
func (c Checkpoint) Processed(key string) bool {
	for _, done := range c.ProcessedTargets {
		if done == key {
			return true
		}
	}
	return false
}

// CheckpointStore persists the crawl checkpoint.
type CheckpointStore interface {
	// Load returns the stored checkpoint or ErrNotFound.
	Load(ctx context.Context) (Checkpoint, error)
	// Save replaces the stored checkpoint.
	Save(ctx context.Context, cp Checkpoint) error
	// Reset removes the stored checkpoint. Resetting an absent
	// checkpoint is not an error.
	Reset(ctx context.Context) error
}
