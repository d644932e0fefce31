package progress

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/miguelmontanez/bbb-roofing-business-scraper/internal/crawler"
	"github.com/miguelmontanez/bbb-roofing-business-scraper/internal/store"
)

// Selection controls which slice of the target list a run covers.
type Selection struct {
	// Skip drops the first N targets before crawling.
	Skip int
	// Max caps how many targets the run visits after skipping.
	Max int
	// RangeStart and RangeEnd select a 1-based inclusive index range over
	// the input list. When either is set the range wins over Skip/Max.
	RangeStart int
	RangeEnd   int
	// Resume loads the checkpoint and drops already-processed targets.
	Resume bool
	// Reset archives the current output and deletes the checkpoint.
	Reset bool
	// MaxRecords caps accepted records across the whole crawl; zero means
	// uncapped.
	MaxRecords int
}

// OutputArchiver moves an existing output file aside during reset so a fresh
// run never mixes rows with stale data.
type OutputArchiver interface {
	Archive(ctx context.Context, at time.Time) (string, error)
}

// Tracker selects the working target list and owns the checkpoint. It is not
// safe for concurrent use; the crawl loop is its single owner.
type Tracker struct {
	store    store.CheckpointStore
	archiver OutputArchiver
	clock    crawler.Clock
	logger   *zap.Logger

	cp        store.Checkpoint
	processed map[string]struct{}
}

// NewTracker builds a Tracker. archiver may be nil when no output file needs
// archiving on reset.
func NewTracker(cs store.CheckpointStore, archiver OutputArchiver, clock crawler.Clock, logger *zap.Logger) *Tracker {
	if clock == nil {
		clock = wallClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		store:     cs,
		archiver:  archiver,
		clock:     clock,
		logger:    logger.Named("tracker"),
		processed: make(map[string]struct{}),
	}
}

// Prepare applies reset/resume semantics and returns the working target list
// in input order. Selection slices the input list first; the resume filter
// then removes already-processed targets, so skip counts and index ranges
// keep their meaning across runs.
func (t *Tracker) Prepare(ctx context.Context, runID string, targets []crawler.Target, sel Selection) ([]crawler.Target, error) {
	now := t.clock.Now()

	if sel.Reset {
		if t.archiver != nil {
			archived, err := t.archiver.Archive(ctx, now)
			if err != nil {
				return nil, fmt.Errorf("archive output: %w", err)
			}
			if archived != "" {
				t.logger.Info("archived previous output", zap.String("path", archived))
			}
		}
		if err := t.store.Reset(ctx); err != nil {
			return nil, fmt.Errorf("reset checkpoint: %w", err)
		}
	}

	cp := store.Checkpoint{
		RunID:      runID,
		StartedAt:  now,
		UpdatedAt:  now,
		MaxRecords: sel.MaxRecords,
	}
	if sel.Resume && !sel.Reset {
		loaded, err := t.store.Load(ctx)
		switch {
		case errors.Is(err, store.ErrNotFound):
			// Nothing to resume; fall through with a fresh checkpoint.
		case err != nil:
			return nil, fmt.Errorf("load checkpoint: %w", err)
		default:
			cp = loaded
			cp.RunID = runID
			cp.UpdatedAt = now
			if sel.MaxRecords > 0 {
				cp.MaxRecords = sel.MaxRecords
			}
		}
	}

	t.cp = cp
	t.processed = make(map[string]struct{}, len(cp.ProcessedTargets))
	for _, key := range cp.ProcessedTargets {
		t.processed[key] = struct{}{}
	}

	work := applySelection(targets, sel)
	if len(t.processed) == 0 {
		return work, nil
	}
	remaining := make([]crawler.Target, 0, len(work))
	for _, target := range work {
		if _, done := t.processed[target.Key()]; done {
			continue
		}
		remaining = append(remaining, target)
	}
	return remaining, nil
}

// MarkProcessed records a finished target (regardless of its outcome) and
// synchronously rewrites the checkpoint. Write failures are logged, not
// returned; progress durability is best effort.
func (t *Tracker) MarkProcessed(ctx context.Context, key string, acceptedDelta int) {
	if _, done := t.processed[key]; !done {
		t.processed[key] = struct{}{}
		t.cp.ProcessedTargets = append(t.cp.ProcessedTargets, key)
	}
	t.cp.TotalRecords += acceptedDelta
	t.cp.UpdatedAt = t.clock.Now()
	if err := t.store.Save(ctx, t.cp); err != nil {
		t.logger.Warn("checkpoint write failed",
			zap.String("target", key),
			zap.Error(err),
		)
	}
}

// Processed reports whether the target key is already in the checkpoint.
func (t *Tracker) Processed(key string) bool {
	_, done := t.processed[key]
	return done
}

// TotalRecords returns the cumulative accepted-record count, including
// records carried over from resumed runs.
func (t *Tracker) TotalRecords() int {
	return t.cp.TotalRecords
}

// BudgetExhausted reports whether the total-record cap has been reached.
func (t *Tracker) BudgetExhausted() bool {
	return t.cp.MaxRecords > 0 && t.cp.TotalRecords >= t.cp.MaxRecords
}

// Checkpoint returns a copy of the current checkpoint state.
func (t *Tracker) Checkpoint() store.Checkpoint {
	cp := t.cp
	cp.ProcessedTargets = append([]string(nil), t.cp.ProcessedTargets...)
	return cp
}

func applySelection(targets []crawler.Target, sel Selection) []crawler.Target {
	if sel.RangeStart > 0 || sel.RangeEnd > 0 {
		start := sel.RangeStart
		if start < 1 {
			start = 1
		}
		end := sel.RangeEnd
		if end < 1 || end > len(targets) {
			end = len(targets)
		}
		if start > len(targets) || start > end {
			return []crawler.Target{}
		}
		return append([]crawler.Target(nil), targets[start-1:end]...)
	}

	out := targets
	if sel.Skip > 0 {
		if sel.Skip >= len(out) {
			return []crawler.Target{}
		}
		out = out[sel.Skip:]
	}
	if sel.Max > 0 && sel.Max < len(out) {
		out = out[:sel.Max]
	}
	return append([]crawler.Target(nil), out...)
}

type wallClock struct{}

func (wallClock) Now() time.Time {
	return time.Now().UTC()
}
