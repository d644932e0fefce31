package worker

import (
	"time"

	"github.com/google/uuid"

	"github.com/miguelmontanez/bbb-roofing-business-scraper/internal/crawler"
	"github.com/miguelmontanez/bbb-roofing-business-scraper/internal/progress"
)

// Observer translates orchestrator milestones into progress events. Emit
// never blocks, which keeps the pipeline free of sink backpressure.
type Observer struct {
	runID   [16]byte
	emitter progress.Emitter
	clock   crawler.Clock
}

// NewObserver builds an Observer bound to one run.
func NewObserver(runID uuid.UUID, emitter progress.Emitter, clock crawler.Clock) *Observer {
	return &Observer{
		runID:   progress.UUIDToBytes(runID),
		emitter: emitter,
		clock:   clock,
	}
}

// PageDone reports a parsed search page.
func (o *Observer) PageDone(target crawler.Target, page, totalPages, found int, dur time.Duration) {
	if o.emitter == nil {
		return
	}
	o.emitter.Emit(progress.Event{
		RunID:      o.runID,
		TS:         o.clock.Now(),
		Stage:      progress.StagePageDone,
		Target:     target.Key(),
		Page:       page,
		TotalPages: totalPages,
		Found:      int64(found),
		Dur:        dur,
	})
}

// RecordResolved reports the terminal state of one scraped record.
func (o *Observer) RecordResolved(target crawler.Target, name string, outcome crawler.RecordOutcome, note string) {
	if o.emitter == nil {
		return
	}
	o.emitter.Emit(progress.Event{
		RunID:    o.runID,
		TS:       o.clock.Now(),
		Stage:    progress.StageRecord,
		Target:   target.Key(),
		Business: name,
		Outcome:  progress.Outcome(outcome),
		Note:     note,
	})
}
