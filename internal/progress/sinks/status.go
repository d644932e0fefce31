package sinks

import (
	"context"
	"sync"
	"time"

	"github.com/miguelmontanez/bbb-roofing-business-scraper/internal/progress"
)

// RunStatus is a point-in-time snapshot of the current run.
type RunStatus struct {
	RunID            string     `json:"run_id,omitempty"`
	Running          bool       `json:"running"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	FinishedAt       *time.Time `json:"finished_at,omitempty"`
	CurrentTarget    string     `json:"current_target,omitempty"`
	TargetsDone      int64      `json:"targets_done"`
	TargetsFailed    int64      `json:"targets_failed"`
	PagesFetched     int64      `json:"pages_fetched"`
	RecordsFound     int64      `json:"records_found"`
	RecordsAccepted  int64      `json:"records_accepted"`
	RecordsRejected  int64      `json:"records_rejected"`
	RecordsDuplicate int64      `json:"records_duplicate"`
	// TotalRecords is the checkpoint's cumulative count, including records
	// carried over from resumed runs. Set when the run finishes.
	TotalRecords int64     `json:"total_records,omitempty"`
	LastError    string    `json:"last_error,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TargetStatus summarizes one target's progress within the run.
type TargetStatus struct {
	Target     string     `json:"target"`
	Status     string     `json:"status"`
	Pages      int        `json:"pages"`
	Found      int64      `json:"found"`
	Accepted   int64      `json:"accepted"`
	DurationMS int64      `json:"duration_ms"`
	Error      string     `json:"error,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// StatusSink folds the event stream into an in-memory view of the run for
// the HTTP status endpoints. Unlike the tracker it is safe for concurrent
// reads while the crawl is running.
type StatusSink struct {
	mu      sync.RWMutex
	run     RunStatus
	targets []*TargetStatus
	byKey   map[string]*TargetStatus
}

// NewStatusSink returns an empty status view.
func NewStatusSink() *StatusSink {
	return &StatusSink{
		byKey: make(map[string]*TargetStatus),
	}
}

// Consume folds a batch of events into the view.
func (s *StatusSink) Consume(_ context.Context, batch []progress.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, evt := range batch {
		s.apply(evt)
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *StatusSink) Close(context.Context) error {
	return nil
}

// Snapshot returns a copy of the run view.
func (s *StatusSink) Snapshot() RunStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.run
}

// Targets returns per-target summaries in start order.
func (s *StatusSink) Targets() []TargetStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]TargetStatus, 0, len(s.targets))
	for _, t := range s.targets {
		out = append(out, *t)
	}
	return out
}

func (s *StatusSink) apply(evt progress.Event) {
	s.run.UpdatedAt = evt.TS
	switch evt.Stage {
	case progress.StageRunStart:
		ts := evt.TS
		s.run = RunStatus{
			RunID:     evt.RunUUID().String(),
			Running:   true,
			StartedAt: &ts,
			UpdatedAt: ts,
		}
		s.targets = nil
		s.byKey = make(map[string]*TargetStatus)
	case progress.StageRunDone, progress.StageRunError:
		ts := evt.TS
		s.run.Running = false
		s.run.FinishedAt = &ts
		s.run.CurrentTarget = ""
		s.run.TotalRecords = evt.Accepted
		if evt.Stage == progress.StageRunError && evt.Note != "" {
			s.run.LastError = evt.Note
		}
	case progress.StageTargetStart:
		s.run.CurrentTarget = evt.Target
		t := s.target(evt.Target)
		t.Status = "running"
	case progress.StageTargetDone, progress.StageTargetError:
		ts := evt.TS
		t := s.target(evt.Target)
		t.Found = evt.Found
		t.Accepted = evt.Accepted
		t.DurationMS = evt.Dur.Milliseconds()
		t.FinishedAt = &ts
		if evt.Stage == progress.StageTargetError {
			t.Status = "failed"
			t.Error = evt.Note
			s.run.TargetsFailed++
			if evt.Note != "" {
				s.run.LastError = evt.Note
			}
		} else {
			t.Status = "done"
			s.run.TargetsDone++
		}
		if s.run.CurrentTarget == evt.Target {
			s.run.CurrentTarget = ""
		}
	case progress.StagePageDone:
		s.run.PagesFetched++
		s.run.RecordsFound += evt.Found
		t := s.target(evt.Target)
		if evt.Page > t.Pages {
			t.Pages = evt.Page
		}
	case progress.StageRecord:
		switch evt.Outcome {
		case progress.OutcomeAccepted:
			s.run.RecordsAccepted++
		case progress.OutcomeRejected:
			s.run.RecordsRejected++
		case progress.OutcomeDuplicate:
			s.run.RecordsDuplicate++
		}
	}
}

func (s *StatusSink) target(key string) *TargetStatus {
	if t, ok := s.byKey[key]; ok {
		return t
	}
	t := &TargetStatus{Target: key, Status: "running"}
	s.byKey[key] = t
	s.targets = append(s.targets, t)
	return t
}
