package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageRunStart    Stage = "RUN_START"
	StageRunDone     Stage = "RUN_DONE"
	StageRunError    Stage = "RUN_ERROR"
	StageTargetStart Stage = "TARGET_START"
	StageTargetDone  Stage = "TARGET_DONE"
	StageTargetError Stage = "TARGET_ERROR"
	StagePageDone    Stage = "PAGE_DONE"
	StageRecord      Stage = "RECORD"
)

// Outcome classifies what happened to a single scraped record.
type Outcome string

// Supported record outcomes.
const (
	OutcomeAccepted  Outcome = "accepted"
	OutcomeRejected  Outcome = "rejected"
	OutcomeDuplicate Outcome = "duplicate"
)

// Event captures a single milestone of crawl progress.
type Event struct {
	// RunID uniquely identifies a crawl run using the 16-byte UUID form.
	RunID [16]byte
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which lifecycle milestone occurred.
	Stage Stage
	// Target is the display string of the city being crawled, e.g.
	// "Chicago, IL". Required for target, page, and record stages.
	Target string
	// Page is the 1-based search page number for PAGE_DONE events.
	Page int
	// TotalPages carries the pagination total reported by the page.
	TotalPages int
	// Business is the record's business name for RECORD events.
	Business string
	// Outcome classifies RECORD events.
	Outcome Outcome
	// Found counts raw records seen (per page or per target).
	Found int64
	// Accepted counts records persisted (per target or per run).
	Accepted int64
	// Dur captures execution latency for pages, targets, and runs.
	Dur time.Duration
	// Note lets emitters attach low-volume debug context (e.g. error text).
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == [16]byte{} {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageRunDone, StageRunError:
	case StageTargetStart, StageTargetDone, StageTargetError:
		if e.Target == "" {
			return errors.New("target stage requires target")
		}
	case StagePageDone:
		if e.Target == "" {
			return errors.New("page done requires target")
		}
		if e.Page < 1 {
			return errors.New("page done requires a 1-based page number")
		}
	case StageRecord:
		if e.Target == "" {
			return errors.New("record requires target")
		}
		if e.Business == "" {
			return errors.New("record requires business name")
		}
		switch e.Outcome {
		case OutcomeAccepted, OutcomeRejected, OutcomeDuplicate:
		default:
			return fmt.Errorf("unknown record outcome %q", e.Outcome)
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// RunUUID converts the binary run ID to uuid.UUID for external consumers.
func (e Event) RunUUID() uuid.UUID {
	return uuid.UUID(e.RunID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}
