package progress

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/miguelmontanez/bbb-roofing-business-scraper/internal/crawler"
	"github.com/miguelmontanez/bbb-roofing-business-scraper/internal/store"
)

type memCheckpointStore struct {
	cp      store.Checkpoint
	found   bool
	saveErr error
	saves   int
	resets  int
}

func (m *memCheckpointStore) Load(context.Context) (store.Checkpoint, error) {
	if !m.found {
		return store.Checkpoint{}, store.ErrNotFound
	}
	return m.cp, nil
}

func (m *memCheckpointStore) Save(_ context.Context, cp store.Checkpoint) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.cp = cp
	m.found = true
	m.saves++
	return nil
}

func (m *memCheckpointStore) Reset(context.Context) error {
	m.cp = store.Checkpoint{}
	m.found = false
	m.resets++
	return nil
}

type fakeArchiver struct {
	calls int
	path  string
	err   error
}

func (f *fakeArchiver) Archive(_ context.Context, _ time.Time) (string, error) {
	f.calls++
	return f.path, f.err
}

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time {
	return c.now
}

func makeTargets(t *testing.T, displays ...string) []crawler.Target {
	t.Helper()
	targets := make([]crawler.Target, 0, len(displays))
	for _, d := range displays {
		target, ok := crawler.ParseTarget(d)
		require.True(t, ok, "parse %q", d)
		targets = append(targets, target)
	}
	return targets
}

func TestPrepareFreshRun(t *testing.T) {
	t.Parallel()

	cs := &memCheckpointStore{}
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tracker := NewTracker(cs, nil, fixedClock{now: now}, nil)

	targets := makeTargets(t, "Chicago, IL", "Aurora, IL", "Rockford, IL")
	work, err := tracker.Prepare(context.Background(), "run-1", targets, Selection{MaxRecords: 100})
	require.NoError(t, err)
	require.Len(t, work, 3)

	cp := tracker.Checkpoint()
	require.Equal(t, "run-1", cp.RunID)
	require.Equal(t, now, cp.StartedAt)
	require.Equal(t, 100, cp.MaxRecords)
	require.Zero(t, cp.TotalRecords)
	require.Empty(t, cp.ProcessedTargets)
}

func TestPrepareSkipAndMax(t *testing.T) {
	t.Parallel()

	tracker := NewTracker(&memCheckpointStore{}, nil, fixedClock{now: time.Now()}, nil)
	targets := makeTargets(t, "A, IL", "B, IL", "C, IL", "D, IL", "E, IL")

	work, err := tracker.Prepare(context.Background(), "run-1", targets, Selection{Skip: 1, Max: 2})
	require.NoError(t, err)
	require.Len(t, work, 2)
	require.Equal(t, "B, IL", work[0].Key())
	require.Equal(t, "C, IL", work[1].Key())
}

func TestPrepareSkipPastEnd(t *testing.T) {
	t.Parallel()

	tracker := NewTracker(&memCheckpointStore{}, nil, fixedClock{now: time.Now()}, nil)
	targets := makeTargets(t, "A, IL", "B, IL")

	work, err := tracker.Prepare(context.Background(), "run-1", targets, Selection{Skip: 5})
	require.NoError(t, err)
	require.Empty(t, work)
}

func TestPrepareRangeWinsOverSkipMax(t *testing.T) {
	t.Parallel()

	tracker := NewTracker(&memCheckpointStore{}, nil, fixedClock{now: time.Now()}, nil)
	targets := makeTargets(t, "A, IL", "B, IL", "C, IL", "D, IL", "E, IL")

	work, err := tracker.Prepare(context.Background(), "run-1", targets, Selection{
		Skip:       4,
		Max:        1,
		RangeStart: 2,
		RangeEnd:   4,
	})
	require.NoError(t, err)
	require.Len(t, work, 3)
	require.Equal(t, "B, IL", work[0].Key())
	require.Equal(t, "D, IL", work[2].Key())
}

func TestPrepareRangeClamped(t *testing.T) {
	t.Parallel()

	tracker := NewTracker(&memCheckpointStore{}, nil, fixedClock{now: time.Now()}, nil)
	targets := makeTargets(t, "A, IL", "B, IL", "C, IL")

	work, err := tracker.Prepare(context.Background(), "run-1", targets, Selection{RangeStart: 2, RangeEnd: 99})
	require.NoError(t, err)
	require.Len(t, work, 2)
	require.Equal(t, "B, IL", work[0].Key())

	work, err = tracker.Prepare(context.Background(), "run-1", targets, Selection{RangeStart: 9, RangeEnd: 10})
	require.NoError(t, err)
	require.Empty(t, work)
}

func TestPrepareResumeFiltersProcessed(t *testing.T) {
	t.Parallel()

	started := time.Date(2025, 5, 30, 8, 0, 0, 0, time.UTC)
	cs := &memCheckpointStore{
		cp: store.Checkpoint{
			RunID:            "run-old",
			StartedAt:        started,
			UpdatedAt:        started,
			TotalRecords:     7,
			MaxRecords:       50,
			ProcessedTargets: []string{"Chicago, IL"},
		},
		found: true,
	}
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tracker := NewTracker(cs, nil, fixedClock{now: now}, nil)

	targets := makeTargets(t, "Chicago, IL", "Aurora, IL")
	work, err := tracker.Prepare(context.Background(), "run-new", targets, Selection{Resume: true})
	require.NoError(t, err)
	require.Len(t, work, 1)
	require.Equal(t, "Aurora, IL", work[0].Key())

	cp := tracker.Checkpoint()
	require.Equal(t, "run-new", cp.RunID)
	require.Equal(t, started, cp.StartedAt)
	require.Equal(t, 7, cp.TotalRecords)
	require.Equal(t, 50, cp.MaxRecords)
	require.True(t, tracker.Processed("Chicago, IL"))
	require.Equal(t, 7, tracker.TotalRecords())
}

func TestPrepareResumeWithoutCheckpoint(t *testing.T) {
	t.Parallel()

	tracker := NewTracker(&memCheckpointStore{}, nil, fixedClock{now: time.Now()}, nil)
	targets := makeTargets(t, "Chicago, IL")

	work, err := tracker.Prepare(context.Background(), "run-1", targets, Selection{Resume: true})
	require.NoError(t, err)
	require.Len(t, work, 1)
	require.Zero(t, tracker.TotalRecords())
}

func TestPrepareResetArchivesAndClears(t *testing.T) {
	t.Parallel()

	cs := &memCheckpointStore{
		cp: store.Checkpoint{
			TotalRecords:     42,
			ProcessedTargets: []string{"Chicago, IL"},
		},
		found: true,
	}
	archiver := &fakeArchiver{path: "roofing_businesses.2025-06-01.csv"}
	tracker := NewTracker(cs, archiver, fixedClock{now: time.Now()}, nil)

	targets := makeTargets(t, "Chicago, IL", "Aurora, IL")
	work, err := tracker.Prepare(context.Background(), "run-1", targets, Selection{Reset: true, Resume: true})
	require.NoError(t, err)
	require.Len(t, work, 2, "reset must win over resume")
	require.Equal(t, 1, archiver.calls)
	require.Equal(t, 1, cs.resets)
	require.Zero(t, tracker.TotalRecords())
	require.False(t, tracker.Processed("Chicago, IL"))
}

func TestPrepareResetArchiveFailure(t *testing.T) {
	t.Parallel()

	archiver := &fakeArchiver{err: errors.New("permission denied")}
	tracker := NewTracker(&memCheckpointStore{}, archiver, fixedClock{now: time.Now()}, nil)

	_, err := tracker.Prepare(context.Background(), "run-1", makeTargets(t, "Chicago, IL"), Selection{Reset: true})
	require.ErrorContains(t, err, "archive output")
}

func TestMarkProcessedPersistsCheckpoint(t *testing.T) {
	t.Parallel()

	cs := &memCheckpointStore{}
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tracker := NewTracker(cs, nil, fixedClock{now: now}, nil)

	targets := makeTargets(t, "Chicago, IL", "Aurora, IL")
	_, err := tracker.Prepare(context.Background(), "run-1", targets, Selection{})
	require.NoError(t, err)

	tracker.MarkProcessed(context.Background(), "Chicago, IL", 1)
	tracker.MarkProcessed(context.Background(), "Aurora, IL", 3)

	require.Equal(t, 2, cs.saves)
	require.Equal(t, []string{"Chicago, IL", "Aurora, IL"}, cs.cp.ProcessedTargets)
	require.Equal(t, 4, cs.cp.TotalRecords)
	require.Equal(t, now, cs.cp.UpdatedAt)
	require.True(t, tracker.Processed("Chicago, IL"))
}

func TestMarkProcessedDuplicateKey(t *testing.T) {
	t.Parallel()

	cs := &memCheckpointStore{}
	tracker := NewTracker(cs, nil, fixedClock{now: time.Now()}, nil)
	_, err := tracker.Prepare(context.Background(), "run-1", makeTargets(t, "Chicago, IL"), Selection{})
	require.NoError(t, err)

	tracker.MarkProcessed(context.Background(), "Chicago, IL", 1)
	tracker.MarkProcessed(context.Background(), "Chicago, IL", 2)

	require.Equal(t, []string{"Chicago, IL"}, cs.cp.ProcessedTargets)
	require.Equal(t, 3, cs.cp.TotalRecords)
}

func TestMarkProcessedSaveFailureTolerated(t *testing.T) {
	t.Parallel()

	cs := &memCheckpointStore{saveErr: errors.New("disk full")}
	tracker := NewTracker(cs, nil, fixedClock{now: time.Now()}, nil)
	_, err := tracker.Prepare(context.Background(), "run-1", makeTargets(t, "Chicago, IL"), Selection{})
	require.NoError(t, err)

	tracker.MarkProcessed(context.Background(), "Chicago, IL", 2)

	require.True(t, tracker.Processed("Chicago, IL"))
	require.Equal(t, 2, tracker.TotalRecords())
}

func TestBudgetExhausted(t *testing.T) {
	t.Parallel()

	tracker := NewTracker(&memCheckpointStore{}, nil, fixedClock{now: time.Now()}, nil)
	_, err := tracker.Prepare(context.Background(), "run-1", makeTargets(t, "Chicago, IL"), Selection{MaxRecords: 3})
	require.NoError(t, err)

	require.False(t, tracker.BudgetExhausted())
	tracker.MarkProcessed(context.Background(), "Chicago, IL", 3)
	require.True(t, tracker.BudgetExhausted())
}

func TestCheckpointReturnsCopy(t *testing.T) {
	t.Parallel()

	tracker := NewTracker(&memCheckpointStore{}, nil, fixedClock{now: time.Now()}, nil)
	_, err := tracker.Prepare(context.Background(), "run-1", makeTargets(t, "Chicago, IL"), Selection{})
	require.NoError(t, err)
	tracker.MarkProcessed(context.Background(), "Chicago, IL", 1)

	cp := tracker.Checkpoint()
	cp.ProcessedTargets[0] = "mutated"
	require.Equal(t, []string{"Chicago, IL"}, tracker.Checkpoint().ProcessedTargets)
}
