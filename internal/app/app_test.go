package app

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/miguelmontanez/bbb-roofing-business-scraper/internal/config"
	"github.com/miguelmontanez/bbb-roofing-business-scraper/internal/crawler"
	"github.com/miguelmontanez/bbb-roofing-business-scraper/internal/progress"
	"github.com/miguelmontanez/bbb-roofing-business-scraper/internal/storage/csvstore"
	localstore "github.com/miguelmontanez/bbb-roofing-business-scraper/internal/storage/local"
)

type fakeRecordSink struct {
	records []crawler.BusinessRecord
	err     error
}

func (s *fakeRecordSink) Append(_ context.Context, record crawler.BusinessRecord) error {
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, record)
	return nil
}

type fakeMirror struct {
	calls []mirrorCall
	err   error
}

type mirrorCall struct {
	record    crawler.BusinessRecord
	runID     string
	scrapedAt time.Time
}

func (m *fakeMirror) StoreRecord(_ context.Context, record crawler.BusinessRecord, runID string, scrapedAt time.Time) error {
	m.calls = append(m.calls, mirrorCall{record: record, runID: runID, scrapedAt: scrapedAt})
	return m.err
}

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time {
	return c.now
}

func TestMirrorSinkAppendsToBoth(t *testing.T) {
	t.Parallel()

	csv := &fakeRecordSink{}
	mirror := &fakeMirror{}
	now := time.Date(2025, 11, 3, 12, 0, 0, 0, time.UTC)
	sink := &mirrorSink{
		csv:     csv,
		records: mirror,
		runID:   "run-1",
		clock:   fixedClock{now: now},
		logger:  zap.NewNop(),
	}

	rec := crawler.BusinessRecord{BusinessName: "Apex Roofing"}
	require.NoError(t, sink.Append(context.Background(), rec))

	require.Len(t, csv.records, 1)
	require.Equal(t, "Apex Roofing", csv.records[0].BusinessName)
	require.Len(t, mirror.calls, 1)
	require.Equal(t, "run-1", mirror.calls[0].runID)
	require.Equal(t, now, mirror.calls[0].scrapedAt)
}

func TestMirrorSinkToleratesDatabaseFailure(t *testing.T) {
	t.Parallel()

	csv := &fakeRecordSink{}
	mirror := &fakeMirror{err: errors.New("connection refused")}
	sink := &mirrorSink{
		csv:     csv,
		records: mirror,
		runID:   "run-1",
		clock:   fixedClock{now: time.Now()},
		logger:  zap.NewNop(),
	}

	require.NoError(t, sink.Append(context.Background(), crawler.BusinessRecord{BusinessName: "Apex Roofing"}))
	require.Len(t, csv.records, 1, "csv append is authoritative and must succeed")
}

func TestMirrorSinkCSVFailureSkipsMirror(t *testing.T) {
	t.Parallel()

	csv := &fakeRecordSink{err: errors.New("disk full")}
	mirror := &fakeMirror{}
	sink := &mirrorSink{
		csv:     csv,
		records: mirror,
		runID:   "run-1",
		clock:   fixedClock{now: time.Now()},
		logger:  zap.NewNop(),
	}

	err := sink.Append(context.Background(), crawler.BusinessRecord{BusinessName: "Apex Roofing"})
	require.Error(t, err)
	require.Empty(t, mirror.calls, "mirror must not see a record the csv rejected")
}

func TestBackupOutputsUploadsExistingFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	outputPath := filepath.Join(dir, "roofing_businesses.csv")
	summaryPath := filepath.Join(dir, "crawl_summary.json")
	require.NoError(t, os.WriteFile(outputPath, []byte("business_name\nApex Roofing\n"), 0o644))
	require.NoError(t, os.WriteFile(summaryPath, []byte("{}\n"), 0o644))

	backupDir := filepath.Join(dir, "backups")
	backup, err := localstore.New(localstore.Config{BaseDir: backupDir})
	require.NoError(t, err)

	output, err := csvstore.New(csvstore.Config{Path: outputPath}, zap.NewNop())
	require.NoError(t, err)

	a := &App{
		logger: zap.NewNop(),
		backup: backup,
		output: output,
	}
	a.cfg.Paths.Output = outputPath
	a.cfg.Paths.Summary = summaryPath
	a.cfg.Paths.Unsupported = filepath.Join(dir, "missing.json")

	a.backupOutputs()

	copied, err := os.ReadFile(filepath.Join(backupDir, "roofing_businesses.csv"))
	require.NoError(t, err)
	require.Contains(t, string(copied), "Apex Roofing")
	_, err = os.Stat(filepath.Join(backupDir, "crawl_summary.json"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(backupDir, "missing.json"))
	require.True(t, os.IsNotExist(err), "missing inputs are skipped, not created")
}

// Building registers Prometheus collectors in the process-global registry,
// so exactly one test builds a real App.
func TestBuildRunCloseWithNoopBackends(t *testing.T) {
	dir := t.TempDir()
	targetsPath := filepath.Join(dir, "targets.json")
	require.NoError(t, os.WriteFile(targetsPath, []byte(`["notacity", "Chicago"]`), 0o644))

	cfg := config.Config{}
	cfg.BBB.BaseURL = "https://www.bbb.org"
	cfg.BBB.SearchText = "Roofing Contractors"
	cfg.BBB.Country = "USA"
	cfg.Keywords = []string{"roof"}
	cfg.HTTP.UserAgent = "test-agent"
	cfg.HTTP.TimeoutSeconds = 5
	cfg.HTTP.MaxRetries = 1
	cfg.HTTP.RequestsPerSecond = 100
	cfg.Crawl.TargetsFile = targetsPath
	cfg.Paths.Output = filepath.Join(dir, "out.csv")
	cfg.Paths.Checkpoint = filepath.Join(dir, "checkpoint.json")
	cfg.Paths.Summary = filepath.Join(dir, "summary.json")
	cfg.Paths.Unsupported = filepath.Join(dir, "unsupported.json")
	cfg.Progress.Enabled = true
	cfg.Progress.BufferSize = 16
	cfg.Storage.Backend = "noop"
	cfg.Publisher.Backend = "noop"

	app, err := Build(context.Background(), cfg)
	require.NoError(t, err)

	// Both entries fail to parse, so the run drains an empty queue and
	// never touches the network.
	require.NoError(t, app.Run(context.Background()))

	data, err := os.ReadFile(cfg.Paths.Summary)
	require.NoError(t, err)
	var summary progress.Summary
	require.NoError(t, json.Unmarshal(data, &summary))
	require.Equal(t, 0, summary.TargetsProcessed)
	require.Equal(t, 0, summary.TargetsFailed)
	require.Equal(t, 2, summary.UnsupportedTargets)
	require.Equal(t, cfg.Paths.Output, summary.OutputPath)

	reportData, err := os.ReadFile(cfg.Paths.Unsupported)
	require.NoError(t, err)
	var entries []string
	require.NoError(t, json.Unmarshal(reportData, &entries))
	require.ElementsMatch(t, []string{"notacity", "Chicago"}, entries)

	app.Close()
	app.Close()
}
