package progress

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWriteSummary(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "run_summary.json")
	summary := Summary{
		RunID:              "0190f6a2-7b3d-7e11-a36c-2f95c07c9f10",
		GeneratedAt:        time.Date(2025, 6, 1, 18, 30, 0, 0, time.UTC),
		TargetsProcessed:   12,
		TargetsFailed:      1,
		TotalRecords:       284,
		UnsupportedTargets: 2,
		OutputPath:         "roofing_businesses.csv",
		CheckpointPath:     "crawl_checkpoint.json",
		UnsupportedPath:    "unsupported_targets.json",
	}
	require.NoError(t, WriteSummary(path, summary))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded Summary
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, summary, decoded)
}

func TestWriteSummaryBadPath(t *testing.T) {
	t.Parallel()

	err := WriteSummary(filepath.Join(t.TempDir(), "missing", "run_summary.json"), Summary{})
	require.ErrorContains(t, err, "write summary")
}
