package progress

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Summary is the end-of-run report written next to the output file.
type Summary struct {
	RunID            string    `json:"run_id"`
	GeneratedAt      time.Time `json:"timestamp"`
	TargetsProcessed int       `json:"total_targets_processed"`
	TargetsFailed    int       `json:"total_targets_failed"`
	TotalRecords     int       `json:"total_records_collected"`
	// UnsupportedTargets counts entries in the unsupported report: targets
	// that could not be parsed plus targets whose crawl failed.
	UnsupportedTargets int    `json:"total_unsupported_targets"`
	OutputPath         string `json:"records_file"`
	CheckpointPath     string `json:"checkpoint_file"`
	UnsupportedPath    string `json:"unsupported_targets_file,omitempty"`
}

// WriteSummary renders the summary as indented JSON at path.
func WriteSummary(path string, s Summary) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}
