package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/miguelmontanez/bbb-roofing-business-scraper/internal/crawler"
	"github.com/miguelmontanez/bbb-roofing-business-scraper/internal/storage/csvstore"
)

// newMergeCmd creates the 'merge' subcommand, a standalone tool that never
// builds the application.
func newMergeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "merge [files...]",
		Short: "Merges output CSVs into one, dropping duplicate businesses",
		Long: `Reads one or more crawl output files and writes a single merged CSV
with one header row. Businesses are deduplicated by the same lower-cased
name key the crawler uses; the first occurrence wins. Input files whose
columns drift from the output schema and rows missing a business name or
source URL are reported but still merged.`,
		Args:        cobra.MinimumNArgs(1),
		Annotations: map[string]string{standaloneAnnotation: "true"},
		RunE:        runMergeCommand,
	}
	cmd.Flags().String("out", "merged_roofing_businesses.csv", "merged output file")
	return cmd
}

type mergeStats struct {
	read       int
	duplicates int
	incomplete int
}

func runMergeCommand(cmd *cobra.Command, args []string) error {
	outPath, err := cmd.Flags().GetString("out")
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, path := range args {
		missing, extra, err := csvstore.CheckColumns(path)
		if err != nil {
			return err
		}
		if len(missing) > 0 || len(extra) > 0 {
			fmt.Fprintf(out, "warning: %s: columns drifted from the output schema (missing %v, extra %v)\n",
				path, missing, extra)
		}
	}

	merged, stats, err := mergeFiles(args)
	if err != nil {
		return err
	}
	if err := writeMerged(outPath, merged); err != nil {
		return err
	}

	fmt.Fprintf(out, "merged %d files into %s: %d records read, %d kept, %d duplicates dropped\n",
		len(args), outPath, stats.read, len(merged), stats.duplicates)
	if stats.incomplete > 0 {
		fmt.Fprintf(out, "warning: %d rows are missing a business name or source URL\n", stats.incomplete)
	}
	return nil
}

// mergeFiles concatenates the files' records in argument order, keeping the
// first record for each dedup key. Rows without a usable name cannot be
// deduplicated and are all kept.
func mergeFiles(paths []string) ([]crawler.BusinessRecord, mergeStats, error) {
	var (
		stats  mergeStats
		seen   = crawler.NewRegistry()
		merged []crawler.BusinessRecord
	)
	for _, path := range paths {
		records, err := csvstore.ReadRecords(path)
		if err != nil {
			return nil, mergeStats{}, err
		}
		for _, rec := range records {
			stats.read++
			if rec.BusinessName == "" || rec.SourceURL == "" {
				stats.incomplete++
			}
			if key := crawler.DedupKey(rec.BusinessName); key != "" && !seen.Add(key) {
				stats.duplicates++
				continue
			}
			merged = append(merged, rec)
		}
	}
	return merged, stats, nil
}

func writeMerged(path string, records []crawler.BusinessRecord) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing %s: %w", path, err)
	}
	sink, err := csvstore.New(csvstore.Config{Path: path}, zap.NewNop())
	if err != nil {
		return err
	}
	if err := sink.Touch(); err != nil {
		return err
	}
	for _, rec := range records {
		if err := sink.Append(context.Background(), rec); err != nil {
			return err
		}
	}
	return sink.Close()
}
