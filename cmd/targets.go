package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/miguelmontanez/bbb-roofing-business-scraper/internal/targets"
)

// newTargetsCmd creates the 'targets' subcommand, a standalone file check
// that never builds the application.
func newTargetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "targets [file]",
		Short: "Validates a targets file and lists what would be crawled",
		Long: `Parses a targets file and prints every valid "City, ST" entry in crawl
order, followed by any entries the crawler would reject. Exits non-zero
when the file contains invalid entries. Without an argument the file
from the configuration is checked.`,
		Args:        cobra.MaximumNArgs(1),
		Annotations: map[string]string{standaloneAnnotation: "true"},
		RunE:        runTargetsCommand,
	}
}

func runTargetsCommand(cmd *cobra.Command, args []string) error {
	path := viper.GetString("crawl.targets_file")
	if len(args) == 1 {
		path = args[0]
	}

	list, invalid, err := targets.Load(path)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: %d valid targets, %d invalid\n", path, len(list), len(invalid))
	for i, target := range list {
		fmt.Fprintf(out, "%4d  %s\n", i+1, target.Key())
	}
	if len(invalid) > 0 {
		fmt.Fprintln(out, "invalid entries:")
		for _, entry := range invalid {
			fmt.Fprintf(out, "      %q\n", entry)
		}
		return fmt.Errorf("%d invalid entries in %s", len(invalid), path)
	}
	return nil
}
