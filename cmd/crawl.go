// Package cmd defines and implements the CLI commands for the bbbscraper
// executable.
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// newCrawlCmd creates and configures the 'crawl' subcommand. Its flags are
// bound into viper, so each one can also come from the config file or a
// BBB_-prefixed environment variable.
func newCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Starts the BBB crawl",
		Long: `Crawls BBB search results for every target in the targets file, in
order, one page at a time. Progress is checkpointed after each target,
so an interrupted run can continue with --resume.`,

		RunE: runCrawlCommand,
	}

	flags := cmd.Flags()
	flags.String("targets-file", "", `JSON array of "City, ST" targets`)
	flags.Bool("resume", false, "continue from the checkpoint, skipping finished targets")
	flags.Bool("reset", false, "archive the current output and start fresh")
	flags.Int("skip", 0, "skip the first N targets")
	flags.Int("max-targets", 0, "crawl at most N targets after skipping (0 = all)")
	flags.Int("start", 0, "1-based index of the first target (overrides skip/max-targets)")
	flags.Int("end", 0, "1-based index of the last target (0 = through the end)")
	flags.Int("records-per-target", 0, "cap accepted records per target (0 = uncapped)")
	flags.Int("total-cap", 0, "cap accepted records across the whole run (0 = uncapped)")
	flags.Bool("enrich", true, "fetch detail pages to fill in missing fields")

	bindings := map[string]string{
		"crawl.targets_file":       "targets-file",
		"crawl.resume":             "resume",
		"crawl.reset":              "reset",
		"crawl.skip":               "skip",
		"crawl.max_targets":        "max-targets",
		"crawl.start":              "start",
		"crawl.end":                "end",
		"crawl.records_per_target": "records-per-target",
		"crawl.total_cap":          "total-cap",
		"enrich.enabled":           "enrich",
	}
	for key, name := range bindings {
		_ = viper.BindPFlag(key, flags.Lookup(name))
	}

	return cmd
}

func runCrawlCommand(cmd *cobra.Command, _ []string) error {
	application, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}

	if err := application.Run(cmd.Context()); err != nil {
		if errors.Is(err, context.Canceled) {
			application.Logger().Info("crawl interrupted; rerun with --resume to continue")
			return nil
		}
		return fmt.Errorf("run crawl: %w", err)
	}

	application.Logger().Info("crawl finished")
	return nil
}

func resolveApp(ctx context.Context) (App, error) {
	application, ok := ctx.Value(appKey).(App)
	if !ok || application == nil {
		return nil, errors.New("application services not initialized")
	}
	return application, nil
}
