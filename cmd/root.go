package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/miguelmontanez/bbb-roofing-business-scraper/internal/app"
	"github.com/miguelmontanez/bbb-roofing-business-scraper/internal/config"
	pkgconfig "github.com/miguelmontanez/bbb-roofing-business-scraper/pkg/config"
)

var cfgFile string

// cfgInitErr carries a config read failure out of cobra's OnInitialize hook,
// which cannot return one itself. PersistentPreRunE surfaces it.
var cfgInitErr error

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// standaloneAnnotation marks subcommands that work on files alone and skip
// the application build.
const standaloneAnnotation = "standalone"

// App is the slice of the application the commands use. A factory variable
// builds the real one so tests can inject a fake.
type App interface {
	Run(ctx context.Context) error
	Logger() *zap.Logger
	Close()
}

var newApp = func(ctx context.Context) (App, error) {
	cfg, err := config.FromViper(viper.GetViper())
	if err != nil {
		return nil, err
	}
	return app.Build(ctx, cfg)
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bbbscraper",
		Short: "Scrapes roofing business listings from BBB search results",
		Long: `bbbscraper walks BBB search results for roofing contractors across an
ordered list of "City, ST" targets, extracts each accredited business
listing, and appends it to a CSV. Runs are checkpointed and resumable.`,
		SilenceUsage:  true,
		SilenceErrors: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cfgInitErr != nil {
				return cfgInitErr
			}
			if cmd.Annotations[standaloneAnnotation] == "true" {
				return nil
			}
			appInstance, err := newApp(cmd.Context())
			if err != nil {
				return fmt.Errorf("initialize application: %w", err)
			}
			ctx := context.WithValue(cmd.Context(), appKey, appInstance)
			cmd.SetContext(ctx)
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(App); ok && appInstance != nil {
				appInstance.Close()
			}
		},
	}

	cobra.OnInitialize(func() {
		cfgInitErr = pkgconfig.InitConfig(cfgFile)
	})

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default searches ., ./etc, $HOME/.bbbscraper)")

	cmd.AddCommand(newCrawlCmd())
	cmd.AddCommand(newTargetsCmd())
	cmd.AddCommand(newMergeCmd())

	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
