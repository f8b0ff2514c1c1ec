package handlers

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"newsfacts/internal/config"
	"newsfacts/internal/logger"
)

// Version is overridden at build time with -ldflags "-X newsfacts/cmd/handlers.Version=..."
var Version = "dev"

var cfgFile string

// NewRootCmd creates the root command with all subcommands attached
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "newsfacts",
		Short: "Distil cached, verifiable facts from stored news articles",
		Long: `newsfacts turns the articles stored for a date range into a bundle of facts,
a timeline and the key figures involved, using one AI call per period.

Bundles are cached per period. Reads never call the AI: they serve the exact
cached period, or merge every cached period that overlaps the request.
Refreshes run on a schedule, on demand, or as a historical backfill.

Examples:
  # Serve the HTTP API with the background refresh scheduler
  newsfacts serve

  # Read the cached facts for last week
  newsfacts facts read --from 2026-01-05 --to 2026-01-11

  # Compute every week not cached yet, at most 10 per run
  newsfacts facts backfill --max-batches 10`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .newsfacts.yaml in . or $HOME)")

	rootCmd.AddCommand(NewServeCmd())
	rootCmd.AddCommand(NewFactsCmd())
	rootCmd.AddCommand(NewArticlesCmd())
	rootCmd.AddCommand(NewMigrateCmd())
	rootCmd.AddCommand(NewBrowseCmd())
	rootCmd.AddCommand(NewMCPCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

// initConfig loads configuration and reconfigures the logger from it.
// Logs go to stderr so command output on stdout stays machine-readable.
func initConfig() error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}

	level := cfg.Logging.Level
	if cfg.App.Debug {
		level = "debug"
	}
	log := logger.Configure(logger.Options{Level: level, Format: cfg.Logging.Format, Output: os.Stderr})

	if cfg.App.ConfigFile != "" {
		log.Debug("Using config file", "path", cfg.App.ConfigFile)
	}
	return nil
}
