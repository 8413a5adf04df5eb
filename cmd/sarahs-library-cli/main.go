// Package main provides the Sarah's Library CLI entrypoint.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sarahcodeswell/sarahs-library-sub002/cmd/sarahs-library-cli/ui"
	"github.com/sarahcodeswell/sarahs-library-sub002/internal/config"
	"github.com/sarahcodeswell/sarahs-library-sub002/internal/observability"
)

var (
	// Global flags
	cfgFile    string
	outputJSON bool
	verbose    bool
	noColor    bool

	cfg    *config.Config
	logger *observability.Logger
)

var rootCmd = &cobra.Command{
	Use:   "sarahs-library",
	Short: "Route, preview and run book recommendations from the command line",
	Long: `sarahs-library drives the recommendation pipeline without the HTTP API.

Use this tool to:
- See which path (CATALOG, HYBRID, WORLD, TEMPORAL) a request takes
- Inspect the catalog shortlist and the assembled prompt
- Get recommendations from the model
- Import a catalog snapshot into the database and precompute embeddings

All commands support --json for automation.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		level := cfg.Observability.LogLevel
		if verbose {
			level = "debug"
		}
		logger = observability.NewLogger(observability.LogConfig{
			Level:       level,
			Format:      "console",
			Output:      os.Stderr,
			ServiceName: "sarahs-library-cli",
		})

		ui.Init(noColor || outputJSON)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default: uses env vars)")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(newRouteCmd())
	rootCmd.AddCommand(newShortlistCmd())
	rootCmd.AddCommand(newPromptCmd())
	rootCmd.AddCommand(newRecommendCmd())
	rootCmd.AddCommand(newImportCmd())
	rootCmd.AddCommand(newEmbedCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		ui.Error("%v", err)
		os.Exit(1)
	}
}
