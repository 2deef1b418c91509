// Command radar runs catalog maintenance tasks from the command line:
// enrichment jobs, mention trends, seeding and export.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/findora/tool-radar/internal/app"
	"github.com/findora/tool-radar/internal/config"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	// services built by the root command before any subcommand runs
	radar *app.App

	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "radar",
	Short: "Maintain the Tool Radar catalog",
	Long: `radar runs the catalog maintenance tasks that the server otherwise
schedules: website analysis, pricing and trust re-verification,
mention trends, dataset seeding and export.

Configuration is read from the environment and an optional .env file,
the same way the server reads it.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil {
			logrus.Debug("No .env file found, using environment variables")
		}

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if verbose {
			cfg.Debug = true
		}
		app.SetupLogging(cfg)
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

		radar, err = app.New(cmd.Context(), cfg)
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(
		analyzeCmd,
		processJobsCmd,
		refreshCmd,
		trendsCmd,
		seedCmd,
		exportCmd,
		checkSourcesCmd,
	)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if radar != nil {
		if cerr := radar.Close(); cerr != nil {
			logrus.Warnf("Failed to release resources: %v", cerr)
		}
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
