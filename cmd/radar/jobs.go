package main

import (
	"fmt"
	"io"

	"github.com/findora/tool-radar/internal/models"
	"github.com/spf13/cobra"
)

const (
	pendingBatch     = 20
	maxAnalyzeRounds = 50
)

var (
	analyzeToolID string
	jobLimit      int
)

// analyzeCmd queues a website and processes the queue until it is done
var analyzeCmd = &cobra.Command{
	Use:   "analyze <url>",
	Short: "Scrape and classify a tool website",
	Long: `Queue a tool website for analysis and process the queue until the job
finishes. Jobs queued earlier are processed first.

A tool id that already exists is re-verified in place. Without --tool-id
the tool is matched by URL, or created with an id derived from its name.`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

// processJobsCmd runs one batch of queued analysis jobs
var processJobsCmd = &cobra.Command{
	Use:   "process-jobs",
	Short: "Process queued analysis jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := radar.Pipeline.ProcessPending(cmd.Context(), jobLimit)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Completed %d jobs\n", n)
		return nil
	},
}

// refreshCmd re-verifies pricing and trust of every stored tool
var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Re-verify pricing and trust of every tool",
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := radar.Pipeline.RefreshAll(cmd.Context())
		fmt.Fprintf(cmd.OutOrStdout(), "Refreshed %d tools\n", n)
		return err
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeToolID, "tool-id", "", "existing tool id to re-verify")
	processJobsCmd.Flags().IntVar(&jobLimit, "limit", pendingBatch, "maximum number of jobs to process")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	job, err := radar.Pipeline.Submit(ctx, args[0], analyzeToolID)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Queued job %s for %s\n", job.ID, job.URL)

	for round := 0; job.Status == models.JobPending && round < maxAnalyzeRounds; round++ {
		if _, err := radar.Pipeline.ProcessPending(ctx, pendingBatch); err != nil {
			return err
		}
		if job, err = radar.Pipeline.Job(ctx, job.ID); err != nil {
			return err
		}
	}

	switch job.Status {
	case models.JobCompleted:
	case models.JobFailed:
		return fmt.Errorf("job %s failed: %s", job.ID, job.Error)
	default:
		return fmt.Errorf("job %s is still %s", job.ID, job.Status)
	}

	tool, err := radar.Discovery.Get(ctx, job.ToolID)
	if err != nil {
		return err
	}
	trust, err := radar.Discovery.Trust(ctx, job.ToolID)
	if err != nil {
		return err
	}
	printAnalysis(out, tool, trust)
	return nil
}

func printAnalysis(w io.Writer, tool *models.Tool, trust *models.TrustScore) {
	p := tool.Pricing
	free := p.FreeTier

	fmt.Fprintf(w, "\n%s (%s)\n", tool.Name, tool.ID)
	fmt.Fprintf(w, "  Category:    %s\n", tool.Category)
	fmt.Fprintf(w, "  URL:         %s\n", tool.OfficialURL)
	fmt.Fprintf(w, "  Pricing:     %s (confidence %.2f)\n", p.Model, p.Confidence)
	if free.Exists {
		fmt.Fprintf(w, "  Free tier:   %s\n", orDash(free.Limit))
		fmt.Fprintf(w, "    signup=%t card=%t watermark=%t commercial=%t\n",
			free.RequiresSignup, free.RequiresCard, free.Watermark, free.CommercialUse)
	}
	if p.PaidTier.StartPrice != "" {
		fmt.Fprintf(w, "  Paid from:   %s\n", p.PaidTier.StartPrice)
	}
	for _, a := range p.Ambiguities {
		fmt.Fprintf(w, "  ! %s\n", a)
	}
	fmt.Fprintf(w, "  Trust:       %d (%s)\n", trust.Overall, models.TrustLabel(trust.Overall))
	for _, c := range trust.Concerns {
		fmt.Fprintf(w, "  - %s\n", c)
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
