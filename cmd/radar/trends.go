package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/findora/tool-radar/internal/models"
	"github.com/findora/tool-radar/internal/sources"
	"github.com/spf13/cobra"
)

var (
	reportDir     string
	checkKeywords []string
)

// trendsCmd runs one monitoring pass and prints the resulting report
var trendsCmd = &cobra.Command{
	Use:   "trends",
	Short: "Collect mentions and update trend scores now",
	Long: `Run one mention monitoring pass over every enabled source, update the
mention counts and trend scores of the matched tools and print the report.
The report is also sent to the configured notification channels.`,
	RunE: runTrends,
}

// checkSourcesCmd probes each mention source once
var checkSourcesCmd = &cobra.Command{
	Use:   "check-sources",
	Short: "Check connectivity of the mention sources",
	RunE:  runCheckSources,
}

func init() {
	trendsCmd.Flags().StringVar(&reportDir, "save", "", "directory to write the report JSON to")
	checkSourcesCmd.Flags().StringSliceVar(&checkKeywords, "keyword", nil, "keywords to search for (default: catalog tool names)")
}

func runTrends(cmd *cobra.Command, args []string) error {
	report, err := radar.Monitoring.RunMonitoring(cmd.Context())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if report == nil {
		fmt.Fprintln(out, "The catalog is empty, nothing to monitor. Run 'radar seed' first.")
		return nil
	}

	printReport(out, report)

	if reportDir != "" {
		path, err := saveReport(reportDir, report)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "\nReport saved to: %s\n", path)
	}
	return nil
}

func printReport(w io.Writer, report *models.Report) {
	rule := strings.Repeat("=", 70)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "TOOL RADAR TRENDS")
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Period:       %s\n", report.Period)
	fmt.Fprintf(w, "Generated:    %s\n", report.GeneratedAt.UTC().Format("2006-01-02 15:04:05 UTC"))
	fmt.Fprintf(w, "New mentions: %d\n", report.TotalMentions)

	if counts, ok := report.Summary["sources"].(map[string]int); ok && len(counts) > 0 {
		fmt.Fprintln(w, "\nSources:")
		names := make([]string, 0, len(counts))
		for name := range counts {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(w, "  %-15s %d\n", name+":", counts[name])
		}
	}

	if len(report.Rising) > 0 {
		fmt.Fprintln(w, "\nRising tools:")
		for i, t := range report.Rising {
			fmt.Fprintf(w, "  %d. %-24s trend %3d  %d mentions\n", i+1, t.Name, t.TrendScore, t.MentionCount)
		}
	}

	if len(report.Mentions) > 0 {
		fmt.Fprintln(w, "\nRecent mentions:")
		for i, m := range report.Mentions {
			if i >= 5 {
				fmt.Fprintf(w, "  ... and %d more\n", len(report.Mentions)-5)
				break
			}
			fmt.Fprintf(w, "  [%s] %s\n", m.Platform, m.Title)
			fmt.Fprintf(w, "      %s\n", m.URL)
		}
	}
}

func saveReport(dir string, report *models.Report) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}

	name := fmt.Sprintf("tool_radar_report_%s.json", report.GeneratedAt.UTC().Format("2006-01-02_15-04-05"))
	path := filepath.Join(dir, name)

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", err
	}
	return path, nil
}

func runCheckSources(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	keywords := checkKeywords
	if len(keywords) == 0 {
		for _, t := range radar.Discovery.Catalog(ctx) {
			keywords = append(keywords, t.Name)
		}
	}

	for _, src := range radar.Monitoring.Sources() {
		checkSource(cmd, src, keywords)
	}
	fmt.Fprintln(out, "\nSource check completed")
	return nil
}

func checkSource(cmd *cobra.Command, src sources.Source, keywords []string) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Testing %s... ", src.GetName())

	if !src.IsEnabled() {
		fmt.Fprintln(out, "DISABLED (missing credentials)")
		return
	}

	mentions, err := src.FetchMentions(cmd.Context(), keywords, 24*time.Hour)
	if err != nil {
		fmt.Fprintf(out, "ERROR: %v\n", err)
		return
	}

	fmt.Fprintf(out, "OK (%d mentions found)\n", len(mentions))
	if len(mentions) > 0 {
		fmt.Fprintf(out, "  Sample: %q %v\n", mentions[0].Title, mentions[0].Keywords)
	}
}
