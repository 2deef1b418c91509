package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/findora/tool-radar/internal/catalog"
	"github.com/findora/tool-radar/internal/dataset"
	"github.com/findora/tool-radar/internal/models"
	"github.com/jszwec/csvutil"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	seedForce    bool
	exportFormat string
	exportOutput string
)

// seedCmd copies the embedded dataset into the document store
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the static dataset into the document store",
	Long: `Write every tool of the embedded static dataset, with its pricing and
trust score, into the configured document store. Tools that already exist
are left alone unless --force is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		written, skipped, err := seedCatalog(cmd.Context(), radar.Store, radar.Dataset, seedForce)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d tools, skipped %d existing\n", written, skipped)
		return nil
	},
}

// exportCmd writes the catalog as CSV or JSON
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the catalog as CSV or JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		var w io.Writer = cmd.OutOrStdout()
		if exportOutput != "" && exportOutput != "-" {
			f, err := os.Create(exportOutput)
			if err != nil {
				return err
			}
			defer f.Close()
			w = f
		}
		return writeExport(w, exportFormat, radar.Discovery.Catalog(cmd.Context()))
	},
}

func init() {
	seedCmd.Flags().BoolVar(&seedForce, "force", false, "overwrite tools that already exist")
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "csv", "output format: csv or json")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "-", "output file, - for stdout")
}

// seedCatalog writes the dataset's tools, pricing and trust documents
func seedCatalog(ctx context.Context, store *catalog.Store, ds *dataset.Dataset, force bool) (written, skipped int, err error) {
	for _, tool := range ds.Tools() {
		if !force {
			_, err := store.GetTool(ctx, tool.ID)
			if err == nil {
				skipped++
				continue
			}
			if !errors.Is(err, catalog.ErrNotFound) {
				return written, skipped, err
			}
		}

		if err := store.PutTool(ctx, tool); err != nil {
			return written, skipped, fmt.Errorf("failed to write tool %s: %w", tool.ID, err)
		}
		if err := store.PutPricing(ctx, tool.ID, tool.Pricing); err != nil {
			return written, skipped, fmt.Errorf("failed to write pricing of %s: %w", tool.ID, err)
		}
		if trust, ok := ds.Trust(tool.ID); ok {
			if err := store.PutTrustScore(ctx, tool.ID, trust); err != nil {
				return written, skipped, fmt.Errorf("failed to write trust score of %s: %w", tool.ID, err)
			}
		}

		logrus.WithField("tool_id", tool.ID).Debug("Seeded tool")
		written++
	}
	return written, skipped, nil
}

// exportRow is one CSV line of the catalog export
type exportRow struct {
	ID             string    `csv:"id"`
	Name           string    `csv:"name"`
	Category       string    `csv:"category"`
	OfficialURL    string    `csv:"official_url"`
	PricingModel   string    `csv:"pricing_model"`
	FreeTier       bool      `csv:"free_tier"`
	FreeLimit      string    `csv:"free_limit"`
	Watermark      bool      `csv:"watermark"`
	RequiresSignup bool      `csv:"requires_signup"`
	RequiresCard   bool      `csv:"requires_card"`
	CommercialUse  bool      `csv:"commercial_use"`
	StartPrice     string    `csv:"start_price"`
	Confidence     float64   `csv:"pricing_confidence"`
	TrendScore     int       `csv:"trend_score"`
	MentionCount   int       `csv:"mention_count"`
	FirstSeenAt    time.Time `csv:"first_seen_at"`
}

func toExportRow(t models.Tool) exportRow {
	free := t.Pricing.FreeTier.Normalized()
	return exportRow{
		ID:             t.ID,
		Name:           t.Name,
		Category:       string(t.Category),
		OfficialURL:    t.OfficialURL,
		PricingModel:   string(t.Pricing.Model),
		FreeTier:       free.Exists,
		FreeLimit:      free.Limit,
		Watermark:      free.Watermark,
		RequiresSignup: free.RequiresSignup,
		RequiresCard:   free.RequiresCard,
		CommercialUse:  free.CommercialUse,
		StartPrice:     t.Pricing.PaidTier.StartPrice,
		Confidence:     t.Pricing.Confidence,
		TrendScore:     t.TrendScore,
		MentionCount:   t.MentionCount,
		FirstSeenAt:    t.FirstSeenAt.UTC(),
	}
}

// writeExport writes tools ordered by id in the given format
func writeExport(w io.Writer, format string, tools []models.Tool) error {
	sorted := make([]models.Tool, len(tools))
	copy(sorted, tools)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(sorted)
	case "csv":
		rows := make([]exportRow, len(sorted))
		for i, t := range sorted {
			rows[i] = toExportRow(t)
		}
		data, err := csvutil.Marshal(rows)
		if err != nil {
			return fmt.Errorf("failed to encode CSV: %w", err)
		}
		_, err = w.Write(data)
		return err
	default:
		return fmt.Errorf("unknown export format %q, use csv or json", format)
	}
}
