package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/findora/tool-radar/internal/catalog"
	"github.com/findora/tool-radar/internal/dataset"
	"github.com/findora/tool-radar/internal/models"
	"github.com/findora/tool-radar/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedCatalog(t *testing.T) {
	ctx := context.Background()
	store := catalog.NewStore(storage.NewMemoryStorage())
	ds := dataset.MustLoad()

	written, skipped, err := seedCatalog(ctx, store, ds, false)
	require.NoError(t, err)
	assert.Equal(t, ds.Len(), written)
	assert.Zero(t, skipped)

	tool, err := store.GetTool(ctx, "midjourney")
	require.NoError(t, err)
	assert.Equal(t, models.PricingPaid, tool.Pricing.Model)
	assert.False(t, tool.Pricing.FreeTier.Exists)

	trust, err := store.GetTrustScore(ctx, "claude")
	require.NoError(t, err)
	assert.Equal(t, 88, trust.Overall)

	written, skipped, err = seedCatalog(ctx, store, ds, false)
	require.NoError(t, err)
	assert.Zero(t, written)
	assert.Equal(t, ds.Len(), skipped)

	written, skipped, err = seedCatalog(ctx, store, ds, true)
	require.NoError(t, err)
	assert.Equal(t, ds.Len(), written)
	assert.Zero(t, skipped)
}

func TestWriteExport(t *testing.T) {
	tools := []models.Tool{
		{
			ID:          "suno",
			Name:        "Suno",
			Category:    models.CategoryAudioMusic,
			OfficialURL: "https://suno.com",
			FirstSeenAt: time.Date(2024, 9, 15, 0, 0, 0, 0, time.UTC),
			TrendScore:  81,
			Pricing: models.Pricing{
				Model:      models.PricingFreemium,
				FreeTier:   models.FreeTier{Exists: true, Limit: "50 credits per day", RequiresSignup: true},
				PaidTier:   models.PaidTier{StartPrice: "$10/mo"},
				Confidence: 0.9,
			},
		},
		{
			ID:       "midjourney",
			Name:     "Midjourney",
			Category: models.CategoryImageGeneration,
			Pricing: models.Pricing{
				Model:    models.PricingPaid,
				FreeTier: models.FreeTier{Watermark: true},
			},
		},
	}

	t.Run("CSV", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeExport(&buf, "csv", tools))

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		require.Len(t, lines, 3)
		assert.True(t, strings.HasPrefix(lines[0], "id,name,category,official_url,pricing_model,free_tier,"))
		assert.True(t, strings.HasPrefix(lines[1], "midjourney,Midjourney,Image Generation,,paid,false,N/A,false,"))
		assert.True(t, strings.HasPrefix(lines[2], "suno,Suno,Audio/Music,https://suno.com,freemium,true,50 credits per day,false,true,false,false,$10/mo,"))
		assert.Contains(t, lines[2], "2024-09-15T00:00:00Z")
	})

	t.Run("JSON", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeExport(&buf, "json", tools))

		var decoded []models.Tool
		require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
		require.Len(t, decoded, 2)
		assert.Equal(t, "midjourney", decoded[0].ID)
		assert.Equal(t, "suno", decoded[1].ID)
	})

	t.Run("Unknown format", func(t *testing.T) {
		err := writeExport(&bytes.Buffer{}, "xml", tools)
		assert.ErrorContains(t, err, "unknown export format")
	})

	// the caller's slice keeps its order
	assert.Equal(t, "suno", tools[0].ID)
}

func TestPrintReport(t *testing.T) {
	report := &models.Report{
		GeneratedAt:   time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC),
		Period:        "daily",
		TotalMentions: 7,
		Mentions: []models.Mention{
			{Platform: "r/artificial", Title: "Suno v4 is wild", URL: "https://reddit.com/r/artificial/1"},
		},
		Rising:  []models.Tool{{Name: "Suno", TrendScore: 64, MentionCount: 12}},
		Summary: map[string]interface{}{"sources": map[string]int{"reddit": 5, "hackernews": 2}},
	}

	var buf bytes.Buffer
	printReport(&buf, report)
	out := buf.String()

	assert.Contains(t, out, "Generated:    2025-03-03 09:00:00 UTC")
	assert.Contains(t, out, "New mentions: 7")
	assert.Less(t, strings.Index(out, "hackernews:"), strings.Index(out, "reddit:"))
	assert.Contains(t, out, "1. Suno")
	assert.Contains(t, out, "[r/artificial] Suno v4 is wild")
}

func TestPrintAnalysis(t *testing.T) {
	tool := &models.Tool{
		ID:   "snapcut",
		Name: "SnapCut",
		Pricing: models.Pricing{
			Model:       models.PricingFreemium,
			FreeTier:    models.FreeTier{Exists: true, Watermark: true},
			Confidence:  0.55,
			Ambiguities: []string{"Credit cost per export is not stated"},
		},
	}
	trust := &models.TrustScore{Overall: 62, Concerns: []string{"Trains on user uploads"}}

	var buf bytes.Buffer
	printAnalysis(&buf, tool, trust)
	out := buf.String()

	assert.Contains(t, out, "SnapCut (snapcut)")
	assert.Contains(t, out, "freemium (confidence 0.55)")
	assert.Contains(t, out, "Free tier:   -")
	assert.Contains(t, out, "watermark=true")
	assert.Contains(t, out, "! Credit cost per export is not stated")
	assert.Contains(t, out, "Trust:       62 (Moderate Trust)")
	assert.Contains(t, out, "- Trains on user uploads")
}
