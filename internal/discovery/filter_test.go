package discovery

import (
	"testing"
	"time"

	"github.com/findora/tool-radar/internal/dataset"
	"github.com/findora/tool-radar/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func toolWithFreeTier(id string, ft models.FreeTier) models.Tool {
	return models.Tool{
		ID:       id,
		Category: models.CategoryProductivity,
		Pricing:  models.Pricing{Model: models.PricingFreemium, FreeTier: ft},
	}
}

func TestMatches(t *testing.T) {
	now := date("2024-06-30")

	tests := []struct {
		name    string
		tool    models.Tool
		filters models.Filters
		want    bool
	}{
		{
			name:    "Truly free tier is included",
			tool:    toolWithFreeTier("a", models.FreeTier{Exists: true, RequiresCard: false, Watermark: false}),
			filters: models.Filters{TrulyFree: true},
			want:    true,
		},
		{
			name:    "Card required is not truly free",
			tool:    toolWithFreeTier("a", models.FreeTier{Exists: true, RequiresCard: true}),
			filters: models.Filters{TrulyFree: true},
			want:    false,
		},
		{
			name:    "Watermark is not truly free",
			tool:    toolWithFreeTier("a", models.FreeTier{Exists: true, Watermark: true}),
			filters: models.Filters{TrulyFree: true},
			want:    false,
		},
		{
			name:    "Missing free tier is not truly free",
			tool:    toolWithFreeTier("a", models.FreeTier{}),
			filters: models.Filters{TrulyFree: true},
			want:    false,
		},
		{
			name:    "Signup required fails no-signup",
			tool:    toolWithFreeTier("a", models.FreeTier{Exists: true, RequiresSignup: true}),
			filters: models.Filters{NoSignup: true},
			want:    false,
		},
		{
			name:    "Commercial use allowed",
			tool:    toolWithFreeTier("a", models.FreeTier{Exists: true, CommercialUse: true}),
			filters: models.Filters{CommercialUse: true},
			want:    true,
		},
		{
			name:    "Flags of a missing free tier never read as true",
			tool:    toolWithFreeTier("a", models.FreeTier{Exists: false, CommercialUse: true}),
			filters: models.Filters{CommercialUse: true},
			want:    false,
		},
		{
			name:    "Pricing model outside selected set",
			tool:    toolWithFreeTier("a", models.FreeTier{Exists: true}),
			filters: models.Filters{PricingModels: []models.PricingModel{models.PricingFree, models.PricingPaid}},
			want:    false,
		},
		{
			name:    "Category inside selected set",
			tool:    toolWithFreeTier("a", models.FreeTier{}),
			filters: models.Filters{Categories: []models.Category{models.CategoryAudioMusic, models.CategoryProductivity}},
			want:    true,
		},
		{
			name:    "Freshness window excludes older tools",
			tool:    models.Tool{FirstSeenAt: date("2024-06-01")},
			filters: models.Filters{Freshness: models.FreshnessWeek},
			want:    false,
		},
		{
			name:    "Freshness window admits recent tools",
			tool:    models.Tool{FirstSeenAt: date("2024-06-29")},
			filters: models.Filters{Freshness: models.FreshnessWeek},
			want:    true,
		},
		{
			name:    "Freshness all admits everything",
			tool:    models.Tool{FirstSeenAt: date("2001-01-01")},
			filters: models.Filters{Freshness: models.FreshnessAll},
			want:    true,
		},
		{
			name:    "Empty filters pass through",
			tool:    models.Tool{},
			filters: models.Filters{},
			want:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Matches(tt.tool, tt.filters, now))
		})
	}
}

func TestApply_ConjunctiveSubset(t *testing.T) {
	tools := dataset.MustLoad().Tools()
	now := date("2024-12-01")

	predicates := []models.Filters{
		{TrulyFree: true},
		{NoSignup: true},
		{CommercialUse: true},
		{PricingModels: []models.PricingModel{models.PricingFreemium}},
		{Categories: []models.Category{models.CategoryWritingAssistant, models.CategoryImageGeneration}},
		{Freshness: models.FreshnessMonth},
	}

	// every combination of the six predicates
	for mask := 0; mask < 1<<len(predicates); mask++ {
		var combined models.Filters
		var active []models.Filters
		for i, p := range predicates {
			if mask&(1<<i) == 0 {
				continue
			}
			active = append(active, p)
			combined.TrulyFree = combined.TrulyFree || p.TrulyFree
			combined.NoSignup = combined.NoSignup || p.NoSignup
			combined.CommercialUse = combined.CommercialUse || p.CommercialUse
			if p.PricingModels != nil {
				combined.PricingModels = p.PricingModels
			}
			if p.Categories != nil {
				combined.Categories = p.Categories
			}
			if p.Freshness != "" {
				combined.Freshness = p.Freshness
			}
		}

		got := Apply(tools, combined, now)
		require.LessOrEqual(t, len(got), len(tools))

		for _, tool := range got {
			assert.Contains(t, tools, tool)
			for _, p := range active {
				assert.True(t, Matches(tool, p, now), "mask %b: %s fails %+v", mask, tool.ID, p)
			}
		}
	}
}

func TestSortTools_RecentExample(t *testing.T) {
	tools := []models.Tool{
		{ID: "a", FirstSeenAt: date("2024-01-01")},
		{ID: "b", FirstSeenAt: date("2024-06-01")},
		{ID: "c", FirstSeenAt: date("2023-12-01")},
	}

	SortTools(tools, models.SortRecent)

	assert.Equal(t, date("2024-06-01"), tools[0].FirstSeenAt)
	assert.Equal(t, date("2024-01-01"), tools[1].FirstSeenAt)
	assert.Equal(t, date("2023-12-01"), tools[2].FirstSeenAt)
}

func TestSortTools_Monotonic(t *testing.T) {
	base := dataset.MustLoad().Tools()

	for _, option := range []models.SortOption{models.SortRising, models.SortRecent, models.SortEstablished} {
		t.Run(string(option), func(t *testing.T) {
			tools := append([]models.Tool(nil), base...)
			SortTools(tools, option)

			for i := 1; i < len(tools); i++ {
				prev, cur := tools[i-1], tools[i]
				switch option {
				case models.SortRising:
					assert.GreaterOrEqual(t, prev.TrendScore, cur.TrendScore)
				case models.SortEstablished:
					assert.GreaterOrEqual(t, prev.MentionCount, cur.MentionCount)
				case models.SortRecent:
					assert.False(t, prev.FirstSeenAt.Before(cur.FirstSeenAt))
				}
			}
		})
	}
}

func TestSortTools_StableTies(t *testing.T) {
	tools := []models.Tool{
		{ID: "first", TrendScore: 50},
		{ID: "top", TrendScore: 80},
		{ID: "second", TrendScore: 50},
		{ID: "third", TrendScore: 50},
	}

	SortTools(tools, models.SortRising)

	var ids []string
	for _, tool := range tools {
		ids = append(ids, tool.ID)
	}
	assert.Equal(t, []string{"top", "first", "second", "third"}, ids)
}

func TestPaginate(t *testing.T) {
	tools := make([]models.Tool, 5)

	page, more := paginate(tools, 2, 0)
	assert.Len(t, page, 2)
	assert.True(t, more)

	page, more = paginate(tools, 2, 4)
	assert.Len(t, page, 1)
	assert.False(t, more)

	page, more = paginate(tools, 0, 0)
	assert.Empty(t, page)
	assert.True(t, more)

	page, more = paginate(tools, 3, 10)
	assert.Empty(t, page)
	assert.False(t, more)
}
