package dataset

import (
	"testing"

	"github.com/findora/tool-radar/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Builtin(t *testing.T) {
	d, err := Load()
	require.NoError(t, err)
	require.NotZero(t, d.Len())

	seen := make(map[models.Category]bool)
	for _, tool := range d.Tools() {
		assert.NotEmpty(t, tool.Name, tool.ID)
		assert.NotEmpty(t, tool.OfficialURL, tool.ID)
		assert.False(t, tool.FirstSeenAt.IsZero(), tool.ID)
		assert.True(t, tool.Pricing.Model.Valid(), tool.ID)
		assert.GreaterOrEqual(t, tool.TrendScore, 0)
		assert.LessOrEqual(t, tool.TrendScore, 100)
		if !tool.Pricing.FreeTier.Exists {
			assert.Equal(t, models.FreeTier{Limit: "N/A"}, tool.Pricing.FreeTier, tool.ID)
		}

		_, ok := d.Trust(tool.ID)
		assert.True(t, ok, "missing trust for %s", tool.ID)
		seen[tool.Category] = true
	}

	for _, c := range models.Categories() {
		assert.True(t, seen[c], "no built-in tool in category %s", c)
	}
}

func TestDataset_Find(t *testing.T) {
	d := MustLoad()

	tool, ok := d.Find("midjourney")
	require.True(t, ok)
	assert.Equal(t, "Midjourney", tool.Name)
	assert.Equal(t, models.PricingPaid, tool.Pricing.Model)
	assert.False(t, tool.Pricing.FreeTier.Exists)
	assert.Equal(t, "N/A", tool.Pricing.FreeTier.Limit)

	trust, ok := d.Trust("midjourney")
	require.True(t, ok)
	assert.Equal(t, "midjourney", trust.ToolID)
	assert.Equal(t, []string{"Images used for training"}, trust.Concerns)

	_, ok = d.Find("does-not-exist")
	assert.False(t, ok)
	_, ok = d.Trust("does-not-exist")
	assert.False(t, ok)
}

func TestDataset_ToolsReturnsCopies(t *testing.T) {
	d := MustLoad()

	tools := d.Tools()
	tools[0].Name = "changed"
	tools[0].Pricing.PaidTier.BillingOptions[0] = "changed"

	again := d.Tools()
	assert.NotEqual(t, "changed", again[0].Name)
	assert.NotEqual(t, "changed", again[0].Pricing.PaidTier.BillingOptions[0])
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{
			name: "Missing id",
			data: "- name: X\n  category: Productivity\n  pricing: {model: free}\n",
		},
		{
			name: "Duplicate id",
			data: "- {id: a, category: Productivity, pricing: {model: free}}\n- {id: a, category: Productivity, pricing: {model: free}}\n",
		},
		{
			name: "Unknown category",
			data: "- {id: a, category: Games, pricing: {model: free}}\n",
		},
		{
			name: "Unknown pricing model",
			data: "- {id: a, category: Productivity, pricing: {model: donationware}}\n",
		},
		{
			name: "Not YAML list",
			data: "id: a\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}
