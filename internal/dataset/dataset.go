package dataset

import (
	_ "embed"
	"fmt"

	"github.com/findora/tool-radar/internal/models"
	"gopkg.in/yaml.v3"
)

//go:embed tools.yaml
var builtin []byte

type entry struct {
	models.Tool `yaml:",inline"`
	Trust       *models.TrustScore `yaml:"trust"`
}

// Dataset is the static, read-only tool catalog used as the secondary data tier
type Dataset struct {
	tools []models.Tool
	trust map[string]models.TrustScore
	index map[string]int
}

// Load parses the built-in catalog
func Load() (*Dataset, error) {
	return Parse(builtin)
}

// MustLoad is like Load but panics if the built-in catalog is malformed
func MustLoad() *Dataset {
	d, err := Load()
	if err != nil {
		panic(err)
	}
	return d
}

// Parse builds a dataset from YAML. Ids must be unique and categories and
// pricing models must be known.
func Parse(data []byte) (*Dataset, error) {
	var entries []entry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse dataset: %w", err)
	}

	d := &Dataset{
		tools: make([]models.Tool, 0, len(entries)),
		trust: make(map[string]models.TrustScore),
		index: make(map[string]int),
	}

	for i, e := range entries {
		tool := e.Tool
		if tool.ID == "" {
			return nil, fmt.Errorf("dataset entry %d has no id", i)
		}
		if _, dup := d.index[tool.ID]; dup {
			return nil, fmt.Errorf("duplicate dataset id %q", tool.ID)
		}
		if !tool.Category.Valid() {
			return nil, fmt.Errorf("tool %s: unknown category %q", tool.ID, tool.Category)
		}
		if !tool.Pricing.Model.Valid() {
			return nil, fmt.Errorf("tool %s: unknown pricing model %q", tool.ID, tool.Pricing.Model)
		}

		tool.Pricing.FreeTier = tool.Pricing.FreeTier.Normalized()
		if tool.Pricing.PaidTier.StartPrice == "" {
			tool.Pricing.PaidTier.StartPrice = "N/A"
		}
		if tool.Pricing.PaidTier.BillingOptions == nil {
			tool.Pricing.PaidTier.BillingOptions = []string{}
		}
		if tool.Pricing.SourceURL == "" {
			tool.Pricing.SourceURL = tool.OfficialURL
		}
		if tool.Pricing.LastCheckedAt.IsZero() {
			tool.Pricing.LastCheckedAt = tool.LastVerifiedAt
		}

		d.index[tool.ID] = len(d.tools)
		d.tools = append(d.tools, tool)

		if e.Trust != nil {
			trust := *e.Trust
			trust.ToolID = tool.ID
			if trust.AnalyzedAt.IsZero() {
				trust.AnalyzedAt = tool.LastVerifiedAt
			}
			d.trust[tool.ID] = trust
		}
	}

	return d, nil
}

// Len returns the number of tools in the dataset
func (d *Dataset) Len() int {
	return len(d.tools)
}

// Tools returns a copy of every tool in file order
func (d *Dataset) Tools() []models.Tool {
	out := make([]models.Tool, len(d.tools))
	for i, t := range d.tools {
		out[i] = copyTool(t)
	}
	return out
}

// Find returns the tool with the given id
func (d *Dataset) Find(id string) (models.Tool, bool) {
	i, ok := d.index[id]
	if !ok {
		return models.Tool{}, false
	}
	return copyTool(d.tools[i]), true
}

// Trust returns the trust score of the tool with the given id
func (d *Dataset) Trust(id string) (models.TrustScore, bool) {
	t, ok := d.trust[id]
	if !ok {
		return models.TrustScore{}, false
	}
	t.Compliance = append([]string(nil), t.Compliance...)
	t.Concerns = append([]string(nil), t.Concerns...)
	return t, true
}

func copyTool(t models.Tool) models.Tool {
	t.Pricing.PaidTier.BillingOptions = append([]string{}, t.Pricing.PaidTier.BillingOptions...)
	if t.Pricing.Ambiguities != nil {
		t.Pricing.Ambiguities = append([]string(nil), t.Pricing.Ambiguities...)
	}
	return t
}
