package catalog

import (
	"time"

	"github.com/findora/tool-radar/internal/models"
)

// Collection key prefixes
const (
	toolsCollection    = "tools/"
	pricingCollection  = "pricing/"
	trustCollection    = "trust_scores/"
	mentionsCollection = "mentions/"
	jobsCollection     = "analysis_jobs/"
)

// toolDocument is the persisted shape of a tools/<id> document
type toolDocument struct {
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	Category       models.Category `json:"category"`
	OfficialURL    string          `json:"officialUrl"`
	FirstSeenAt    time.Time       `json:"firstSeenAt"`
	LastVerifiedAt time.Time       `json:"lastVerifiedAt"`
	MentionCount   int             `json:"mentionCount"`
	TrendScore     int             `json:"trendScore"`
}

// pricingDocument is the persisted shape of a pricing/<id> document
type pricingDocument struct {
	ToolID        string              `json:"toolId"`
	PricingModel  models.PricingModel `json:"pricingModel"`
	FreeTier      models.FreeTier     `json:"freeTier"`
	PaidTier      models.PaidTier     `json:"paidTier"`
	Confidence    float64             `json:"confidence"`
	SourceURL     string              `json:"sourceUrl"`
	LastCheckedAt time.Time           `json:"lastCheckedAt"`
	Ambiguities   []string            `json:"ambiguities,omitempty"`
}

func newToolDocument(t models.Tool) toolDocument {
	return toolDocument{
		Name:           t.Name,
		Description:    t.Description,
		Category:       t.Category,
		OfficialURL:    t.OfficialURL,
		FirstSeenAt:    t.FirstSeenAt,
		LastVerifiedAt: t.LastVerifiedAt,
		MentionCount:   t.MentionCount,
		TrendScore:     t.TrendScore,
	}
}

func (d toolDocument) tool(id string, pricing models.Pricing) models.Tool {
	mentions := d.MentionCount
	if mentions < 0 {
		mentions = 0
	}
	return models.Tool{
		ID:             id,
		Name:           d.Name,
		Description:    d.Description,
		Category:       d.Category,
		OfficialURL:    d.OfficialURL,
		FirstSeenAt:    d.FirstSeenAt,
		LastVerifiedAt: d.LastVerifiedAt,
		MentionCount:   mentions,
		TrendScore:     clampScore(d.TrendScore),
		Pricing:        pricing,
	}
}

func newPricingDocument(toolID string, p models.Pricing) pricingDocument {
	return pricingDocument{
		ToolID:        toolID,
		PricingModel:  p.Model,
		FreeTier:      p.FreeTier.Normalized(),
		PaidTier:      p.PaidTier,
		Confidence:    p.Confidence,
		SourceURL:     p.SourceURL,
		LastCheckedAt: p.LastCheckedAt,
		Ambiguities:   p.Ambiguities,
	}
}

func (d pricingDocument) pricing() models.Pricing {
	p := models.Pricing{
		Model:         d.PricingModel,
		FreeTier:      d.FreeTier.Normalized(),
		PaidTier:      d.PaidTier,
		Confidence:    d.Confidence,
		SourceURL:     d.SourceURL,
		LastCheckedAt: d.LastCheckedAt,
		Ambiguities:   d.Ambiguities,
	}
	if !p.Model.Valid() {
		p.Model = models.PricingFree
	}
	if p.PaidTier.StartPrice == "" {
		p.PaidTier.StartPrice = "N/A"
	}
	if p.PaidTier.BillingOptions == nil {
		p.PaidTier.BillingOptions = []string{}
	}
	return p
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func toolKey(id string) string    { return toolsCollection + id + ".json" }
func pricingKey(id string) string { return pricingCollection + id + ".json" }
func trustKey(id string) string   { return trustCollection + id + ".json" }
func mentionKey(id string) string { return mentionsCollection + id + ".json" }
func jobKey(id string) string     { return jobsCollection + id + ".json" }
