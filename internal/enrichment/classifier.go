package enrichment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/findora/tool-radar/internal/llm"
	"github.com/findora/tool-radar/internal/models"
	"github.com/sirupsen/logrus"
)

// Classifier turns scraped website text into a pricing record and a category
type Classifier struct {
	gen llm.Generator
	now func() time.Time
}

// NewClassifier creates a classifier. A nil generator always yields the default record.
func NewClassifier(gen llm.Generator) *Classifier {
	return &Classifier{gen: gen, now: time.Now}
}

type pricingReply struct {
	PricingModel models.PricingModel `json:"pricingModel"`
	FreeTier     *models.FreeTier    `json:"freeTier"`
	PaidTier     models.PaidTier     `json:"paidTier"`
	Confidence   float64             `json:"confidence"`
	Ambiguities  []string            `json:"ambiguities"`
}

// DefaultPricing is the conservative record used when classification fails:
// assume the tool is paid and has no free tier.
func DefaultPricing(sourceURL, reason string, at time.Time) models.Pricing {
	return models.Pricing{
		Model:         models.PricingPaid,
		FreeTier:      models.FreeTier{}.Normalized(),
		PaidTier:      models.PaidTier{StartPrice: "N/A", BillingOptions: []string{}},
		Confidence:    0,
		SourceURL:     sourceURL,
		LastCheckedAt: at,
		Ambiguities:   []string{reason},
	}
}

// Pricing classifies the pricing of a scraped site. It never fails; unusable
// model output yields DefaultPricing.
func (c *Classifier) Pricing(ctx context.Context, site *models.ScrapedSite) models.Pricing {
	source := site.PricingURL
	if source == "" {
		source = site.URL
	}

	if c.gen == nil {
		return DefaultPricing(source, "AI classification unavailable", c.now())
	}
	if site.HomepageText == "" && site.PricingText == "" {
		return DefaultPricing(source, "No website content available", c.now())
	}

	var reply pricingReply
	if err := llm.GenerateJSON(ctx, c.gen, pricingPrompt(site), &reply); err != nil {
		logrus.WithField("url", site.URL).Warnf("Pricing classification failed, using default: %v", err)
		return DefaultPricing(source, "Classification failed: "+err.Error(), c.now())
	}
	if !reply.PricingModel.Valid() || reply.FreeTier == nil {
		logrus.WithField("url", site.URL).Warnf("Pricing classification returned invalid structure (model %q)", reply.PricingModel)
		return DefaultPricing(source, "Classification returned an invalid structure", c.now())
	}

	pricing := models.Pricing{
		Model:         reply.PricingModel,
		FreeTier:      reply.FreeTier.Normalized(),
		PaidTier:      reply.PaidTier,
		Confidence:    clampConfidence(reply.Confidence),
		SourceURL:     source,
		LastCheckedAt: c.now(),
		Ambiguities:   reply.Ambiguities,
	}
	if pricing.PaidTier.StartPrice == "" {
		pricing.PaidTier.StartPrice = "N/A"
	}
	if pricing.PaidTier.BillingOptions == nil {
		pricing.PaidTier.BillingOptions = []string{}
	}
	return pricing
}

// Category guesses the category of a newly discovered tool. Productivity is
// used when the model is unavailable or unsure.
func (c *Classifier) Category(ctx context.Context, site *models.ScrapedSite) models.Category {
	if c.gen == nil {
		return models.CategoryProductivity
	}

	var names []string
	for _, cat := range models.Categories() {
		names = append(names, fmt.Sprintf("%q", cat))
	}

	prompt := fmt.Sprintf(`Which category best describes this AI tool?

Title: %s
Description: %s
Homepage text:
%s

Respond with JSON only: {"category": one of %s}`,
		site.Title, site.Description, truncate(site.HomepageText, 3000), strings.Join(names, " | "))

	var reply struct {
		Category models.Category `json:"category"`
	}
	if err := llm.GenerateJSON(ctx, c.gen, prompt, &reply); err != nil || !reply.Category.Valid() {
		return models.CategoryProductivity
	}
	return reply.Category
}

func pricingPrompt(site *models.ScrapedSite) string {
	return fmt.Sprintf(`You are a pricing transparency analyzer for an AI tool directory.
Analyze the following website content and extract pricing information.

Homepage text:
%s

Pricing page text:
%s

FAQ text:
%s

Return ONLY valid JSON in this format:
{
  "pricingModel": "free" | "freemium" | "paid" | "trial_only",
  "freeTier": {"exists": bool, "limit": "", "watermark": bool, "requiresSignup": bool,
               "requiresCard": bool, "commercialUse": bool, "attribution": bool},
  "paidTier": {"startPrice": "e.g. $19/month or N/A", "billingOptions": ["monthly", "annual"]},
  "confidence": 0.0-1.0,
  "ambiguities": ["anything unclear"]
}

Rules: if no free tier exists set exists to false. Lower confidence and note ambiguities when unsure.
Watermark is true only if explicitly mentioned. requiresCard is true only if a card is needed for the free tier.`,
		truncate(site.HomepageText, 5000), truncate(site.PricingText, 5000), truncate(site.FAQText, 3000))
}

func clampConfidence(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
