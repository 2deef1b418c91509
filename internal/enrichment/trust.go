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

const unknown = "unknown"

var (
	dataTrainingValues  = []string{"explicit", "opting-out", unknown, "no-training"}
	dataRetentionValues = []string{"permanent", "limited", "minimal", unknown}
	policyQualityValues = []string{"excellent", "good", "fair", "poor", unknown}
)

// TrustAnalyzer assesses privacy and data handling from a tool's documents
type TrustAnalyzer struct {
	gen llm.Generator
	now func() time.Time
}

// NewTrustAnalyzer creates an analyzer. A nil generator always yields the default score.
func NewTrustAnalyzer(gen llm.Generator) *TrustAnalyzer {
	return &TrustAnalyzer{gen: gen, now: time.Now}
}

// DefaultTrustScore is the neutral score used when analysis fails
func DefaultTrustScore(sourceURL string, at time.Time) models.TrustScore {
	return models.TrustScore{
		Overall:              50,
		DataTraining:         unknown,
		DataRetention:        unknown,
		CountryOfOrigin:      unknown,
		PrivacyPolicyQuality: unknown,
		ThirdPartySharing:    false,
		Compliance:           []string{},
		Concerns:             []string{"Unable to analyze documents"},
		Confidence:           0,
		AnalyzedAt:           at,
		SourceURL:            sourceURL,
	}
}

// Analyze scores a scraped site. It never fails; unusable model output
// yields DefaultTrustScore.
func (a *TrustAnalyzer) Analyze(ctx context.Context, toolName string, site *models.ScrapedSite) models.TrustScore {
	source := site.PrivacyURL
	if source == "" {
		source = site.URL
	}

	if a.gen == nil || (site.PrivacyText == "" && site.HomepageText == "") {
		return DefaultTrustScore(source, a.now())
	}

	privacy := site.PrivacyText
	if privacy == "" {
		privacy = site.HomepageText
	}

	prompt := fmt.Sprintf(`Analyze the privacy and trustworthiness of %q based on the following documents.

PRIVACY POLICY:
%s

HOMEPAGE/ABOUT:
%s

Return ONLY valid JSON:
{
  "overall": 0-100,
  "dataTraining": "explicit" | "opting-out" | "unknown" | "no-training",
  "dataRetention": "permanent" | "limited" | "minimal" | "unknown",
  "countryOfOrigin": "country name or unknown",
  "privacyPolicyQuality": "excellent" | "good" | "fair" | "poor" | "unknown",
  "thirdPartySharing": bool,
  "compliance": ["GDPR", "CCPA"],
  "concerns": ["specific concerns"],
  "confidence": 0.0-1.0
}`, toolName, truncate(privacy, maxPrivacyText), truncate(site.HomepageText, 3000))

	var score models.TrustScore
	if err := llm.GenerateJSON(ctx, a.gen, prompt, &score); err != nil {
		logrus.WithField("tool", toolName).Warnf("Trust analysis failed, using default: %v", err)
		return DefaultTrustScore(source, a.now())
	}

	score.Overall = clampScore(score.Overall)
	score.Confidence = clampConfidence(score.Confidence)
	score.DataTraining = oneOf(score.DataTraining, dataTrainingValues)
	score.DataRetention = oneOf(score.DataRetention, dataRetentionValues)
	score.PrivacyPolicyQuality = oneOf(score.PrivacyPolicyQuality, policyQualityValues)
	if strings.TrimSpace(score.CountryOfOrigin) == "" {
		score.CountryOfOrigin = unknown
	}
	score.Compliance = dedupe(score.Compliance)
	if score.Concerns == nil {
		score.Concerns = []string{}
	}
	score.AnalyzedAt = a.now()
	score.SourceURL = source

	return score
}

func oneOf(v string, allowed []string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	for _, a := range allowed {
		if v == a {
			return v
		}
	}
	return unknown
}

// dedupe drops empty and repeated tags, keeping first-seen order
func dedupe(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := []string{}
	for _, t := range tags {
		t = strings.TrimSpace(t)
		key := strings.ToUpper(t)
		if t == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, t)
	}
	return out
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
