package models

import "time"

// Category is the fixed set of tool categories
type Category string

const (
	CategoryImageEditing     Category = "Image Editing"
	CategoryImageGeneration  Category = "Image Generation"
	CategoryVideoEditing     Category = "Video Editing"
	CategoryWritingAssistant Category = "Writing Assistant"
	CategoryCodeGeneration   Category = "Code Generation"
	CategoryAudioMusic       Category = "Audio/Music"
	Category3DDesign         Category = "3D/Design"
	CategoryProductivity     Category = "Productivity"
)

// Categories returns every category in display order
func Categories() []Category {
	return []Category{
		CategoryImageEditing,
		CategoryImageGeneration,
		CategoryVideoEditing,
		CategoryWritingAssistant,
		CategoryCodeGeneration,
		CategoryAudioMusic,
		Category3DDesign,
		CategoryProductivity,
	}
}

// Valid reports whether c is one of the known categories
func (c Category) Valid() bool {
	for _, known := range Categories() {
		if c == known {
			return true
		}
	}
	return false
}

// PricingModel describes how a tool charges
type PricingModel string

const (
	PricingFree      PricingModel = "free"
	PricingFreemium  PricingModel = "freemium"
	PricingPaid      PricingModel = "paid"
	PricingTrialOnly PricingModel = "trial_only"
)

// Valid reports whether m is one of the known pricing models
func (m PricingModel) Valid() bool {
	switch m {
	case PricingFree, PricingFreemium, PricingPaid, PricingTrialOnly:
		return true
	}
	return false
}

// SortOption is the user-facing sort order
type SortOption string

const (
	SortRising      SortOption = "rising"
	SortRecent      SortOption = "recent"
	SortEstablished SortOption = "established"
)

// Valid reports whether s is one of the known sort options
func (s SortOption) Valid() bool {
	switch s {
	case SortRising, SortRecent, SortEstablished:
		return true
	}
	return false
}

// Freshness is a relative recency window applied to FirstSeenAt
type Freshness string

const (
	FreshnessDay   Freshness = "24h"
	FreshnessWeek  Freshness = "7d"
	FreshnessMonth Freshness = "30d"
	FreshnessAll   Freshness = "all"
)

// Window returns the duration covered by f, or zero for "all" and unset
func (f Freshness) Window() time.Duration {
	switch f {
	case FreshnessDay:
		return 24 * time.Hour
	case FreshnessWeek:
		return 7 * 24 * time.Hour
	case FreshnessMonth:
		return 30 * 24 * time.Hour
	}
	return 0
}

// Valid reports whether f is empty or a known window
func (f Freshness) Valid() bool {
	switch f {
	case "", FreshnessDay, FreshnessWeek, FreshnessMonth, FreshnessAll:
		return true
	}
	return false
}

// FreeTier describes what a tool offers without payment
type FreeTier struct {
	Exists         bool   `json:"exists" yaml:"exists"`
	Limit          string `json:"limit" yaml:"limit"`
	Watermark      bool   `json:"watermark" yaml:"watermark"`
	RequiresSignup bool   `json:"requiresSignup" yaml:"requiresSignup"`
	RequiresCard   bool   `json:"requiresCard" yaml:"requiresCard"`
	CommercialUse  bool   `json:"commercialUse" yaml:"commercialUse"`
	Attribution    bool   `json:"attribution" yaml:"attribution"`
}

// Normalized returns the tier with every flag cleared when no free tier exists.
// Flags of a missing tier are never meaningful and must not read as true.
func (f FreeTier) Normalized() FreeTier {
	if f.Exists {
		if f.Limit == "" {
			f.Limit = "Unspecified"
		}
		return f
	}
	return FreeTier{Limit: "N/A"}
}

// PaidTier describes the cheapest paid plan
type PaidTier struct {
	StartPrice     string   `json:"startPrice" yaml:"startPrice"`
	BillingOptions []string `json:"billingOptions" yaml:"billingOptions"`
}

// Pricing is the pricing transparency record of a tool
type Pricing struct {
	Model         PricingModel `json:"model" yaml:"model"`
	FreeTier      FreeTier     `json:"freeTier" yaml:"freeTier"`
	PaidTier      PaidTier     `json:"paidTier" yaml:"paidTier"`
	Confidence    float64      `json:"confidence" yaml:"confidence"`
	SourceURL     string       `json:"sourceUrl" yaml:"sourceUrl"`
	LastCheckedAt time.Time    `json:"lastCheckedAt" yaml:"lastCheckedAt"`
	Ambiguities   []string     `json:"ambiguities,omitempty" yaml:"ambiguities,omitempty"`
}

// DefaultPricing is used when a tool has no pricing record yet
func DefaultPricing() Pricing {
	return Pricing{
		Model:    PricingFree,
		FreeTier: FreeTier{}.Normalized(),
		PaidTier: PaidTier{StartPrice: "N/A", BillingOptions: []string{}},
	}
}

// Tool is a directory entry merged with its pricing record
type Tool struct {
	ID             string    `json:"id" yaml:"id"`
	Name           string    `json:"name" yaml:"name"`
	Description    string    `json:"description" yaml:"description"`
	Category       Category  `json:"category" yaml:"category"`
	OfficialURL    string    `json:"officialUrl" yaml:"officialUrl"`
	FirstSeenAt    time.Time `json:"firstSeenAt" yaml:"firstSeenAt"`
	LastVerifiedAt time.Time `json:"lastVerifiedAt" yaml:"lastVerifiedAt"`
	MentionCount   int       `json:"mentionCount" yaml:"mentionCount"`
	TrendScore     int       `json:"trendScore" yaml:"trendScore"`
	Pricing        Pricing   `json:"pricing" yaml:"pricing"`
}

// TrustScore is the privacy and data handling assessment of a tool
type TrustScore struct {
	ToolID               string    `json:"toolId" yaml:"-"`
	Overall              int       `json:"overall" yaml:"overall"`
	DataTraining         string    `json:"dataTraining" yaml:"dataTraining"`
	DataRetention        string    `json:"dataRetention" yaml:"dataRetention"`
	CountryOfOrigin      string    `json:"countryOfOrigin" yaml:"countryOfOrigin"`
	PrivacyPolicyQuality string    `json:"privacyPolicyQuality" yaml:"privacyPolicyQuality"`
	ThirdPartySharing    bool      `json:"thirdPartySharing" yaml:"thirdPartySharing"`
	Compliance           []string  `json:"compliance" yaml:"compliance"`
	Concerns             []string  `json:"concerns" yaml:"concerns"`
	Confidence           float64   `json:"confidence" yaml:"confidence"`
	AnalyzedAt           time.Time `json:"analyzedAt" yaml:"analyzedAt"`
	SourceURL            string    `json:"sourceUrl" yaml:"sourceUrl"`
}

// TrustLabel maps an overall score to its badge label
func TrustLabel(score int) string {
	switch {
	case score >= 80:
		return "High Trust"
	case score >= 60:
		return "Moderate Trust"
	case score >= 40:
		return "Low Trust"
	}
	return "Very Low Trust"
}

// Filters are the client-held list filters. The zero value applies no predicate.
type Filters struct {
	TrulyFree     bool           `json:"trulyFree"`
	NoSignup      bool           `json:"noSignup"`
	CommercialUse bool           `json:"commercialUse"`
	PricingModels []PricingModel `json:"pricingModels,omitempty"`
	Categories    []Category     `json:"categories,omitempty"`
	Freshness     Freshness      `json:"freshness,omitempty"`
}

// Tier names the data source that served a request
type Tier string

const (
	TierPrimary  Tier = "primary"
	TierFallback Tier = "fallback"
)

// ListResult is one page of tools
type ListResult struct {
	Tools   []Tool `json:"tools"`
	Total   int    `json:"total"`
	HasMore bool   `json:"hasMore"`
	Tier    Tier   `json:"tier"`
}

// CategoryCount is the number of tools in a category
type CategoryCount struct {
	Name  Category `json:"name"`
	Count int      `json:"count"`
}

// Mention represents a mention of a tool found on a community platform
type Mention struct {
	ID           string    `json:"id"`
	ToolID       string    `json:"tool_id"`
	Source       string    `json:"source"`   // "reddit", "hackernews"
	Platform     string    `json:"platform"` // subreddit or site name
	Title        string    `json:"title"`
	Content      string    `json:"content"`
	Author       string    `json:"author"`
	URL          string    `json:"url"`
	CreatedAt    time.Time `json:"created_at"`
	Score        int       `json:"score"`
	CommentCount int       `json:"comment_count"`
	Keywords     []string  `json:"keywords"`
}

// Report is the digest of a monitoring run
type Report struct {
	GeneratedAt   time.Time              `json:"generated_at"`
	Period        string                 `json:"period"` // "daily" or "weekly"
	TotalMentions int                    `json:"total_mentions"`
	Mentions      []Mention              `json:"mentions"`
	Rising        []Tool                 `json:"rising"`
	Summary       map[string]interface{} `json:"summary"`
}

// JobStatus is the lifecycle state of an analysis job
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// AnalysisJob is a queued request to scrape and classify a tool site
type AnalysisJob struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	ToolID    string    `json:"toolId,omitempty"`
	Status    JobStatus `json:"status"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ScrapedSite holds the visible text extracted from a tool website
type ScrapedSite struct {
	URL          string    `json:"url"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	PricingURL   string    `json:"pricingUrl,omitempty"`
	PrivacyURL   string    `json:"privacyUrl,omitempty"`
	HomepageText string    `json:"homepageText"`
	PricingText  string    `json:"pricingText"`
	FAQText      string    `json:"faqText"`
	PrivacyText  string    `json:"privacyText"`
	ScrapedAt    time.Time `json:"scrapedAt"`
}

// WorkflowStep is one step of a generated workflow
type WorkflowStep struct {
	StepNumber      int             `json:"stepNumber"`
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	RecommendedTool RecommendedTool `json:"recommendedTool"`
	Pricing         StepPricing     `json:"pricing"`
	EstimatedTime   string          `json:"estimatedTime,omitempty"`
}

// RecommendedTool is the tool suggested for a workflow step
type RecommendedTool struct {
	Name   string `json:"name"`
	ToolID string `json:"toolId,omitempty"`
	Reason string `json:"reason"`
}

// StepPricing summarises the cost of a workflow step
type StepPricing struct {
	Cost              string `json:"cost"`
	FreeTierAvailable bool   `json:"freeTierAvailable"`
	Notes             string `json:"notes,omitempty"`
}

// Workflow is a multi-step plan for reaching a goal with catalog tools
type Workflow struct {
	Steps         []WorkflowStep `json:"steps"`
	EstimatedTime string         `json:"estimatedTime"`
	TotalCost     string         `json:"totalCost"`
	Summary       string         `json:"summary"`
}

// TaskMatch is the result of a plain-language task search
type TaskMatch struct {
	ToolIDs   []string `json:"toolIds"`
	Reasoning string   `json:"reasoning"`
}
