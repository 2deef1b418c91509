package enrichment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/findora/tool-radar/internal/catalog"
	"github.com/findora/tool-radar/internal/models"
	"github.com/findora/tool-radar/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFetcher serves canned pages; unknown URLs fail
type fakeFetcher struct {
	mu      sync.Mutex
	pages   map[string]string
	fetched []string
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, url)
	html, ok := f.pages[url]
	if !ok {
		return "", fmt.Errorf("fetching %s returned status 404", url)
	}
	return html, nil
}

// routedGenerator answers by prompt type
type routedGenerator struct {
	pricing  string
	trust    string
	category string
	err      error
}

func (g *routedGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	switch {
	case strings.Contains(prompt, "pricing transparency"):
		return g.pricing, nil
	case strings.Contains(prompt, "trustworthiness"):
		return g.trust, nil
	case strings.Contains(prompt, "Which category"):
		return g.category, nil
	}
	return "", errors.New("unexpected prompt")
}

const homepage = `<html><head><title>Snapcut | AI background removal</title>
<meta name="description" content="Remove backgrounds in one click.">
<script>var tracking = "pricing";</script><style>.x{}</style></head>
<body>
  <nav><a href="/pricing">Pricing</a> <a href="https://help.snapcut.io/faq">FAQ</a> <a href="/legal/privacy">Privacy</a></nav>
  <h1>Remove   backgrounds</h1>
  <p>Fast and
  free.</p>
  <noscript>Enable JS</noscript>
</body></html>`

func snapcutFetcher() *fakeFetcher {
	return &fakeFetcher{pages: map[string]string{
		"https://snapcut.io":               homepage,
		"https://snapcut.io/pricing":       `<body><h2>Free</h2><p>50 images a month, no card.</p></body>`,
		"https://snapcut.io/legal/privacy": `<body><p>We never train on your images. GDPR compliant.</p></body>`,
	}}
}

const pricingJSON = `{"pricingModel":"freemium","freeTier":{"exists":true,"limit":"50 images a month","watermark":false,"requiresSignup":true,"requiresCard":false,"commercialUse":true,"attribution":false},"paidTier":{"startPrice":"$9/month","billingOptions":["monthly"]},"confidence":0.9,"ambiguities":[]}`

const trustReply = `{"overall":81,"dataTraining":"No-Training","dataRetention":"minimal","countryOfOrigin":"Germany","privacyPolicyQuality":"good","thirdPartySharing":false,"compliance":["GDPR","gdpr",""],"concerns":null,"confidence":0.8}`

func TestScraper_Scrape(t *testing.T) {
	fetcher := snapcutFetcher()
	site, err := NewScraper(fetcher).Scrape(context.Background(), "https://snapcut.io")
	require.NoError(t, err)

	assert.Equal(t, "Snapcut | AI background removal", site.Title)
	assert.Equal(t, "Remove backgrounds in one click.", site.Description)
	assert.Equal(t, "Pricing FAQ Privacy Remove backgrounds Fast and free.", site.HomepageText)
	assert.NotContains(t, site.HomepageText, "tracking")
	assert.NotContains(t, site.HomepageText, "Enable JS")

	assert.Equal(t, "https://snapcut.io/pricing", site.PricingURL)
	assert.Equal(t, "Free 50 images a month, no card.", site.PricingText)
	assert.Equal(t, "https://snapcut.io/legal/privacy", site.PrivacyURL)
	assert.Contains(t, site.PrivacyText, "never train")

	// FAQ lives on another host that is not served: best effort only
	assert.Empty(t, site.FAQText)
	assert.Contains(t, fetcher.fetched, "https://help.snapcut.io/faq")
}

func TestScraper_NoLinksAndCaps(t *testing.T) {
	long := strings.Repeat("word ", 5000)
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://plain.ai": "<body><p>" + long + "</p></body>",
	}}

	site, err := NewScraper(fetcher).Scrape(context.Background(), "https://plain.ai")
	require.NoError(t, err)

	assert.Len(t, []rune(site.HomepageText), maxHomepageText)
	assert.Equal(t, site.HomepageText, site.PricingText)
	assert.Empty(t, site.PricingURL)
	assert.Empty(t, site.PrivacyText)
}

func TestScraper_Errors(t *testing.T) {
	scraper := NewScraper(&fakeFetcher{})

	_, err := scraper.Scrape(context.Background(), "not a url")
	assert.Error(t, err)

	_, err = scraper.Scrape(context.Background(), "https://down.example")
	assert.Error(t, err)
}

func TestVisibleText(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{name: "Heading then paragraph", html: "<body><h2>Free</h2><p>50 images a month</p></body>", want: "Free 50 images a month"},
		{name: "List items", html: "<body><ul><li>Pro</li><li>Team</li></ul></body>", want: "Pro Team"},
		{name: "Table cells", html: "<body><table><tr><td>$9</td><td>monthly</td></tr></table></body>", want: "$9 monthly"},
		{name: "Inline elements stay joined", html: "<body><p>Un<b>limited</b> <a href=\"/x\">exports</a>.</p></body>", want: "Unlimited exports."},
		{name: "Line breaks", html: "<body><p>one<br>two</p></body>", want: "one two"},
		{name: "Scripts and comments dropped", html: "<body><script>var a=1</script><!-- note --><div>kept</div><style>p{}</style></body>", want: "kept"},
		{name: "Fragment without body", html: "<div>a</div><div>b</div>", want: "a b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := goquery.NewDocumentFromReader(strings.NewReader(tt.html))
			require.NoError(t, err)
			assert.Equal(t, tt.want, VisibleText(doc))
		})
	}
}

func TestClassifier_Pricing(t *testing.T) {
	site := &models.ScrapedSite{
		URL:          "https://snapcut.io",
		PricingURL:   "https://snapcut.io/pricing",
		HomepageText: "Remove backgrounds",
		PricingText:  "Free 50 images a month",
	}

	tests := []struct {
		name        string
		gen         *routedGenerator
		wantModel   models.PricingModel
		wantDefault bool
	}{
		{name: "Valid reply", gen: &routedGenerator{pricing: pricingJSON}, wantModel: models.PricingFreemium},
		{name: "Model error", gen: &routedGenerator{err: errors.New("quota")}, wantModel: models.PricingPaid, wantDefault: true},
		{name: "Not JSON", gen: &routedGenerator{pricing: "It is freemium."}, wantModel: models.PricingPaid, wantDefault: true},
		{name: "Unknown model", gen: &routedGenerator{pricing: `{"pricingModel":"unknown","freeTier":{"exists":false}}`}, wantModel: models.PricingPaid, wantDefault: true},
		{name: "Missing free tier", gen: &routedGenerator{pricing: `{"pricingModel":"free"}`}, wantModel: models.PricingPaid, wantDefault: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewClassifier(tt.gen).Pricing(context.Background(), site)

			assert.Equal(t, tt.wantModel, p.Model)
			assert.Equal(t, "https://snapcut.io/pricing", p.SourceURL)
			assert.False(t, p.LastCheckedAt.IsZero())
			if tt.wantDefault {
				assert.Zero(t, p.Confidence)
				assert.False(t, p.FreeTier.Exists)
				assert.Equal(t, "N/A", p.FreeTier.Limit)
				assert.NotEmpty(t, p.Ambiguities)
			} else {
				assert.Equal(t, 0.9, p.Confidence)
				assert.Equal(t, "$9/month", p.PaidTier.StartPrice)
				assert.True(t, p.FreeTier.CommercialUse)
			}
		})
	}
}

func TestClassifier_PricingNormalizesAndClamps(t *testing.T) {
	gen := &routedGenerator{pricing: `{"pricingModel":"paid","freeTier":{"exists":false,"commercialUse":true,"requiresSignup":true},"paidTier":{},"confidence":3}`}
	p := NewClassifier(gen).Pricing(context.Background(), &models.ScrapedSite{URL: "https://x.io", HomepageText: "x"})

	assert.Equal(t, models.FreeTier{Limit: "N/A"}, p.FreeTier)
	assert.Equal(t, 1.0, p.Confidence)
	assert.Equal(t, "N/A", p.PaidTier.StartPrice)
	assert.Equal(t, []string{}, p.PaidTier.BillingOptions)
}

func TestClassifier_WithoutModelOrContent(t *testing.T) {
	site := &models.ScrapedSite{URL: "https://x.io"}

	p := NewClassifier(nil).Pricing(context.Background(), site)
	assert.Equal(t, models.PricingPaid, p.Model)

	p = NewClassifier(&routedGenerator{pricing: pricingJSON}).Pricing(context.Background(), site)
	assert.Equal(t, models.PricingPaid, p.Model)
	assert.Equal(t, []string{"No website content available"}, p.Ambiguities)
}

func TestClassifier_Category(t *testing.T) {
	site := &models.ScrapedSite{Title: "Snapcut"}

	assert.Equal(t, models.CategoryImageEditing,
		NewClassifier(&routedGenerator{category: `{"category":"Image Editing"}`}).Category(context.Background(), site))
	assert.Equal(t, models.CategoryProductivity,
		NewClassifier(&routedGenerator{category: `{"category":"Games"}`}).Category(context.Background(), site))
	assert.Equal(t, models.CategoryProductivity, NewClassifier(nil).Category(context.Background(), site))
}

func TestTrustAnalyzer_Analyze(t *testing.T) {
	site := &models.ScrapedSite{
		URL:          "https://snapcut.io",
		PrivacyURL:   "https://snapcut.io/legal/privacy",
		HomepageText: "Remove backgrounds",
		PrivacyText:  "We never train on your images.",
	}

	score := NewTrustAnalyzer(&routedGenerator{trust: trustReply}).Analyze(context.Background(), "Snapcut", site)
	assert.Equal(t, 81, score.Overall)
	assert.Equal(t, "no-training", score.DataTraining)
	assert.Equal(t, "minimal", score.DataRetention)
	assert.Equal(t, []string{"GDPR"}, score.Compliance)
	assert.Equal(t, []string{}, score.Concerns)
	assert.Equal(t, "https://snapcut.io/legal/privacy", score.SourceURL)

	clamped := NewTrustAnalyzer(&routedGenerator{trust: `{"overall":140,"dataTraining":"sometimes","confidence":-1}`}).
		Analyze(context.Background(), "Snapcut", site)
	assert.Equal(t, 100, clamped.Overall)
	assert.Equal(t, "unknown", clamped.DataTraining)
	assert.Equal(t, "unknown", clamped.CountryOfOrigin)
	assert.Zero(t, clamped.Confidence)
}

func TestTrustAnalyzer_Default(t *testing.T) {
	site := &models.ScrapedSite{URL: "https://snapcut.io", HomepageText: "x"}

	for _, gen := range []*routedGenerator{nil, {err: errors.New("down")}, {trust: "no"}} {
		var a *TrustAnalyzer
		if gen == nil {
			a = NewTrustAnalyzer(nil)
		} else {
			a = NewTrustAnalyzer(gen)
		}
		score := a.Analyze(context.Background(), "Snapcut", site)
		assert.Equal(t, 50, score.Overall)
		assert.Equal(t, "unknown", score.DataTraining)
		assert.Equal(t, "unknown", score.DataRetention)
		assert.Equal(t, "unknown", score.PrivacyPolicyQuality)
		assert.Equal(t, []string{"Unable to analyze documents"}, score.Concerns)
		assert.Zero(t, score.Confidence)
	}
}

func TestTrendScore(t *testing.T) {
	tests := []struct {
		recent, total, want int
	}{
		{recent: 0, total: 0, want: 0},
		{recent: 5, total: 10, want: 50},
		{recent: 1, total: 3, want: 33},
		{recent: 2, total: 3, want: 67},
		{recent: 3, total: 0, want: 30},
		{recent: 25, total: 0, want: 100},
		{recent: 12, total: 10, want: 100},
		{recent: -4, total: 10, want: 0},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d of %d", tt.recent, tt.total), func(t *testing.T) {
			assert.Equal(t, tt.want, TrendScore(tt.recent, tt.total))
		})
	}
}

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"ChatGPT":                "chatgpt",
		"GitHub Copilot":         "github-copilot",
		"remove.bg":              "remove-bg",
		"  Stable Diffusion 3! ": "stable-diffusion-3",
		"***":                    "tool",
	}
	for in, want := range tests {
		assert.Equal(t, want, Slugify(in), in)
	}
}

func TestToolName(t *testing.T) {
	assert.Equal(t, "Snapcut", toolName(&models.ScrapedSite{Title: "Snapcut | AI background removal"}))
	assert.Equal(t, "snapcut", toolName(&models.ScrapedSite{URL: "https://www.snapcut.io/"}))
}

func newTestPipeline(fetcher Fetcher, gen *routedGenerator) (*Pipeline, *catalog.Store) {
	store := catalog.NewStore(storage.NewMemoryStorage())
	return NewPipeline(store, NewScraper(fetcher), NewClassifier(gen), NewTrustAnalyzer(gen), 2), store
}

func TestPipeline_SubmitAndProcess(t *testing.T) {
	gen := &routedGenerator{pricing: pricingJSON, trust: trustReply, category: `{"category":"Image Editing"}`}
	pipeline, store := newTestPipeline(snapcutFetcher(), gen)
	ctx := context.Background()

	_, err := pipeline.Submit(ctx, "ftp://snapcut.io", "")
	assert.ErrorIs(t, err, ErrInvalidURL)

	job, err := pipeline.Submit(ctx, "https://snapcut.io", "")
	require.NoError(t, err)
	assert.Equal(t, models.JobPending, job.Status)
	assert.NotEmpty(t, job.ID)

	done, err := pipeline.ProcessPending(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, done)

	job, err = pipeline.Job(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobCompleted, job.Status)
	assert.Equal(t, "snapcut", job.ToolID)

	tool, err := store.GetTool(ctx, "snapcut")
	require.NoError(t, err)
	assert.Equal(t, "Snapcut", tool.Name)
	assert.Equal(t, models.CategoryImageEditing, tool.Category)
	assert.Equal(t, "Remove backgrounds in one click.", tool.Description)
	assert.Equal(t, models.PricingFreemium, tool.Pricing.Model)
	assert.False(t, tool.LastVerifiedAt.IsZero())

	trust, err := store.GetTrustScore(ctx, "snapcut")
	require.NoError(t, err)
	assert.Equal(t, 81, trust.Overall)

	// a second submission of the same URL reuses the tool
	_, err = pipeline.Submit(ctx, "https://snapcut.io", "")
	require.NoError(t, err)
	_, err = pipeline.ProcessPending(ctx, 10)
	require.NoError(t, err)
	tools, err := store.AllTools(ctx)
	require.NoError(t, err)
	assert.Len(t, tools, 1)
}

func TestPipeline_AnalyzeToolDegradesOnScrapeFailure(t *testing.T) {
	pipeline, store := newTestPipeline(&fakeFetcher{}, &routedGenerator{pricing: pricingJSON, trust: trustReply})
	ctx := context.Background()

	tool := models.Tool{ID: "offline", Name: "Offline", Category: models.CategoryProductivity, OfficialURL: "https://offline.example", FirstSeenAt: time.Now()}
	require.NoError(t, store.PutTool(ctx, tool))

	result, err := pipeline.AnalyzeTool(ctx, tool)
	require.NoError(t, err)
	assert.Equal(t, models.PricingPaid, result.Pricing.Model)
	assert.Zero(t, result.Pricing.Confidence)
	assert.Equal(t, 50, result.Trust.Overall)

	stored, err := store.GetPricing(ctx, "offline")
	require.NoError(t, err)
	assert.Equal(t, models.PricingPaid, stored.Model)
}

func TestPipeline_AnalyzeToolKeepsConcurrentWrites(t *testing.T) {
	tests := []struct {
		name        string
		stored      bool
		wantMention int
		wantTrend   int
	}{
		{name: "Counts written after the snapshot survive", stored: true, wantMention: 9, wantTrend: 40},
		{name: "Unknown tool is written from the snapshot", stored: false, wantMention: 2, wantTrend: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pipeline, store := newTestPipeline(snapcutFetcher(), &routedGenerator{pricing: pricingJSON, trust: trustReply})
			ctx := context.Background()

			snapshot := models.Tool{ID: "snapcut", Name: "Snapcut", Category: models.CategoryImageEditing, OfficialURL: "https://snapcut.io", MentionCount: 2, TrendScore: 5}
			if tt.stored {
				// a monitoring run lands between the snapshot and the write back
				later := snapshot
				later.MentionCount, later.TrendScore = 9, 40
				require.NoError(t, store.PutTool(ctx, later))
			}

			result, err := pipeline.AnalyzeTool(ctx, snapshot)
			require.NoError(t, err)
			assert.Equal(t, tt.wantMention, result.Tool.MentionCount)
			assert.Equal(t, models.PricingFreemium, result.Tool.Pricing.Model)

			stored, err := store.GetTool(ctx, "snapcut")
			require.NoError(t, err)
			assert.Equal(t, tt.wantMention, stored.MentionCount)
			assert.Equal(t, tt.wantTrend, stored.TrendScore)
			assert.False(t, stored.LastVerifiedAt.IsZero())
		})
	}
}

func TestPipeline_RefreshAll(t *testing.T) {
	pipeline, store := newTestPipeline(snapcutFetcher(), &routedGenerator{pricing: pricingJSON, trust: trustReply})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, store.PutTool(ctx, models.Tool{
			ID:          fmt.Sprintf("tool-%d", i),
			Name:        fmt.Sprintf("Tool %d", i),
			OfficialURL: "https://snapcut.io",
			Category:    models.CategoryImageEditing,
		}))
	}

	refreshed, err := pipeline.RefreshAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, refreshed)

	for i := 0; i < 5; i++ {
		tool, err := store.GetTool(ctx, fmt.Sprintf("tool-%d", i))
		require.NoError(t, err)
		assert.Equal(t, models.PricingFreemium, tool.Pricing.Model)
		assert.False(t, tool.LastVerifiedAt.IsZero())
	}
}
