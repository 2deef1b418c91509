package enrichment

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync/atomic"
	"time"
	"unicode"

	"github.com/findora/tool-radar/internal/catalog"
	"github.com/findora/tool-radar/internal/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ErrInvalidURL is returned by Submit for anything but an absolute http(s) URL
var ErrInvalidURL = errors.New("invalid url")

// Store is the part of the document store the pipeline writes to
type Store interface {
	GetTool(ctx context.Context, id string) (*models.Tool, error)
	PutTool(ctx context.Context, tool models.Tool) error
	UpdateTool(ctx context.Context, id string, fn func(*models.Tool)) (*models.Tool, error)
	PutPricing(ctx context.Context, toolID string, pricing models.Pricing) error
	PutTrustScore(ctx context.Context, toolID string, trust models.TrustScore) error
	AllTools(ctx context.Context) ([]models.Tool, error)
	FindByURL(ctx context.Context, rawURL string) (*models.Tool, error)
	PutJob(ctx context.Context, job models.AnalysisJob) error
	GetJob(ctx context.Context, id string) (*models.AnalysisJob, error)
	ListJobs(ctx context.Context, status models.JobStatus, limit int) ([]models.AnalysisJob, error)
}

// Ensure the catalog store satisfies Store
var _ Store = (*catalog.Store)(nil)

// Result is the outcome of analysing one tool
type Result struct {
	Tool    models.Tool
	Pricing models.Pricing
	Trust   models.TrustScore
}

// Pipeline scrapes tool websites, classifies pricing and trust and writes
// the results back keyed by tool id
type Pipeline struct {
	store       Store
	scraper     *Scraper
	classifier  *Classifier
	analyzer    *TrustAnalyzer
	concurrency int
	now         func() time.Time
}

// NewPipeline wires the enrichment steps together
func NewPipeline(store Store, scraper *Scraper, classifier *Classifier, analyzer *TrustAnalyzer, concurrency int) *Pipeline {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Pipeline{
		store:       store,
		scraper:     scraper,
		classifier:  classifier,
		analyzer:    analyzer,
		concurrency: concurrency,
		now:         time.Now,
	}
}

// AnalyzeTool re-verifies one tool from its official URL
func (p *Pipeline) AnalyzeTool(ctx context.Context, tool models.Tool) (*Result, error) {
	return p.analyze(ctx, tool, p.scrape(ctx, tool.OfficialURL))
}

func (p *Pipeline) scrape(ctx context.Context, rawURL string) *models.ScrapedSite {
	site, err := p.scraper.Scrape(ctx, rawURL)
	if err != nil {
		logrus.WithField("url", rawURL).Warnf("Scrape failed, classifying without content: %v", err)
		return &models.ScrapedSite{URL: rawURL, ScrapedAt: p.now()}
	}
	return site
}

func (p *Pipeline) analyze(ctx context.Context, tool models.Tool, site *models.ScrapedSite) (*Result, error) {
	pricing := p.classifier.Pricing(ctx, site)
	trust := p.analyzer.Analyze(ctx, tool.Name, site)

	if err := p.store.PutPricing(ctx, tool.ID, pricing); err != nil {
		return nil, err
	}
	if err := p.store.PutTrustScore(ctx, tool.ID, trust); err != nil {
		return nil, err
	}

	verifiedAt := p.now()
	current, err := p.store.UpdateTool(ctx, tool.ID, func(t *models.Tool) { t.LastVerifiedAt = verifiedAt })
	switch {
	case err == nil:
		tool = *current
	case errors.Is(err, catalog.ErrNotFound):
		tool.LastVerifiedAt = verifiedAt
		if err := p.store.PutTool(ctx, tool); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}
	tool.Pricing = pricing

	logrus.WithFields(logrus.Fields{
		"tool_id":            tool.ID,
		"pricing_model":      pricing.Model,
		"pricing_confidence": pricing.Confidence,
		"trust_overall":      trust.Overall,
	}).Info("Analyzed tool")

	return &Result{Tool: tool, Pricing: pricing, Trust: trust}, nil
}

// Submit queues a URL for analysis
func (p *Pipeline) Submit(ctx context.Context, rawURL, toolID string) (*models.AnalysisJob, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w %q: must be an absolute http(s) URL", ErrInvalidURL, rawURL)
	}

	job := models.AnalysisJob{
		ID:     uuid.NewString(),
		URL:    u.String(),
		ToolID: toolID,
		Status: models.JobPending,
	}
	if err := p.store.PutJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to queue job: %w", err)
	}

	stored, err := p.store.GetJob(ctx, job.ID)
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{"job_id": job.ID, "url": job.URL}).Info("Queued analysis job")
	return stored, nil
}

// Job returns a queued or finished analysis job
func (p *Pipeline) Job(ctx context.Context, id string) (*models.AnalysisJob, error) {
	return p.store.GetJob(ctx, id)
}

// ProcessPending runs up to limit pending jobs and returns how many completed
func (p *Pipeline) ProcessPending(ctx context.Context, limit int) (int, error) {
	jobs, err := p.store.ListJobs(ctx, models.JobPending, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to list pending jobs: %w", err)
	}

	completed := 0
	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			return completed, err
		}
		if p.processJob(ctx, job) {
			completed++
		}
	}

	if len(jobs) > 0 {
		logrus.Infof("Processed %d analysis jobs, %d completed", len(jobs), completed)
	}
	return completed, nil
}

func (p *Pipeline) processJob(ctx context.Context, job models.AnalysisJob) bool {
	log := logrus.WithFields(logrus.Fields{"job_id": job.ID, "url": job.URL})

	job.Status = models.JobProcessing
	if err := p.store.PutJob(ctx, job); err != nil {
		log.Errorf("Failed to mark job processing: %v", err)
		return false
	}

	site := p.scrape(ctx, job.URL)

	tool, err := p.resolveTool(ctx, job, site)
	if err == nil {
		_, err = p.analyze(ctx, *tool, site)
	}

	if err != nil {
		log.Errorf("Analysis job failed: %v", err)
		job.Status = models.JobFailed
		job.Error = err.Error()
	} else {
		job.Status = models.JobCompleted
		job.ToolID = tool.ID
		job.Error = ""
	}

	if err := p.store.PutJob(ctx, job); err != nil {
		log.Errorf("Failed to record job status: %v", err)
		return false
	}
	return job.Status == models.JobCompleted
}

// resolveTool finds the tool a job refers to, creating it when the URL is new
func (p *Pipeline) resolveTool(ctx context.Context, job models.AnalysisJob, site *models.ScrapedSite) (*models.Tool, error) {
	if job.ToolID != "" {
		tool, err := p.store.GetTool(ctx, job.ToolID)
		if err == nil {
			return tool, nil
		}
		if !errors.Is(err, catalog.ErrNotFound) {
			return nil, err
		}
	} else {
		tool, err := p.store.FindByURL(ctx, job.URL)
		if err == nil {
			return tool, nil
		}
		if !errors.Is(err, catalog.ErrNotFound) {
			return nil, err
		}
	}

	name := toolName(site)
	id := job.ToolID
	if id == "" {
		var err error
		if id, err = p.freeID(ctx, Slugify(name)); err != nil {
			return nil, err
		}
	}

	now := p.now()
	tool := models.Tool{
		ID:          id,
		Name:        name,
		Description: site.Description,
		Category:    p.classifier.Category(ctx, site),
		OfficialURL: job.URL,
		FirstSeenAt: now,
	}
	if tool.Description == "" {
		tool.Description = truncate(site.HomepageText, 200)
	}
	if err := p.store.PutTool(ctx, tool); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{"tool_id": id, "category": tool.Category}).Info("Discovered new tool")
	return &tool, nil
}

func (p *Pipeline) freeID(ctx context.Context, base string) (string, error) {
	id := base
	for i := 2; i < 100; i++ {
		_, err := p.store.GetTool(ctx, id)
		if errors.Is(err, catalog.ErrNotFound) {
			return id, nil
		}
		if err != nil {
			return "", err
		}
		id = fmt.Sprintf("%s-%d", base, i)
	}
	return base + "-" + uuid.NewString()[:8], nil
}

// RefreshAll re-verifies every tool with bounded concurrency. Failures of
// individual tools are logged and do not stop the run.
func (p *Pipeline) RefreshAll(ctx context.Context) (int, error) {
	tools, err := p.store.AllTools(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load tools: %w", err)
	}

	var refreshed int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	for _, tool := range tools {
		tool := tool
		g.Go(func() error {
			if _, err := p.AnalyzeTool(gctx, tool); err != nil {
				logrus.WithField("tool_id", tool.ID).Errorf("Refresh failed: %v", err)
				return nil
			}
			atomic.AddInt64(&refreshed, 1)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return int(refreshed), err
	}

	logrus.Infof("Refreshed %d of %d tools", refreshed, len(tools))
	return int(refreshed), ctx.Err()
}

// Slugify turns a tool name into an id: lower case, runs of anything other
// than letters and digits become a single dash
func Slugify(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}

	slug := strings.TrimSuffix(b.String(), "-")
	if slug == "" {
		return "tool"
	}
	return slug
}

// toolName picks a display name from the page title, or the host when there is none
func toolName(site *models.ScrapedSite) string {
	title := site.Title
	for _, sep := range []string{" | ", " - ", " – ", ": "} {
		if i := strings.Index(title, sep); i > 0 {
			title = title[:i]
		}
	}
	if title = strings.TrimSpace(title); title != "" {
		return title
	}

	if u, err := url.Parse(site.URL); err == nil && u.Host != "" {
		host := strings.TrimPrefix(u.Hostname(), "www.")
		if i := strings.Index(host, "."); i > 0 {
			host = host[:i]
		}
		return host
	}
	return "Untitled tool"
}
