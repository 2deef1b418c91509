package monitoring

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/findora/tool-radar/internal/catalog"
	"github.com/findora/tool-radar/internal/config"
	"github.com/findora/tool-radar/internal/enrichment"
	"github.com/findora/tool-radar/internal/models"
	"github.com/findora/tool-radar/internal/notifications"
	"github.com/findora/tool-radar/internal/sources"
	"github.com/sirupsen/logrus"
)

const (
	trendWindow    = 7 * 24 * time.Hour
	maxRisingTools = 5
	runTimeout     = 30 * time.Minute
)

// Store is the part of the catalog the monitor reads and updates
type Store interface {
	AllTools(ctx context.Context) ([]models.Tool, error)
	UpdateTool(ctx context.Context, id string, fn func(*models.Tool)) (*models.Tool, error)
	HasMention(ctx context.Context, id string) (bool, error)
	PutMention(ctx context.Context, m models.Mention) error
	ListMentions(ctx context.Context, since time.Time) ([]models.Mention, error)
}

var _ Store = (*catalog.Store)(nil)

// Service tracks community mentions of catalogued tools and keeps their
// mention counts and trend scores current
type Service struct {
	config              *config.Config
	store               Store
	notificationService notifications.NotificationInterface
	sources             []sources.Source
	metrics             *Metrics
	mu                  sync.RWMutex
	running             sync.Mutex
	now                 func() time.Time
}

// Metrics holds monitoring metrics
type Metrics struct {
	TotalMentions   int            `json:"total_mentions"`
	LastRun         time.Time      `json:"last_run"`
	LastRunDuration string         `json:"last_run_duration"`
	SourceMetrics   map[string]int `json:"source_metrics"`
	ToolMetrics     map[string]int `json:"tool_metrics"`
	RisingTools     []string       `json:"rising_tools"`
	ErrorCount      int            `json:"error_count"`
}

// NewService creates a new monitoring service. Without explicit sources the
// configured Reddit and Hacker News sources are used.
func NewService(cfg *config.Config, store Store, notificationService notifications.NotificationInterface, srcs ...sources.Source) *Service {
	service := &Service{
		config:              cfg,
		store:               store,
		notificationService: notificationService,
		sources:             srcs,
		metrics: &Metrics{
			SourceMetrics: make(map[string]int),
			ToolMetrics:   make(map[string]int),
		},
		now: time.Now,
	}

	if len(service.sources) == 0 {
		service.initializeSources()
	}

	return service
}

func (s *Service) initializeSources() {
	s.sources = []sources.Source{
		sources.NewRedditSource(s.config.RedditClientID, s.config.RedditClientSecret, s.config.Subreddits),
		sources.NewHackerNewsSource(),
	}
}

// Sources returns the configured mention sources
func (s *Service) Sources() []sources.Source {
	return s.sources
}

// RunMonitoring fetches new mentions of every catalogued tool, stores them,
// recomputes mention counts and trend scores and sends the digest
func (s *Service) RunMonitoring(ctx context.Context) (*models.Report, error) {
	if !s.running.TryLock() {
		return nil, fmt.Errorf("a monitoring run is already in progress")
	}
	defer s.running.Unlock()

	start := s.now()
	logrus.Info("Starting monitoring run")

	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	tools, err := s.store.AllTools(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load tools: %w", err)
	}
	if len(tools) == 0 {
		logrus.Warn("No tools in the catalog, skipping monitoring run")
		return nil, nil
	}

	searchWindow := s.searchWindow()
	keywords := make([]string, 0, len(tools))
	for _, tool := range tools {
		keywords = append(keywords, tool.Name)
	}

	fetched, errorCount := s.fetchAll(ctx, keywords, searchWindow)
	logrus.Infof("Collected %d total mentions from all sources", len(fetched))

	mentions, err := s.newMentions(ctx, attribute(fetched, tools))
	if err != nil {
		return nil, err
	}

	for _, mention := range mentions {
		if err := s.store.PutMention(ctx, mention); err != nil {
			return nil, fmt.Errorf("failed to store mention %s: %w", mention.ID, err)
		}
	}

	updated, err := s.updateTrends(ctx, tools, mentions)
	if err != nil {
		return nil, err
	}

	report := s.generateReport(mentions, updated)
	s.updateMetrics(mentions, updated, report.Rising, s.now().Sub(start), errorCount)

	if s.notificationService != nil {
		if err := s.notificationService.SendReport(ctx, report); err != nil {
			logrus.Errorf("Failed to send report: %v", err)
			return report, err
		}
	}

	logrus.Infof("Monitoring run completed in %v: %d new mentions", s.now().Sub(start), len(mentions))
	return report, nil
}

// searchWindow is the look-back period for the configured schedule
func (s *Service) searchWindow() time.Duration {
	if s.config.ReportSchedule == "weekly" {
		return 7 * 24 * time.Hour
	}
	return 24 * time.Hour
}

func (s *Service) fetchAll(ctx context.Context, keywords []string, window time.Duration) ([]models.Mention, int) {
	var allMentions []models.Mention
	var wg sync.WaitGroup
	mentionsChan := make(chan []models.Mention, len(s.sources))
	errorsChan := make(chan error, len(s.sources))

	for _, source := range s.sources {
		if !source.IsEnabled() {
			logrus.Debugf("Skipping disabled source %s", source.GetName())
			continue
		}

		wg.Add(1)
		go func(src sources.Source) {
			defer wg.Done()

			logrus.Infof("Fetching mentions from %s (window: %v)", src.GetName(), window)
			mentions, err := src.FetchMentions(ctx, keywords, window)
			if err != nil {
				logrus.Errorf("Error fetching from %s: %v", src.GetName(), err)
				errorsChan <- err
			}

			logrus.Infof("Found %d mentions from %s", len(mentions), src.GetName())
			mentionsChan <- mentions
		}(source)
	}

	go func() {
		wg.Wait()
		close(mentionsChan)
		close(errorsChan)
	}()

	for mentions := range mentionsChan {
		allMentions = append(allMentions, mentions...)
	}

	errorCount := 0
	for range errorsChan {
		errorCount++
	}

	return allMentions, errorCount
}

// attribute assigns each mention to every tool whose name it matched. A
// mention of two tools becomes two records, one per tool.
func attribute(mentions []models.Mention, tools []models.Tool) []models.Mention {
	byName := make(map[string]string, len(tools))
	for _, tool := range tools {
		byName[strings.ToLower(tool.Name)] = tool.ID
	}

	var attributed []models.Mention
	for _, mention := range mentions {
		seen := make(map[string]bool)
		for _, keyword := range mention.Keywords {
			toolID, ok := byName[strings.ToLower(keyword)]
			if !ok || seen[toolID] {
				continue
			}
			seen[toolID] = true

			m := mention
			m.ID = fmt.Sprintf("%s_%s", mention.ID, toolID)
			m.ToolID = toolID
			m.Keywords = []string{keyword}
			attributed = append(attributed, m)
		}
	}
	return attributed
}

// newMentions drops duplicates within the run and mentions already stored
func (s *Service) newMentions(ctx context.Context, mentions []models.Mention) ([]models.Mention, error) {
	seen := make(map[string]bool, len(mentions))
	var fresh []models.Mention

	for _, mention := range mentions {
		if seen[mention.ID] {
			continue
		}
		seen[mention.ID] = true

		known, err := s.store.HasMention(ctx, mention.ID)
		if err != nil {
			return nil, err
		}
		if !known {
			fresh = append(fresh, mention)
		}
	}
	return fresh, nil
}

// updateTrends adds new mentions to each tool's count and recomputes the
// trend score from the mentions of the last week
func (s *Service) updateTrends(ctx context.Context, tools []models.Tool, mentions []models.Mention) ([]models.Tool, error) {
	added := make(map[string]int)
	for _, mention := range mentions {
		added[mention.ToolID]++
	}

	recentMentions, err := s.store.ListMentions(ctx, s.now().Add(-trendWindow))
	if err != nil {
		return nil, fmt.Errorf("failed to load recent mentions: %w", err)
	}
	recent := make(map[string]int)
	for _, mention := range recentMentions {
		recent[mention.ToolID]++
	}

	updated := make([]models.Tool, 0, len(tools))
	for _, tool := range tools {
		count := tool.MentionCount + added[tool.ID]
		score := enrichment.TrendScore(recent[tool.ID], count)

		if count != tool.MentionCount || score != tool.TrendScore {
			// apply the delta to the stored count so a concurrent refresh is kept
			current, err := s.store.UpdateTool(ctx, tool.ID, func(t *models.Tool) {
				t.MentionCount += added[t.ID]
				t.TrendScore = enrichment.TrendScore(recent[t.ID], t.MentionCount)
			})
			if err != nil {
				return nil, fmt.Errorf("failed to update tool %s: %w", tool.ID, err)
			}
			tool = *current
		}
		updated = append(updated, tool)
	}
	return updated, nil
}

func (s *Service) generateReport(mentions []models.Mention, tools []models.Tool) *models.Report {
	report := &models.Report{
		GeneratedAt:   s.now(),
		Period:        s.config.ReportSchedule,
		TotalMentions: len(mentions),
		Mentions:      mentions,
		Rising:        risingTools(tools, maxRisingTools),
		Summary:       make(map[string]interface{}),
	}

	names := make(map[string]string, len(tools))
	for _, tool := range tools {
		names[tool.ID] = tool.Name
	}

	sourceCount := make(map[string]int)
	toolCount := make(map[string]int)
	for _, mention := range mentions {
		sourceCount[mention.Source]++
		toolCount[names[mention.ToolID]]++
	}

	report.Summary["sources"] = sourceCount
	report.Summary["tools"] = toolCount
	report.Summary["top_sources"] = getTopSources(sourceCount)

	return report
}

// risingTools returns up to n tools with a positive trend score, highest first
func risingTools(tools []models.Tool, n int) []models.Tool {
	var rising []models.Tool
	for _, tool := range tools {
		if tool.TrendScore > 0 {
			rising = append(rising, tool)
		}
	}

	sort.SliceStable(rising, func(i, j int) bool {
		if rising[i].TrendScore != rising[j].TrendScore {
			return rising[i].TrendScore > rising[j].TrendScore
		}
		return rising[i].MentionCount > rising[j].MentionCount
	})

	if len(rising) > n {
		rising = rising[:n]
	}
	return rising
}

func getTopSources(sourceCount map[string]int) []string {
	type sourceScore struct {
		source string
		count  int
	}

	var scores []sourceScore
	for source, count := range sourceCount {
		scores = append(scores, sourceScore{source, count})
	}

	sort.Slice(scores, func(i, j int) bool {
		if scores[i].count != scores[j].count {
			return scores[i].count > scores[j].count
		}
		return scores[i].source < scores[j].source
	})

	var topSources []string
	for i, score := range scores {
		if i >= 5 {
			break
		}
		topSources = append(topSources, fmt.Sprintf("%s (%d)", score.source, score.count))
	}

	return topSources
}

func (s *Service) updateMetrics(mentions []models.Mention, tools, rising []models.Tool, duration time.Duration, errorCount int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make(map[string]string, len(tools))
	for _, tool := range tools {
		names[tool.ID] = tool.Name
	}

	s.metrics.TotalMentions = len(mentions)
	s.metrics.LastRun = s.now()
	s.metrics.LastRunDuration = duration.String()
	s.metrics.ErrorCount = errorCount

	s.metrics.SourceMetrics = make(map[string]int)
	s.metrics.ToolMetrics = make(map[string]int)
	for _, mention := range mentions {
		s.metrics.SourceMetrics[mention.Source]++
		s.metrics.ToolMetrics[names[mention.ToolID]]++
	}

	s.metrics.RisingTools = make([]string, 0, len(rising))
	for _, tool := range rising {
		s.metrics.RisingTools = append(s.metrics.RisingTools, tool.Name)
	}
}

// GetMetrics returns current metrics as JSON
func (s *Service) GetMetrics() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, _ := json.MarshalIndent(s.metrics, "", "  ")
	return string(data)
}
