package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/findora/tool-radar/internal/models"
	"github.com/findora/tool-radar/internal/storage"
	"github.com/sirupsen/logrus"
)

// ErrNotFound is returned when a tool, trust score or job does not exist
var ErrNotFound = errors.New("not found")

// SortKey is a native store ordering. All orderings are descending.
type SortKey string

const (
	SortFreshness SortKey = "freshness" // firstSeenAt
	SortTrending  SortKey = "trending"  // trendScore
	SortMentions  SortKey = "mentions"  // mentionCount
)

// SortKeyFor translates a user-facing sort option into a store ordering
func SortKeyFor(option models.SortOption) SortKey {
	switch option {
	case models.SortRising:
		return SortTrending
	case models.SortEstablished:
		return SortMentions
	case models.SortRecent:
		return SortFreshness
	}
	return SortFreshness
}

// Query selects a page of tools. Category is the only predicate the store
// evaluates itself; everything else is left to the caller.
type Query struct {
	Category models.Category
	Sort     SortKey
	Limit    int
	Offset   int
}

// Page is one page of a tools query
type Page struct {
	Tools   []models.Tool
	Total   int
	HasMore bool
}

// Store reads and writes tool, pricing and trust documents keyed by tool id
type Store struct {
	storage storage.StorageInterface
	now     func() time.Time

	// toolMu serializes tool document writes so read-modify-write updates
	// from refreshes and monitoring runs do not overwrite each other
	toolMu sync.Mutex
}

// NewStore creates a document store accessor over the given persistence backend
func NewStore(s storage.StorageInterface) *Store {
	return &Store{storage: s, now: time.Now}
}

// ListTools returns the requested page of tools merged with their pricing
func (s *Store) ListTools(ctx context.Context, q Query) (*Page, error) {
	ids, docs, err := s.loadTools(ctx)
	if err != nil {
		return nil, err
	}

	type entry struct {
		id  string
		doc toolDocument
	}
	var matching []entry
	for i, doc := range docs {
		if q.Category != "" && doc.Category != q.Category {
			continue
		}
		matching = append(matching, entry{ids[i], doc})
	}

	sort.SliceStable(matching, func(i, j int) bool {
		a, b := matching[i].doc, matching[j].doc
		switch q.Sort {
		case SortTrending:
			return a.TrendScore > b.TrendScore
		case SortMentions:
			return a.MentionCount > b.MentionCount
		default:
			return a.FirstSeenAt.After(b.FirstSeenAt)
		}
	})

	page := &Page{Tools: []models.Tool{}, Total: len(matching)}
	if q.Limit <= 0 || q.Offset >= len(matching) {
		page.HasMore = q.Limit <= 0 && q.Offset < len(matching)
		return page, nil
	}

	offset := q.Offset
	if offset < 0 {
		offset = 0
	}
	end := offset + q.Limit
	if end > len(matching) {
		end = len(matching)
	}
	page.HasMore = len(matching) > end

	for _, e := range matching[offset:end] {
		pricing, err := s.pricingOrDefault(ctx, e.id)
		if err != nil {
			return nil, err
		}
		page.Tools = append(page.Tools, e.doc.tool(e.id, pricing))
	}

	return page, nil
}

// GetTool returns one tool merged with its pricing
func (s *Store) GetTool(ctx context.Context, id string) (*models.Tool, error) {
	var doc toolDocument
	if err := s.get(ctx, toolKey(id), &doc); err != nil {
		return nil, err
	}

	pricing, err := s.pricingOrDefault(ctx, id)
	if err != nil {
		return nil, err
	}

	tool := doc.tool(id, pricing)
	return &tool, nil
}

// AllTools returns every tool merged with its pricing, in id order
func (s *Store) AllTools(ctx context.Context) ([]models.Tool, error) {
	ids, docs, err := s.loadTools(ctx)
	if err != nil {
		return nil, err
	}

	tools := make([]models.Tool, 0, len(docs))
	for i, doc := range docs {
		pricing, err := s.pricingOrDefault(ctx, ids[i])
		if err != nil {
			return nil, err
		}
		tools = append(tools, doc.tool(ids[i], pricing))
	}
	return tools, nil
}

// FindByURL returns the tool whose official URL matches rawURL
func (s *Store) FindByURL(ctx context.Context, rawURL string) (*models.Tool, error) {
	want := normalizeURL(rawURL)
	ids, docs, err := s.loadTools(ctx)
	if err != nil {
		return nil, err
	}

	for i, doc := range docs {
		if normalizeURL(doc.OfficialURL) == want {
			return s.GetTool(ctx, ids[i])
		}
	}
	return nil, fmt.Errorf("tool with url %s: %w", rawURL, ErrNotFound)
}

// CategoryCounts counts tools per category, largest first
func (s *Store) CategoryCounts(ctx context.Context) ([]models.CategoryCount, error) {
	_, docs, err := s.loadTools(ctx)
	if err != nil {
		return nil, err
	}

	tools := make([]models.Tool, len(docs))
	for i, doc := range docs {
		tools[i] = models.Tool{Category: doc.Category}
	}
	return CountCategories(tools), nil
}

// CountCategories counts tools per category, largest first, ties by name
func CountCategories(tools []models.Tool) []models.CategoryCount {
	counts := make(map[models.Category]int)
	for _, t := range tools {
		if t.Category != "" {
			counts[t.Category]++
		}
	}

	result := make([]models.CategoryCount, 0, len(counts))
	for name, count := range counts {
		result = append(result, models.CategoryCount{Name: name, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Name < result[j].Name
	})
	return result
}

// PutTool writes the tool document. The embedded pricing is not written; use PutPricing.
func (s *Store) PutTool(ctx context.Context, tool models.Tool) error {
	if tool.ID == "" {
		return fmt.Errorf("tool id is required")
	}
	if tool.FirstSeenAt.IsZero() {
		tool.FirstSeenAt = s.now()
	}

	s.toolMu.Lock()
	defer s.toolMu.Unlock()
	return s.put(ctx, toolKey(tool.ID), newToolDocument(tool))
}

// UpdateTool applies fn to the current tool document and writes it back.
// Only the fields fn changes are affected by concurrent writers.
func (s *Store) UpdateTool(ctx context.Context, id string, fn func(*models.Tool)) (*models.Tool, error) {
	s.toolMu.Lock()
	defer s.toolMu.Unlock()

	tool, err := s.GetTool(ctx, id)
	if err != nil {
		return nil, err
	}
	fn(tool)
	tool.ID = id

	if err := s.put(ctx, toolKey(id), newToolDocument(*tool)); err != nil {
		return nil, err
	}
	return tool, nil
}

// PutPricing writes the pricing document of a tool
func (s *Store) PutPricing(ctx context.Context, toolID string, pricing models.Pricing) error {
	if pricing.LastCheckedAt.IsZero() {
		pricing.LastCheckedAt = s.now()
	}
	return s.put(ctx, pricingKey(toolID), newPricingDocument(toolID, pricing))
}

// GetPricing returns the stored pricing of a tool
func (s *Store) GetPricing(ctx context.Context, toolID string) (*models.Pricing, error) {
	var doc pricingDocument
	if err := s.get(ctx, pricingKey(toolID), &doc); err != nil {
		return nil, err
	}
	p := doc.pricing()
	return &p, nil
}

// PutTrustScore writes the trust score of a tool
func (s *Store) PutTrustScore(ctx context.Context, toolID string, trust models.TrustScore) error {
	trust.ToolID = toolID
	if trust.AnalyzedAt.IsZero() {
		trust.AnalyzedAt = s.now()
	}
	return s.put(ctx, trustKey(toolID), trust)
}

// GetTrustScore returns the trust score of a tool
func (s *Store) GetTrustScore(ctx context.Context, toolID string) (*models.TrustScore, error) {
	var trust models.TrustScore
	if err := s.get(ctx, trustKey(toolID), &trust); err != nil {
		return nil, err
	}
	trust.ToolID = toolID
	return &trust, nil
}

// PutMention records a mention; the mention id is the document key
func (s *Store) PutMention(ctx context.Context, m models.Mention) error {
	if m.ID == "" {
		return fmt.Errorf("mention id is required")
	}
	return s.put(ctx, mentionKey(m.ID), m)
}

// HasMention reports whether a mention with this id was already recorded
func (s *Store) HasMention(ctx context.Context, id string) (bool, error) {
	_, err := s.storage.Retrieve(ctx, mentionKey(id))
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read mention %s: %w", id, err)
	}
	return true, nil
}

// ListMentions returns mentions created at or after since
func (s *Store) ListMentions(ctx context.Context, since time.Time) ([]models.Mention, error) {
	keys, err := s.storage.List(ctx, mentionsCollection)
	if err != nil {
		return nil, fmt.Errorf("failed to list mentions: %w", err)
	}

	var mentions []models.Mention
	for _, key := range keys {
		var m models.Mention
		if err := s.get(ctx, key, &m); err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		if !m.CreatedAt.Before(since) {
			mentions = append(mentions, m)
		}
	}
	return mentions, nil
}

// PutJob writes an analysis job
func (s *Store) PutJob(ctx context.Context, job models.AnalysisJob) error {
	if job.ID == "" {
		return fmt.Errorf("job id is required")
	}
	job.UpdatedAt = s.now()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = job.UpdatedAt
	}
	return s.put(ctx, jobKey(job.ID), job)
}

// GetJob returns one analysis job
func (s *Store) GetJob(ctx context.Context, id string) (*models.AnalysisJob, error) {
	var job models.AnalysisJob
	if err := s.get(ctx, jobKey(id), &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// ListJobs returns up to limit jobs in the given status, oldest first
func (s *Store) ListJobs(ctx context.Context, status models.JobStatus, limit int) ([]models.AnalysisJob, error) {
	keys, err := s.storage.List(ctx, jobsCollection)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	var jobs []models.AnalysisJob
	for _, key := range keys {
		var job models.AnalysisJob
		if err := s.get(ctx, key, &job); err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		if job.Status == status {
			jobs = append(jobs, job)
		}
	}

	sort.SliceStable(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.Before(jobs[j].CreatedAt)
	})
	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

func (s *Store) loadTools(ctx context.Context) ([]string, []toolDocument, error) {
	keys, err := s.storage.List(ctx, toolsCollection)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list tools: %w", err)
	}
	sort.Strings(keys)

	ids := make([]string, 0, len(keys))
	docs := make([]toolDocument, 0, len(keys))
	for _, key := range keys {
		var doc toolDocument
		if err := s.get(ctx, key, &doc); err != nil {
			if errors.Is(err, ErrNotFound) {
				// removed between list and read
				continue
			}
			return nil, nil, err
		}
		ids = append(ids, strings.TrimSuffix(strings.TrimPrefix(key, toolsCollection), ".json"))
		docs = append(docs, doc)
	}
	return ids, docs, nil
}

func (s *Store) pricingOrDefault(ctx context.Context, toolID string) (models.Pricing, error) {
	p, err := s.GetPricing(ctx, toolID)
	if errors.Is(err, ErrNotFound) {
		return models.DefaultPricing(), nil
	}
	if err != nil {
		return models.Pricing{}, err
	}
	return *p, nil
}

func (s *Store) get(ctx context.Context, key string, out interface{}) error {
	data, err := s.storage.Retrieve(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%s: %w", key, ErrNotFound)
		}
		return fmt.Errorf("failed to read %s: %w", key, err)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return nil
}

func (s *Store) put(ctx context.Context, key string, doc interface{}) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}

	if err := s.storage.Store(ctx, key, data); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}

	logrus.Debugf("Wrote %s (%d bytes)", key, len(data))
	return nil
}

func normalizeURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return strings.ToLower(strings.TrimRight(strings.TrimSpace(raw), "/"))
	}
	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	return host + strings.TrimRight(u.Path, "/")
}
