package discovery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/findora/tool-radar/internal/catalog"
	"github.com/findora/tool-radar/internal/dataset"
	"github.com/findora/tool-radar/internal/models"
	"github.com/sirupsen/logrus"
)

var (
	// ErrNotFound is returned when neither tier knows the requested tool
	ErrNotFound = errors.New("tool not found")
	// ErrStale is returned when a newer request on the same session started
	// before this one completed. The result has been discarded.
	ErrStale = errors.New("superseded by a newer request")
)

// scanLimit bounds how many native matches are pulled from the store when
// predicates have to be evaluated before paging.
const scanLimit = 10000

// Primary is the document store as seen by the retrieval layer
type Primary interface {
	ListTools(ctx context.Context, q catalog.Query) (*catalog.Page, error)
	GetTool(ctx context.Context, id string) (*models.Tool, error)
	GetTrustScore(ctx context.Context, id string) (*models.TrustScore, error)
	CategoryCounts(ctx context.Context) ([]models.CategoryCount, error)
	AllTools(ctx context.Context) ([]models.Tool, error)
}

// Ensure the catalog store satisfies Primary
var _ Primary = (*catalog.Store)(nil)

// Request is one list request
type Request struct {
	Filters models.Filters
	Sort    models.SortOption
	Limit   int
	Offset  int
}

// Service serves tools from the document store, substituting the static
// dataset when the store fails, times out, or has nothing for a session
// that never loaded anything.
type Service struct {
	primary  Primary
	fallback *dataset.Dataset
	timeout  time.Duration
	now      func() time.Time
}

// NewService creates a retrieval service over a primary store and a static fallback
func NewService(primary Primary, fallback *dataset.Dataset, timeout time.Duration) *Service {
	return &Service{
		primary:  primary,
		fallback: fallback,
		timeout:  timeout,
		now:      time.Now,
	}
}

// List returns one page of tools. The result's Tier names the source that served it.
func (s *Service) List(ctx context.Context, session *Session, req Request) (*models.ListResult, error) {
	if session == nil {
		session = NewSession()
	}
	gen := session.begin()
	now := s.now()

	result, err := s.listPrimary(ctx, req, now)
	switch {
	case err != nil:
		logrus.WithFields(logrus.Fields{
			"sort":  req.Sort,
			"error": err.Error(),
		}).Warn("Primary store failed, serving static dataset")
		result = s.listFallback(req, now)
	case len(result.Tools) == 0 && !session.HasLoaded():
		logrus.WithField("sort", req.Sort).Warn("Primary store returned no tools before any load, serving static dataset")
		result = s.listFallback(req, now)
	}

	loaded := result.Tier == models.TierPrimary && len(result.Tools) > 0
	if !session.commit(gen, loaded) {
		return nil, ErrStale
	}

	return result, nil
}

func (s *Service) listPrimary(ctx context.Context, req Request, now time.Time) (*models.ListResult, error) {
	q := catalog.Query{
		Sort:   catalog.SortKeyFor(req.Sort),
		Limit:  req.Limit,
		Offset: req.Offset,
	}
	if len(req.Filters.Categories) == 1 {
		q.Category = req.Filters.Categories[0]
	}

	filtered := residual(req.Filters)
	if filtered {
		// page after filtering so Total and HasMore count only matches
		q.Limit, q.Offset = scanLimit, 0
	}

	page, err := within(ctx, s.timeout, func(ctx context.Context) (*catalog.Page, error) {
		return s.primary.ListTools(ctx, q)
	})
	if err != nil {
		return nil, err
	}

	tools := Apply(page.Tools, req.Filters, now)
	SortTools(tools, req.Sort)

	result := &models.ListResult{
		Tools:   tools,
		Total:   page.Total,
		HasMore: page.HasMore,
		Tier:    models.TierPrimary,
	}
	if filtered {
		if page.Total > scanLimit {
			logrus.WithFields(logrus.Fields{
				"total":      page.Total,
				"scan_limit": scanLimit,
			}).Warn("Filtered listing scanned a truncated candidate set, Total and HasMore undercount")
		}
		result.Total = len(tools)
		result.Tools, result.HasMore = paginate(tools, req.Limit, req.Offset)
	}
	return result, nil
}

func (s *Service) listFallback(req Request, now time.Time) *models.ListResult {
	tools := Apply(s.fallback.Tools(), req.Filters, now)
	SortTools(tools, req.Sort)

	page, hasMore := paginate(tools, req.Limit, req.Offset)
	return &models.ListResult{
		Tools:   page,
		Total:   len(tools),
		HasMore: hasMore,
		Tier:    models.TierFallback,
	}
}

// Get returns one tool from the store, or from the static dataset when the
// store misses or fails
func (s *Service) Get(ctx context.Context, id string) (*models.Tool, error) {
	tool, err := within(ctx, s.timeout, func(ctx context.Context) (*models.Tool, error) {
		return s.primary.GetTool(ctx, id)
	})
	if err == nil {
		return tool, nil
	}
	if !errors.Is(err, catalog.ErrNotFound) {
		logrus.WithField("tool_id", id).Warnf("Primary lookup failed: %v", err)
	}

	if t, ok := s.fallback.Find(id); ok {
		return &t, nil
	}
	return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
}

// Trust returns the trust score of a tool with the same precedence as Get
func (s *Service) Trust(ctx context.Context, id string) (*models.TrustScore, error) {
	trust, err := within(ctx, s.timeout, func(ctx context.Context) (*models.TrustScore, error) {
		return s.primary.GetTrustScore(ctx, id)
	})
	if err == nil {
		return trust, nil
	}
	if !errors.Is(err, catalog.ErrNotFound) {
		logrus.WithField("tool_id", id).Warnf("Primary trust lookup failed: %v", err)
	}

	if t, ok := s.fallback.Trust(id); ok {
		return &t, nil
	}
	return nil, fmt.Errorf("trust score for %s: %w", id, ErrNotFound)
}

// Categories counts tools per category, from the store when it has any
func (s *Service) Categories(ctx context.Context) ([]models.CategoryCount, models.Tier) {
	counts, err := within(ctx, s.timeout, s.primary.CategoryCounts)
	if err == nil && len(counts) > 0 {
		return counts, models.TierPrimary
	}
	if err != nil {
		logrus.Warnf("Primary category count failed, using static dataset: %v", err)
	}
	return catalog.CountCategories(s.fallback.Tools()), models.TierFallback
}

// Catalog returns every known tool, used to ground assistant prompts
func (s *Service) Catalog(ctx context.Context) []models.Tool {
	tools, err := within(ctx, s.timeout, s.primary.AllTools)
	if err == nil && len(tools) > 0 {
		return tools
	}
	if err != nil {
		logrus.Warnf("Primary catalog read failed, using static dataset: %v", err)
	}
	return s.fallback.Tools()
}

// within runs fn against a deadline. The first of fn's result or the
// deadline wins; fn sees the deadline through its context.
func within[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		value T
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		v, err := fn(ctx)
		done <- outcome{v, err}
	}()

	select {
	case o := <-done:
		return o.value, o.err
	case <-ctx.Done():
		var zero T
		return zero, fmt.Errorf("primary store: %w", ctx.Err())
	}
}
