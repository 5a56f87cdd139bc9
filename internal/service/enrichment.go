package service

import (
	"context"
	"errors"
	"time"

	"github.com/timmy/shotlens/internal/domain"
	"github.com/timmy/shotlens/internal/logger"
)

var (
	// ErrEnrichmentUnavailable is returned when no web searcher is configured.
	ErrEnrichmentUnavailable = errors.New("web search enrichment is not configured")
	// ErrNothingToEnrich is returned when a screenshot's bucket or content yields no query.
	ErrNothingToEnrich = errors.New("screenshot has nothing to enrich")
)

// EnrichmentService attaches web search results to processed screenshots.
type EnrichmentService struct {
	searcher    WebSearcher
	screenshots ScreenshotStore
	maxResults  int
	now         func() time.Time
}

// NewEnrichmentService creates an EnrichmentService. searcher may be nil.
func NewEnrichmentService(searcher WebSearcher, screenshots ScreenshotStore, maxResults int) *EnrichmentService {
	return &EnrichmentService{
		searcher:    searcher,
		screenshots: screenshots,
		maxResults:  maxResults,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// EnrichmentQuery picks the web search query for a screenshot. Travel screenshots
// search for their first place (or first entity), shopping screenshots for their
// first product. Other buckets return "".
func EnrichmentQuery(s *domain.Screenshot) string {
	switch s.Bucket {
	case domain.BucketTravel:
		for _, p := range s.Extracted.Places {
			if p.Name != "" {
				return TravelQuery(p.Name)
			}
		}
		for _, e := range s.Extracted.Entities {
			if e != "" {
				return TravelQuery(e)
			}
		}
	case domain.BucketShopping:
		for _, p := range s.Extracted.Products {
			if p != "" {
				return ProductQuery(p)
			}
		}
	}
	return ""
}

// Enrich runs a web search for a stored screenshot and saves the results on it.
// An empty result set is returned but not saved.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - screenshotID: id of a processed screenshot.
//
// Returns:
//   - *domain.SearchResultsMetadata: the query and its results.
//   - error: repository.ErrNotFound, ErrEnrichmentUnavailable, ErrNothingToEnrich, or a search/store error.
func (s *EnrichmentService) Enrich(ctx context.Context, screenshotID string) (*domain.SearchResultsMetadata, error) {
	if s.searcher == nil {
		return nil, ErrEnrichmentUnavailable
	}
	record, err := s.screenshots.GetByID(ctx, screenshotID)
	if err != nil {
		return nil, err
	}
	ctx = logger.SetScreenshotID(ctx, record.ID)

	query := EnrichmentQuery(record)
	if query == "" {
		return nil, ErrNothingToEnrich
	}

	start := time.Now()
	results, err := s.searcher.Search(ctx, query, s.maxResults)
	if err != nil {
		return nil, err
	}

	meta := &domain.SearchResultsMetadata{
		Query:       query,
		Results:     results,
		SearchedAt:  s.now(),
		ResultCount: len(results),
	}
	if len(results) == 0 {
		logger.FromContext(ctx).WithField("query", query).Info("Web search returned no results")
		return meta, nil
	}

	if err := s.screenshots.UpdateSearchResults(ctx, record.ID, meta); err != nil {
		return nil, err
	}
	logger.With(logger.Fields{"query": query}).WithCount(len(results)).WithDuration(start).Info(ctx, "Screenshot enriched")
	return meta, nil
}
