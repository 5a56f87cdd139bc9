package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/timmy/shotlens/internal/domain"
	"github.com/timmy/shotlens/internal/logger"
	"github.com/timmy/shotlens/internal/storage"
)

var (
	// ErrSearchUnavailable is returned when either the text embedder or the vector index is not configured.
	ErrSearchUnavailable = errors.New("semantic search is not available")
	// ErrEmptyQuery is returned for a blank search query.
	ErrEmptyQuery = errors.New("query is empty")
)

// SearchConfig holds configuration for the search service.
type SearchConfig struct {
	DefaultLimit   int
	MaxLimit       int
	ScoreThreshold float32
}

// ScreenshotMatch is one search hit.
type ScreenshotMatch struct {
	Screenshot   *domain.Screenshot `json:"screenshot"`
	Score        float32            `json:"score"`
	ThumbnailURL string             `json:"thumbnail_url,omitempty"`
}

// SearchService finds screenshots whose image embedding is close to a text query.
type SearchService struct {
	embedder    TextEmbedder
	index       VectorIndex
	screenshots ScreenshotStore
	storage     storage.ObjectStorage
	cfg         SearchConfig
}

// NewSearchService creates a search service. embedder and index may be nil, in
// which case Search returns ErrSearchUnavailable.
func NewSearchService(embedder TextEmbedder, index VectorIndex, screenshots ScreenshotStore, objectStorage storage.ObjectStorage, cfg SearchConfig) *SearchService {
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 10
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = 50
	}
	return &SearchService{
		embedder:    embedder,
		index:       index,
		screenshots: screenshots,
		storage:     objectStorage,
		cfg:         cfg,
	}
}

// Available reports whether Search can run.
func (s *SearchService) Available() bool {
	return s.embedder != nil && s.index != nil
}

// Search embeds query and returns the nearest screenshots, best first.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - query: free-text query.
//   - limit: maximum number of hits; non-positive uses the default, larger than the maximum is capped.
//   - bucket: restrict hits to one bucket; empty searches every bucket.
//
// Returns:
//   - []ScreenshotMatch: hits in descending score order. Index hits whose record no longer exists are dropped.
//   - error: ErrSearchUnavailable, ErrEmptyQuery, an EmbeddingFailure, or an index/store error.
func (s *SearchService) Search(ctx context.Context, query string, limit int, bucket domain.Bucket) ([]ScreenshotMatch, error) {
	if !s.Available() {
		return nil, ErrSearchUnavailable
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	limit = s.clampLimit(limit)
	start := time.Now()

	vector, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		if !errors.Is(err, domain.ErrEmbeddingFailure) {
			err = domain.EmbeddingError(err)
		}
		return nil, err
	}

	hits, err := s.index.Search(ctx, vector, limit, string(bucket), s.cfg.ScoreThreshold)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ScreenshotID
	}
	records, err := s.screenshots.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load screenshots: %w", err)
	}

	matches := make([]ScreenshotMatch, 0, len(hits))
	for _, h := range hits {
		record, ok := records[h.ScreenshotID]
		if !ok {
			continue
		}
		m := ScreenshotMatch{Screenshot: record, Score: h.Score}
		if record.HasThumbnail() && s.storage != nil {
			m.ThumbnailURL = s.storage.GetURL(record.ThumbnailKey)
		}
		matches = append(matches, m)
	}

	logger.With(logger.Fields{
		"query":        query,
		"hits":         len(hits),
		"results":      len(matches),
		"result_limit": limit,
	}).WithDuration(start).Info(ctx, "Search completed")

	return matches, nil
}

func (s *SearchService) clampLimit(limit int) int {
	if limit <= 0 {
		return s.cfg.DefaultLimit
	}
	if limit > s.cfg.MaxLimit {
		return s.cfg.MaxLimit
	}
	return limit
}
