package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/timmy/shotlens/internal/domain"
	"github.com/timmy/shotlens/internal/service"
)

// Searcher runs semantic screenshot search.
type Searcher interface {
	Search(ctx context.Context, query string, limit int, bucket domain.Bucket) ([]service.ScreenshotMatch, error)
}

// SearchHandler handles search endpoints.
type SearchHandler struct {
	searcher Searcher
}

// NewSearchHandler creates a new search handler.
func NewSearchHandler(searcher Searcher) *SearchHandler {
	return &SearchHandler{searcher: searcher}
}

// Search handles GET /api/v1/search?q=&limit=&bucket=.
func (h *SearchHandler) Search(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		badRequest(c, "Query parameter 'q' is required")
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			badRequest(c, "Query parameter 'limit' must be an integer")
			return
		}
		limit = n
	}

	var bucket domain.Bucket
	if raw := c.Query("bucket"); raw != "" {
		b, ok := domain.ParseBucket(raw)
		if !ok {
			badRequest(c, "Unknown bucket: "+raw)
			return
		}
		bucket = b
	}

	matches, err := h.searcher.Search(c.Request.Context(), query, limit, bucket)
	if err != nil {
		respondError(c, "Search failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"query":   query,
		"results": matches,
		"total":   len(matches),
	})
}
