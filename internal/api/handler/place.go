package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/shotlens/internal/domain"
)

// PlaceReader serves read-only place projections.
type PlaceReader interface {
	ListPlaces(ctx context.Context) ([]domain.Place, error)
	ListPlacesByScreenshot(ctx context.Context, screenshotID string) ([]domain.Place, error)
	ListClusters(ctx context.Context) ([]domain.PlaceCluster, error)
	GetCluster(ctx context.Context, id string) (*domain.PlaceCluster, error)
	MapRegion(ctx context.Context) (*domain.MapRegion, error)
}

// PlaceHandler handles place and cluster endpoints.
type PlaceHandler struct {
	places PlaceReader
}

// NewPlaceHandler creates a new place handler.
func NewPlaceHandler(places PlaceReader) *PlaceHandler {
	return &PlaceHandler{places: places}
}

// List handles GET /api/v1/places.
func (h *PlaceHandler) List(c *gin.Context) {
	places, err := h.places.ListPlaces(c.Request.Context())
	if err != nil {
		respondError(c, "Failed to list places", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"places": places})
}

// Clusters handles GET /api/v1/places/clusters.
func (h *PlaceHandler) Clusters(c *gin.Context) {
	clusters, err := h.places.ListClusters(c.Request.Context())
	if err != nil {
		respondError(c, "Failed to list clusters", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"clusters": clusters})
}

// Cluster handles GET /api/v1/places/clusters/:id.
func (h *PlaceHandler) Cluster(c *gin.Context) {
	cluster, err := h.places.GetCluster(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "Cluster not found", err)
		return
	}
	c.JSON(http.StatusOK, cluster)
}

// Region handles GET /api/v1/places/region. The region is null when no places exist.
func (h *PlaceHandler) Region(c *gin.Context) {
	region, err := h.places.MapRegion(c.Request.Context())
	if err != nil {
		respondError(c, "Failed to compute map region", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"region": region})
}
