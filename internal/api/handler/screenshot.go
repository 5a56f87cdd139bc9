package handler

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/timmy/shotlens/internal/api/middleware"
	"github.com/timmy/shotlens/internal/domain"
	"github.com/timmy/shotlens/internal/service"
)

// Pipeline is the ingestion side of the service layer.
type Pipeline interface {
	Process(ctx context.Context, image []byte, mediaType string) (*service.ProcessResult, error)
	GeocodeAndCluster(ctx context.Context, screenshotID string) (*service.TravelResult, error)
}

// ScreenshotReader reads stored screenshot records.
type ScreenshotReader interface {
	GetByID(ctx context.Context, id string) (*domain.Screenshot, error)
	List(ctx context.Context, bucket domain.Bucket, limit, offset int) ([]domain.Screenshot, error)
	Count(ctx context.Context, bucket domain.Bucket) (int64, error)
}

// Enricher attaches web search results to a screenshot.
type Enricher interface {
	Enrich(ctx context.Context, screenshotID string) (*domain.SearchResultsMetadata, error)
}

// BlobReader reads stored image bytes.
type BlobReader interface {
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	Exists(ctx context.Context, key string) (bool, error)
}

// ScreenshotHandler handles screenshot endpoints.
type ScreenshotHandler struct {
	pipeline       Pipeline
	screenshots    ScreenshotReader
	places         PlaceReader
	blobs          BlobReader
	enricher       Enricher
	maxUploadBytes int64
}

// NewScreenshotHandler creates a new screenshot handler.
// Parameters:
//   - pipeline: ingestion pipeline.
//   - screenshots: record reader.
//   - places: place reader for per-screenshot places.
//   - blobs: object storage holding originals and thumbnails.
//   - enricher: web search enrichment.
//   - maxUploadBytes: request body limit for uploads; zero disables the limit.
//
// Returns:
//   - *ScreenshotHandler: initialized handler.
func NewScreenshotHandler(pipeline Pipeline, screenshots ScreenshotReader, places PlaceReader, blobs BlobReader, enricher Enricher, maxUploadBytes int64) *ScreenshotHandler {
	return &ScreenshotHandler{
		pipeline:       pipeline,
		screenshots:    screenshots,
		places:         places,
		blobs:          blobs,
		enricher:       enricher,
		maxUploadBytes: maxUploadBytes,
	}
}

// ProcessRequest is the JSON body of POST /screenshots/process.
type ProcessRequest struct {
	ImageBase64 string `json:"image_base64" binding:"required"`
	MediaType   string `json:"media_type"`
}

// Process handles POST /api/v1/screenshots/process. It accepts either a JSON
// body with a base64 image or a multipart form with an "image" file.
func (h *ScreenshotHandler) Process(c *gin.Context) {
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}

	var (
		image     []byte
		mediaType string
		err       error
	)
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		image, mediaType, err = readMultipartImage(c)
	} else {
		image, mediaType, err = readJSONImage(c)
	}
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Image too large"})
			return
		}
		badRequest(c, "Invalid request: "+err.Error())
		return
	}

	result, err := h.pipeline.Process(c.Request.Context(), image, mediaType)
	if err != nil {
		respondError(c, "Failed to process screenshot", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func readJSONImage(c *gin.Context) ([]byte, string, error) {
	var req ProcessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, "", err
	}
	encoded, mediaType := splitDataURL(req.ImageBase64)
	if req.MediaType != "" {
		mediaType = req.MediaType
	}
	image, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, "", errors.New("image_base64 is not valid base64")
	}
	if mediaType == "" {
		mediaType = http.DetectContentType(image)
	}
	return image, mediaType, nil
}

func readMultipartImage(c *gin.Context) ([]byte, string, error) {
	fh, err := c.FormFile("image")
	if err != nil {
		return nil, "", err
	}
	f, err := fh.Open()
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	image, err := io.ReadAll(f)
	if err != nil {
		return nil, "", err
	}
	mediaType := c.PostForm("media_type")
	if mediaType == "" {
		mediaType = fh.Header.Get("Content-Type")
	}
	if mediaType == "" || mediaType == "application/octet-stream" {
		mediaType = http.DetectContentType(image)
	}
	return image, mediaType, nil
}

// splitDataURL strips a "data:<type>;base64," prefix and returns the payload and type.
func splitDataURL(s string) (string, string) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "data:") {
		return s, ""
	}
	header, payload, ok := strings.Cut(s, ",")
	if !ok {
		return s, ""
	}
	mediaType := strings.TrimSuffix(strings.TrimPrefix(header, "data:"), ";base64")
	return payload, mediaType
}

// ListResponse is a page of screenshots.
type ListResponse struct {
	Items  []domain.Screenshot `json:"items"`
	Total  int64               `json:"total"`
	Limit  int                 `json:"limit"`
	Offset int                 `json:"offset"`
}

// List handles GET /api/v1/screenshots.
func (h *ScreenshotHandler) List(c *gin.Context) {
	var bucket domain.Bucket
	if raw := c.Query("bucket"); raw != "" {
		b, ok := domain.ParseBucket(raw)
		if !ok {
			badRequest(c, "Unknown bucket: "+raw)
			return
		}
		bucket = b
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 {
		limit = 20
	}
	limit = min(limit, 100)
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}

	ctx := c.Request.Context()
	items, err := h.screenshots.List(ctx, bucket, limit, offset)
	if err != nil {
		respondError(c, "Failed to list screenshots", err)
		return
	}
	total, err := h.screenshots.Count(ctx, bucket)
	if err != nil {
		respondError(c, "Failed to count screenshots", err)
		return
	}
	if items == nil {
		items = []domain.Screenshot{}
	}
	c.JSON(http.StatusOK, ListResponse{Items: items, Total: total, Limit: limit, Offset: offset})
}

// Get handles GET /api/v1/screenshots/:id.
func (h *ScreenshotHandler) Get(c *gin.Context) {
	s, err := h.screenshots.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "Screenshot not found", err)
		return
	}
	c.JSON(http.StatusOK, s)
}

// Image handles GET /api/v1/screenshots/:id/image and streams the original upload.
func (h *ScreenshotHandler) Image(c *gin.Context) {
	s, err := h.screenshots.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "Screenshot not found", err)
		return
	}
	h.streamBlob(c, s.ImageKey, s.MediaType)
}

// Thumbnail handles GET /api/v1/screenshots/:id/thumbnail. Records without a
// stored thumbnail are served the original image.
func (h *ScreenshotHandler) Thumbnail(c *gin.Context) {
	ctx := c.Request.Context()
	s, err := h.screenshots.GetByID(ctx, c.Param("id"))
	if err != nil {
		respondError(c, "Screenshot not found", err)
		return
	}
	if s.HasThumbnail() {
		ok, err := h.blobs.Exists(ctx, s.ThumbnailKey)
		if err != nil {
			respondError(c, "Failed to read thumbnail", err)
			return
		}
		if ok {
			h.streamBlob(c, s.ThumbnailKey, "image/jpeg")
			return
		}
		middleware.GetLogger(c).WithField("key", s.ThumbnailKey).Warn("Thumbnail missing from storage, serving original")
	}
	h.streamBlob(c, s.ImageKey, s.MediaType)
}

func (h *ScreenshotHandler) streamBlob(c *gin.Context, key, contentType string) {
	body, err := h.blobs.Download(c.Request.Context(), key)
	if err != nil {
		respondError(c, "Failed to read image", err)
		return
	}
	defer body.Close()
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.DataFromReader(http.StatusOK, -1, contentType, body, map[string]string{
		"Cache-Control": "private, max-age=86400",
	})
}

// Places handles GET /api/v1/screenshots/:id/places.
func (h *ScreenshotHandler) Places(c *gin.Context) {
	places, err := h.places.ListPlacesByScreenshot(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "Failed to list places", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"places": places})
}

// Geocode handles POST /api/v1/screenshots/:id/geocode.
func (h *ScreenshotHandler) Geocode(c *gin.Context) {
	result, err := h.pipeline.GeocodeAndCluster(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "Failed to geocode places", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Enrich handles POST /api/v1/screenshots/:id/enrich.
func (h *ScreenshotHandler) Enrich(c *gin.Context) {
	meta, err := h.enricher.Enrich(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "Failed to enrich screenshot", err)
		return
	}
	c.JSON(http.StatusOK, meta)
}
