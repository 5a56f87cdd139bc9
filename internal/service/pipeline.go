package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/timmy/shotlens/internal/domain"
	"github.com/timmy/shotlens/internal/geo"
	"github.com/timmy/shotlens/internal/logger"
	"github.com/timmy/shotlens/internal/repository"
	"github.com/timmy/shotlens/internal/storage"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrEmptyImage is returned when Process is called without image bytes.
	ErrEmptyImage = errors.New("image is empty")
	// ErrGeocodingUnavailable is returned by GeocodeAndCluster when no geocoder is configured.
	ErrGeocodingUnavailable = errors.New("geocoding is not configured")
)

// Pipeline stage names, used as the stage log field.
const (
	StageReceived     = "received"
	StageExtracting   = "extracting"
	StageThumbnailing = "thumbnailing"
	StageEmbedding    = "embedding"
	StagePersisting   = "persisting"
	StagePlaces       = "places"
	StageCompleted    = "completed"
	StageFailed       = "failed"
)

// ProcessResult summarises one pipeline invocation.
type ProcessResult struct {
	ImageID             string               `json:"image_id"`
	Bucket              domain.Bucket        `json:"bucket"`
	Intent              domain.Intent        `json:"intent"`
	ExtractedData       domain.ExtractedData `json:"extracted_data"`
	EmbeddingDimensions int                  `json:"embedding_dimensions"`
	HasEmbedding        bool                 `json:"has_embedding"`
	HasThumbnail        bool                 `json:"has_thumbnail"`
	ThumbnailURL        string               `json:"thumbnail_url,omitempty"`
	ImageURL            string               `json:"image_url"`
	PlacesProcessed     *int                 `json:"places_processed,omitempty"`
	ClustersCreated     *int                 `json:"clusters_created,omitempty"`
	// Degraded lists the best-effort stages that did not produce a result.
	Degraded []string `json:"degraded,omitempty"`
}

// PipelineDeps are the collaborators a Pipeline drives. Embedder, Thumbnails,
// Index and Travel may be nil; their stages are then skipped.
type PipelineDeps struct {
	Extractor   IntentExtractor
	Embedder    ImageEmbedder
	Thumbnails  ThumbnailMaker
	Storage     storage.ObjectStorage
	Screenshots ScreenshotStore
	Places      PlaceStore
	Index       VectorIndex
	Travel      *TravelAgent
}

// PipelineOptions tune a Pipeline.
type PipelineOptions struct {
	// ConcurrentEmbedding issues the embedding request alongside extraction.
	ConcurrentEmbedding bool
	DefaultMediaType    string
}

// Pipeline ingests one screenshot per Process call.
type Pipeline struct {
	deps      PipelineDeps
	opts      PipelineOptions
	clusterer *geo.Clusterer
	newID     func() string
	now       func() time.Time
}

// NewPipeline creates a Pipeline.
func NewPipeline(deps PipelineDeps, opts PipelineOptions) *Pipeline {
	if opts.DefaultMediaType == "" {
		opts.DefaultMediaType = "image/jpeg"
	}
	return &Pipeline{
		deps:      deps,
		opts:      opts,
		clusterer: geo.NewClusterer(ClusterID),
		newID:     func() string { return uuid.New().String() },
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func stageCtx(ctx context.Context, stage string) context.Context {
	ctx = logger.SetStage(ctx, stage)
	logger.FromContext(ctx).Debug("Entering stage")
	return ctx
}

// Process runs extraction, thumbnailing and embedding on image, persists the
// record and, for travel screenshots, the places it names.
//
// Extraction is required: when it fails nothing is stored and the error (an
// ExtractionFailure) is returned. Thumbnail and embedding failures only degrade
// the result. Place and cluster persistence failures are logged and never fail
// the call.
func (p *Pipeline) Process(ctx context.Context, image []byte, mediaType string) (*ProcessResult, error) {
	if len(image) == 0 {
		return nil, ErrEmptyImage
	}
	if mediaType == "" {
		mediaType = p.opts.DefaultMediaType
	}

	id := p.newID()
	ctx = logger.SetScreenshotID(ctx, id)
	start := time.Now()
	logger.With(logger.Fields{logger.FieldStage: StageReceived, logger.FieldSize: len(image)}).
		Info(ctx, "Screenshot received")

	extraction, embedding, err := p.extractAndEmbed(ctx, image, mediaType)
	if err != nil {
		logger.FromContext(ctx).WithField(logger.FieldStage, StageFailed).WithError(err).Error("Extraction failed")
		return nil, err
	}
	ctx = logger.WithField(ctx, logger.FieldBucket, string(extraction.Intent.PrimaryBucket))

	thumbnail := p.thumbnail(stageCtx(ctx, StageThumbnailing), image)
	if !p.opts.ConcurrentEmbedding {
		embedding = p.embed(stageCtx(ctx, StageEmbedding), image, mediaType)
	}

	record, thumbnail, err := p.persist(stageCtx(ctx, StagePersisting), id, image, mediaType, extraction, thumbnail, embedding)
	if err != nil {
		return nil, err
	}

	result := &ProcessResult{
		ImageID:       record.ID,
		Bucket:        record.Bucket,
		Intent:        record.Intent,
		ExtractedData: record.Extracted,
		HasEmbedding:  record.HasEmbedding(),
		HasThumbnail:  record.HasThumbnail(),
		ImageURL:      p.deps.Storage.GetURL(record.ImageKey),
	}
	if vec, ok := embedding.Value(); ok {
		result.EmbeddingDimensions = len(vec)
	} else {
		result.Degraded = append(result.Degraded, StageEmbedding)
	}
	if record.HasThumbnail() {
		result.ThumbnailURL = p.deps.Storage.GetURL(record.ThumbnailKey)
	} else if !thumbnail.IsOk() {
		result.Degraded = append(result.Degraded, StageThumbnailing)
	}

	if record.Bucket == domain.BucketTravel && len(record.Extracted.PlacesWithCoordinates()) > 0 {
		placesCtx := stageCtx(ctx, StagePlaces)
		places, clusters, err := p.persistExtractedPlaces(placesCtx, record)
		if err != nil {
			logger.FromContext(placesCtx).WithError(domain.ClusteringPersistError(err)).Error("Place clustering failed")
			result.Degraded = append(result.Degraded, StagePlaces)
		}
		result.PlacesProcessed = &places
		result.ClustersCreated = &clusters
	}

	logger.With(logger.Fields{
		logger.FieldStage: StageCompleted,
		"has_embedding":   result.HasEmbedding,
		"has_thumbnail":   result.HasThumbnail,
	}).WithDuration(start).Info(ctx, "Screenshot processed")

	return result, nil
}

// extractAndEmbed runs the required extraction stage. With ConcurrentEmbedding
// the embedding request runs alongside it: an embedding failure never touches
// extraction, while an extraction failure cancels the embedding request.
func (p *Pipeline) extractAndEmbed(ctx context.Context, image []byte, mediaType string) (*domain.IntentExtraction, domain.StageResult[[]float32], error) {
	if !p.opts.ConcurrentEmbedding {
		extraction, err := p.extract(stageCtx(ctx, StageExtracting), image, mediaType)
		return extraction, domain.Degraded[[]float32](nil), err
	}

	var (
		extraction *domain.IntentExtraction
		embedding  domain.StageResult[[]float32]
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		extraction, err = p.extract(stageCtx(gctx, StageExtracting), image, mediaType)
		return err
	})
	g.Go(func() error {
		embedding = p.embed(stageCtx(gctx, StageEmbedding), image, mediaType)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, embedding, err
	}
	return extraction, embedding, nil
}

func (p *Pipeline) extract(ctx context.Context, image []byte, mediaType string) (*domain.IntentExtraction, error) {
	start := time.Now()
	extraction, err := p.deps.Extractor.ExtractIntent(ctx, image, mediaType)
	if err != nil {
		if !errors.Is(err, domain.ErrExtractionFailure) {
			err = domain.ExtractionError(err)
		}
		return nil, err
	}
	logger.With(logger.Fields{
		logger.FieldBucket: string(extraction.Intent.PrimaryBucket),
		"confidence":       extraction.Intent.Confidence,
		"places":           len(extraction.Extracted.Places),
	}).WithDuration(start).Info(ctx, "Intent extracted")
	return extraction, nil
}

func (p *Pipeline) thumbnail(ctx context.Context, image []byte) domain.StageResult[[]byte] {
	if p.deps.Thumbnails == nil {
		return domain.Degraded[[]byte](nil)
	}
	thumb, err := p.deps.Thumbnails.Make(image)
	if err != nil {
		if !errors.Is(err, domain.ErrThumbnailFailure) {
			err = domain.ThumbnailError(err)
		}
		logger.FromContext(ctx).WithError(err).Warn("Continuing without thumbnail")
		return domain.Degraded[[]byte](err)
	}
	return domain.Ok(thumb)
}

func (p *Pipeline) embed(ctx context.Context, image []byte, mediaType string) domain.StageResult[[]float32] {
	if p.deps.Embedder == nil {
		return domain.Degraded[[]float32](nil)
	}
	start := time.Now()
	vec, err := p.deps.Embedder.EmbedImage(ctx, image, mediaType)
	if err != nil {
		if !errors.Is(err, domain.ErrEmbeddingFailure) {
			err = domain.EmbeddingError(err)
		}
		logger.FromContext(ctx).WithError(err).Warn("Continuing without embedding")
		return domain.Degraded[[]float32](err)
	}
	logger.With(logger.Fields{"dimensions": len(vec)}).WithDuration(start).Debug(ctx, "Image embedded")
	return domain.Ok(vec)
}

// persist uploads the blobs and writes the record. The original image upload
// and the record write are required; a failed thumbnail upload degrades the
// thumbnail stage. Uploaded blobs are removed if the record write fails.
func (p *Pipeline) persist(
	ctx context.Context,
	id string,
	image []byte,
	mediaType string,
	extraction *domain.IntentExtraction,
	thumbnail domain.StageResult[[]byte],
	embedding domain.StageResult[[]float32],
) (*domain.Screenshot, domain.StageResult[[]byte], error) {
	imageKey := storage.ImageKey(id, mediaType)
	if err := p.deps.Storage.Upload(ctx, imageKey, bytes.NewReader(image), int64(len(image)), mediaType); err != nil {
		return nil, thumbnail, fmt.Errorf("failed to upload image: %w", err)
	}
	uploaded := []string{imageKey}

	thumbnailKey := ""
	if thumb, ok := thumbnail.Value(); ok {
		key := storage.ThumbnailKey(id)
		if err := p.deps.Storage.Upload(ctx, key, bytes.NewReader(thumb), int64(len(thumb)), "image/jpeg"); err != nil {
			err = domain.ThumbnailError(fmt.Errorf("failed to upload thumbnail: %w", err))
			logger.FromContext(ctx).WithError(err).Warn("Continuing without thumbnail")
			thumbnail = domain.Degraded[[]byte](err)
		} else {
			thumbnailKey = key
			uploaded = append(uploaded, key)
		}
	}

	width, height, err := imageDimensions(image)
	if err != nil {
		logger.FromContext(ctx).WithError(err).Warn("Failed to read image dimensions")
	}

	now := p.now()
	record := &domain.Screenshot{
		ID:           id,
		Bucket:       extraction.Intent.PrimaryBucket,
		ImageKey:     imageKey,
		ThumbnailKey: thumbnailKey,
		MediaType:    mediaType,
		FileSize:     int64(len(image)),
		Width:        width,
		Height:       height,
		MD5Hash:      calculateMD5(image),
		Intent:       extraction.Intent,
		Extracted:    extraction.Extracted,
		VLMModel:     p.deps.Extractor.GetModel(),
		Status:       domain.ScreenshotStatusCompleted,
		ProcessedAt:  &now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if vec, ok := embedding.Value(); ok {
		record.Embedding = vec
		record.EmbeddingModel = p.deps.Embedder.GetModel()
	}

	if err := p.deps.Screenshots.Create(ctx, record); err != nil {
		for _, key := range uploaded {
			if delErr := p.deps.Storage.Delete(ctx, key); delErr != nil {
				logger.FromContext(ctx).WithField("storage_key", key).WithError(delErr).Error("Failed to rollback storage upload")
			}
		}
		return nil, thumbnail, fmt.Errorf("failed to save screenshot: %w", err)
	}

	if record.HasEmbedding() && p.deps.Index != nil {
		if err := p.deps.Index.Upsert(ctx, record.Embedding, repository.PayloadFromScreenshot(record)); err != nil {
			logger.FromContext(ctx).WithError(err).Warn("Failed to index embedding")
		}
	}

	return record, thumbnail, nil
}

// persistExtractedPlaces stores the places the extraction already located and
// clusters them. Places missing either coordinate are dropped.
func (p *Pipeline) persistExtractedPlaces(ctx context.Context, record *domain.Screenshot) (int, int, error) {
	now := p.now()
	places := make([]domain.Place, 0, len(record.Extracted.Places))
	for i, ep := range record.Extracted.Places {
		if !ep.HasCoordinates() {
			continue
		}
		places = append(places, domain.Place{
			ID:   PlaceID(record.ID, i, ep.Name),
			Name: ep.Name,
			Coordinates: domain.Coordinates{
				Latitude:  *ep.Latitude,
				Longitude: *ep.Longitude,
			},
			SourceScreenshotID: record.ID,
			CreatedAt:          now,
		})
	}

	var clusters []domain.PlaceCluster
	if len(places) >= 2 {
		clusters = p.clusterer.ClusterPlaces(placePointers(places))
	}
	if err := p.savePlaces(ctx, record.ID, places, clusters); err != nil {
		return 0, 0, err
	}
	return len(places), len(clusters), nil
}

// savePlaces replaces the screenshot's stored places and clusters with the new set.
func (p *Pipeline) savePlaces(ctx context.Context, screenshotID string, places []domain.Place, clusters []domain.PlaceCluster) error {
	if err := p.deps.Places.ReplaceScreenshotPlaces(ctx, screenshotID, places, clusters); err != nil {
		return err
	}
	logger.With(logger.Fields{
		"places":   len(places),
		"clusters": len(clusters),
	}).Info(ctx, "Places saved")
	return nil
}

// GeocodeAndCluster geocodes the place names of a stored screenshot, then saves
// and clusters the places that resolved. Unlike Process it ignores any
// coordinates the extraction supplied and asks the geocoder instead.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - screenshotID: id of a processed screenshot.
//
// Returns:
//   - *TravelResult: saved places, clusters and the names that failed to geocode.
//   - error: repository.ErrNotFound, ErrGeocodingUnavailable, or a ClusteringPersistFailure.
func (p *Pipeline) GeocodeAndCluster(ctx context.Context, screenshotID string) (*TravelResult, error) {
	if p.deps.Travel == nil {
		return nil, ErrGeocodingUnavailable
	}
	record, err := p.deps.Screenshots.GetByID(ctx, screenshotID)
	if err != nil {
		return nil, err
	}

	ctx = logger.SetScreenshotID(ctx, record.ID)
	result, err := p.deps.Travel.ExtractAndProcessPlaces(ctx, record.Extracted, record.ID)
	if err != nil {
		return nil, err
	}
	if err := p.savePlaces(stageCtx(ctx, StagePlaces), record.ID, result.Places, result.Clusters); err != nil {
		return nil, domain.ClusteringPersistError(err)
	}
	return result, nil
}
