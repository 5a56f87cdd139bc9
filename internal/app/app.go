// Package app assembles the service graph shared by the API server and the ingest CLI.
package app

import (
	"context"
	"fmt"

	"github.com/timmy/shotlens/internal/api/handler"
	"github.com/timmy/shotlens/internal/config"
	"github.com/timmy/shotlens/internal/logger"
	"github.com/timmy/shotlens/internal/repository"
	"github.com/timmy/shotlens/internal/service"
	"github.com/timmy/shotlens/internal/storage"
	"gorm.io/gorm"
)

// openDB is swapped in tests.
var openDB = repository.InitDB

// App holds the wired services. Optional collaborators that are not configured
// are left nil and the services that depend on them degrade or report unavailable.
type App struct {
	DB          *gorm.DB
	Storage     *storage.S3Storage
	Qdrant      *repository.QdrantRepository
	Screenshots *repository.ScreenshotRepository
	Places      *repository.PlaceRepository

	Pipeline   *service.Pipeline
	Search     *service.SearchService
	PlaceViews *service.PlaceService
	Enrichment *service.EnrichmentService
	Ingester   *service.BatchIngester

	Capabilities handler.Capabilities
}

// New connects the stores and builds every service from cfg.
// Parameters:
//   - ctx: context for startup calls (bucket and collection checks).
//   - cfg: validated configuration.
//
// Returns:
//   - *App: wired application; call Close when done.
//   - error: non-nil if a required store cannot be initialized.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	log := logger.FromContext(ctx).WithField(logger.FieldComponent, "app")
	a := &App{}

	db, err := openDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	a.DB = db
	a.Screenshots = repository.NewScreenshotRepository(db)
	a.Places = repository.NewPlaceRepository(db)

	objectStorage, err := storage.NewStorage(&cfg.Storage)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	if err := objectStorage.EnsureBucket(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to ensure storage bucket: %w", err)
	}
	a.Storage = objectStorage

	deps := service.PipelineDeps{
		Extractor: service.NewVLMService(&service.VLMConfig{
			Model:     cfg.VLM.Model,
			APIKey:    cfg.VLM.APIKey,
			BaseURL:   cfg.VLM.BaseURL,
			MaxTokens: cfg.VLM.MaxTokens,
			Timeout:   cfg.VLM.Timeout,
		}),
		Thumbnails:  service.NewThumbnailer(cfg.Thumbnail.MaxWidth, cfg.Thumbnail.MaxHeight, cfg.Thumbnail.Quality),
		Storage:     objectStorage,
		Screenshots: a.Screenshots,
		Places:      a.Places,
	}

	var embedder *service.EmbeddingService
	if cfg.Embedding.Enabled() {
		embedder = service.NewEmbeddingService(&service.EmbeddingConfig{
			Model:      cfg.Embedding.Model,
			APIKey:     cfg.Embedding.APIKey,
			BaseURL:    cfg.Embedding.BaseURL,
			Dimensions: cfg.Embedding.Dimensions,
			Timeout:    cfg.Embedding.Timeout,
		})
		deps.Embedder = embedder
		a.Capabilities.Embedding = true
	} else {
		log.Warn("Embedding disabled: no API key configured")
	}

	if cfg.Qdrant.Enabled() {
		qdrant, err := repository.NewQdrantRepository(&repository.QdrantConnectionConfig{
			Host:            cfg.Qdrant.Host,
			Port:            cfg.Qdrant.Port,
			Collection:      cfg.Qdrant.Collection,
			APIKey:          cfg.Qdrant.APIKey,
			UseTLS:          cfg.Qdrant.UseTLS,
			VectorDimension: cfg.Embedding.Dimensions,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to initialize Qdrant repository: %w", err)
		}
		if err := qdrant.EnsureCollection(ctx); err != nil {
			_ = qdrant.Close()
			a.Close()
			return nil, fmt.Errorf("failed to ensure Qdrant collection: %w", err)
		}
		a.Qdrant = qdrant
		deps.Index = qdrant
		a.Capabilities.VectorIndex = true
	}

	if cfg.Geocoding.Enabled() {
		deps.Travel = service.NewTravelAgent(service.NewGeocodingService(&service.GeocodingConfig{
			APIKey:        cfg.Geocoding.APIKey,
			BaseURL:       cfg.Geocoding.BaseURL,
			RatePerSecond: cfg.Geocoding.RatePerSecond,
			Burst:         cfg.Geocoding.Burst,
			Timeout:       cfg.Geocoding.Timeout,
		}), nil)
		a.Capabilities.Geocoding = true
	}

	a.Pipeline = service.NewPipeline(deps, service.PipelineOptions{
		ConcurrentEmbedding: cfg.Pipeline.ConcurrentEmbedding,
		DefaultMediaType:    cfg.Pipeline.DefaultMediaType,
	})

	var textEmbedder service.TextEmbedder
	if embedder != nil {
		textEmbedder = embedder
	}
	var index service.VectorIndex
	if a.Qdrant != nil {
		index = a.Qdrant
	}
	a.Search = service.NewSearchService(textEmbedder, index, a.Screenshots, objectStorage, service.SearchConfig{
		DefaultLimit:   cfg.Search.DefaultLimit,
		MaxLimit:       cfg.Search.MaxLimit,
		ScoreThreshold: cfg.Search.ScoreThreshold,
	})

	var searcher service.WebSearcher
	if cfg.WebSearch.Enabled() {
		searcher = service.NewWebSearchService(&service.WebSearchConfig{
			APIKey:      cfg.WebSearch.APIKey,
			BaseURL:     cfg.WebSearch.BaseURL,
			MaxResults:  cfg.WebSearch.MaxResults,
			SearchDepth: cfg.WebSearch.SearchDepth,
			Timeout:     cfg.WebSearch.Timeout,
		})
		a.Capabilities.WebSearch = true
	}
	a.Enrichment = service.NewEnrichmentService(searcher, a.Screenshots, cfg.WebSearch.MaxResults)
	a.PlaceViews = service.NewPlaceService(a.Places)

	a.Ingester = service.NewBatchIngester(a.Pipeline, a.Screenshots, service.BatchConfig{
		Workers:        cfg.Ingest.Workers,
		SkipDuplicates: cfg.Ingest.SkipDuplicates,
	})

	log.WithFields(logger.Fields{
		"embedding":    a.Capabilities.Embedding,
		"vector_index": a.Capabilities.VectorIndex,
		"geocoding":    a.Capabilities.Geocoding,
		"web_search":   a.Capabilities.WebSearch,
	}).Info("Services initialized")

	return a, nil
}

// Close releases the vector index connection and the database pool.
func (a *App) Close() {
	if a.Qdrant != nil {
		if err := a.Qdrant.Close(); err != nil {
			logger.Warn("Failed to close Qdrant connection: %v", err)
		}
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}
