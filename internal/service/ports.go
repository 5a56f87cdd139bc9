package service

import (
	"context"

	"github.com/timmy/shotlens/internal/domain"
	"github.com/timmy/shotlens/internal/repository"
)

// IntentExtractor infers intent and entities from a screenshot.
type IntentExtractor interface {
	ExtractIntent(ctx context.Context, image []byte, mediaType string) (*domain.IntentExtraction, error)
	GetModel() string
}

// ImageEmbedder turns a screenshot into a vector.
type ImageEmbedder interface {
	EmbedImage(ctx context.Context, image []byte, mediaType string) ([]float32, error)
	GetModel() string
}

// TextEmbedder turns a search query into a vector in the same space as ImageEmbedder.
type TextEmbedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// ThumbnailMaker derives a preview image.
type ThumbnailMaker interface {
	Make(image []byte) ([]byte, error)
}

// Geocoder resolves a place name to coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, name string) (*GeocodeResult, error)
}

// WebSearcher runs a ranked web search.
type WebSearcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]domain.WebResult, error)
}

// ScreenshotStore persists screenshot records.
type ScreenshotStore interface {
	Create(ctx context.Context, s *domain.Screenshot) error
	GetByID(ctx context.Context, id string) (*domain.Screenshot, error)
	GetByIDs(ctx context.Context, ids []string) (map[string]*domain.Screenshot, error)
	ExistsByMD5Hash(ctx context.Context, md5Hash string) (bool, error)
	List(ctx context.Context, bucket domain.Bucket, limit, offset int) ([]domain.Screenshot, error)
	Count(ctx context.Context, bucket domain.Bucket) (int64, error)
	UpdateSearchResults(ctx context.Context, id string, results *domain.SearchResultsMetadata) error
}

// PlaceStore persists places and clusters.
type PlaceStore interface {
	ReplaceScreenshotPlaces(ctx context.Context, screenshotID string, places []domain.Place, clusters []domain.PlaceCluster) error
	ListPlaces(ctx context.Context) ([]domain.Place, error)
	ListByScreenshot(ctx context.Context, screenshotID string) ([]domain.Place, error)
	ListClusters(ctx context.Context) ([]domain.PlaceCluster, error)
	GetCluster(ctx context.Context, id string) (*domain.PlaceCluster, error)
}

// VectorIndex is the nearest-neighbour index over screenshot embeddings.
type VectorIndex interface {
	Upsert(ctx context.Context, vector []float32, payload *repository.ScreenshotPayload) error
	Search(ctx context.Context, vector []float32, topK int, bucket string, scoreThreshold float32) ([]repository.VectorMatch, error)
}
