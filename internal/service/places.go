package service

import (
	"context"

	"github.com/timmy/shotlens/internal/domain"
	"github.com/timmy/shotlens/internal/geo"
)

// PlaceService serves read-only views over stored places and clusters.
type PlaceService struct {
	places PlaceStore
}

// NewPlaceService creates a PlaceService.
func NewPlaceService(places PlaceStore) *PlaceService {
	return &PlaceService{places: places}
}

// ListPlaces returns every stored place.
func (s *PlaceService) ListPlaces(ctx context.Context) ([]domain.Place, error) {
	return s.places.ListPlaces(ctx)
}

// ListPlacesByScreenshot returns the places taken from one screenshot.
func (s *PlaceService) ListPlacesByScreenshot(ctx context.Context, screenshotID string) ([]domain.Place, error) {
	return s.places.ListByScreenshot(ctx, screenshotID)
}

// ListClusters returns every stored cluster.
func (s *PlaceService) ListClusters(ctx context.Context) ([]domain.PlaceCluster, error) {
	return s.places.ListClusters(ctx)
}

// GetCluster returns one cluster by id.
func (s *PlaceService) GetCluster(ctx context.Context, id string) (*domain.PlaceCluster, error) {
	return s.places.GetCluster(ctx, id)
}

// MapRegion returns a viewport fitting every stored place, or nil when there are none.
func (s *PlaceService) MapRegion(ctx context.Context) (*domain.MapRegion, error) {
	places, err := s.places.ListPlaces(ctx)
	if err != nil {
		return nil, err
	}
	return geo.CalculateMapRegion(places), nil
}
