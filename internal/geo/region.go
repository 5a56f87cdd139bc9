package geo

import (
	"math"

	"github.com/timmy/shotlens/internal/domain"
)

const (
	// MinRegionDelta is the smallest zoom delta a map region may have.
	MinRegionDelta = 0.05
	// RegionPadding scales the bounding box so markers are not flush with the edge.
	RegionPadding = 1.5
)

// CalculateMapRegion returns a region that fits every place.
// Returns nil for an empty input. A single place gets a fixed-zoom region centered on it.
func CalculateMapRegion(places []domain.Place) *domain.MapRegion {
	if len(places) == 0 {
		return nil
	}

	if len(places) == 1 {
		c := places[0].Coordinates
		return &domain.MapRegion{
			Latitude:       c.Latitude,
			Longitude:      c.Longitude,
			LatitudeDelta:  MinRegionDelta,
			LongitudeDelta: MinRegionDelta,
		}
	}

	coords := make([]domain.Coordinates, len(places))
	for i := range places {
		coords[i] = places[i].Coordinates
	}
	box, _ := BoundingBox(coords)
	center := box.Center()

	return &domain.MapRegion{
		Latitude:       center.Latitude,
		Longitude:      center.Longitude,
		LatitudeDelta:  math.Max(box.LatSpan()*RegionPadding, MinRegionDelta),
		LongitudeDelta: math.Max(box.LonSpan()*RegionPadding, MinRegionDelta),
	}
}
