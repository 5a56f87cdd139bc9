// Package geo holds the coordinate math and proximity clustering used to place
// screenshots' locations on a map.
//
// Distances are planar in decimal degrees, not great-circle. That under-estimates
// true distance away from the equator; cluster membership depends on it, so keep it.
package geo

import (
	"math"

	"github.com/timmy/shotlens/internal/domain"
)

// Distance returns the planar distance between a and b in decimal degrees.
func Distance(a, b domain.Coordinates) float64 {
	dLat := a.Latitude - b.Latitude
	dLon := a.Longitude - b.Longitude
	return math.Sqrt(dLat*dLat + dLon*dLon)
}

// Centroid returns the arithmetic mean of the given coordinates.
// An empty input yields the zero value.
func Centroid(coords []domain.Coordinates) domain.Coordinates {
	if len(coords) == 0 {
		return domain.Coordinates{}
	}
	var sumLat, sumLon float64
	for _, c := range coords {
		sumLat += c.Latitude
		sumLon += c.Longitude
	}
	n := float64(len(coords))
	return domain.Coordinates{Latitude: sumLat / n, Longitude: sumLon / n}
}

// Bounds is an axis-aligned box in latitude/longitude.
type Bounds struct {
	MinLat, MaxLat float64
	MinLon, MaxLon float64
}

// BoundingBox returns the smallest box containing all coords.
// The second return value is false for an empty input.
func BoundingBox(coords []domain.Coordinates) (Bounds, bool) {
	if len(coords) == 0 {
		return Bounds{}, false
	}
	b := Bounds{
		MinLat: coords[0].Latitude, MaxLat: coords[0].Latitude,
		MinLon: coords[0].Longitude, MaxLon: coords[0].Longitude,
	}
	for _, c := range coords[1:] {
		b.MinLat = math.Min(b.MinLat, c.Latitude)
		b.MaxLat = math.Max(b.MaxLat, c.Latitude)
		b.MinLon = math.Min(b.MinLon, c.Longitude)
		b.MaxLon = math.Max(b.MaxLon, c.Longitude)
	}
	return b, true
}

// Center returns the midpoint of the box.
func (b Bounds) Center() domain.Coordinates {
	return domain.Coordinates{
		Latitude:  (b.MinLat + b.MaxLat) / 2,
		Longitude: (b.MinLon + b.MaxLon) / 2,
	}
}

// LatSpan returns the latitude extent of the box.
func (b Bounds) LatSpan() float64 { return b.MaxLat - b.MinLat }

// LonSpan returns the longitude extent of the box.
func (b Bounds) LonSpan() float64 { return b.MaxLon - b.MinLon }
