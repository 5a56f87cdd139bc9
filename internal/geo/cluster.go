package geo

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/timmy/shotlens/internal/domain"
)

// DefaultThreshold is the clustering radius in decimal degrees (about 5 km at the equator).
const DefaultThreshold = 0.045

// DefaultPalette is cycled through by cluster creation order.
var DefaultPalette = []string{
	"#FF6B6B", "#4ECDC4", "#45B7D1", "#FFA07A",
	"#98D8C8", "#F7DC6F", "#BB8FCE", "#85C1E2",
}

// ClusterIDFunc produces the id for a new cluster from its members.
type ClusterIDFunc func(members []*domain.Place) string

// RandomClusterID returns a fresh random UUID regardless of members.
func RandomClusterID([]*domain.Place) string {
	return uuid.New().String()
}

// Clusterer groups places by proximity.
type Clusterer struct {
	Threshold float64
	Palette   []string
	NewID     ClusterIDFunc
}

// NewClusterer returns a Clusterer with the default threshold and palette.
// A nil newID falls back to random UUIDs.
func NewClusterer(newID ClusterIDFunc) *Clusterer {
	if newID == nil {
		newID = RandomClusterID
	}
	return &Clusterer{
		Threshold: DefaultThreshold,
		Palette:   DefaultPalette,
		NewID:     newID,
	}
}

// ClusterPlaces partitions places into clusters of two or more.
//
// Places are visited in order; each unassigned place seeds a group and pulls in
// every other unassigned place within Threshold of the seed. Groups of one are
// dropped and their place keeps a nil ClusterID. Members of an emitted cluster
// get its id written to ClusterID.
func (c *Clusterer) ClusterPlaces(places []*domain.Place) []domain.PlaceCluster {
	clusters := make([]domain.PlaceCluster, 0)
	assigned := make([]bool, len(places))

	for i, seed := range places {
		if assigned[i] {
			continue
		}
		assigned[i] = true
		group := []*domain.Place{seed}

		for j := i + 1; j < len(places); j++ {
			if assigned[j] {
				continue
			}
			if Distance(seed.Coordinates, places[j].Coordinates) <= c.Threshold {
				group = append(group, places[j])
				assigned[j] = true
			}
		}

		if len(group) < 2 {
			continue
		}

		coords := make([]domain.Coordinates, len(group))
		ids := make(domain.StringArray, len(group))
		for k, p := range group {
			coords[k] = p.Coordinates
			ids[k] = p.ID
		}

		id := c.NewID(group)
		for _, p := range group {
			clusterID := id
			p.ClusterID = &clusterID
		}

		clusters = append(clusters, domain.PlaceCluster{
			ID:       id,
			Name:     ClusterName(group),
			Centroid: Centroid(coords),
			PlaceIDs: ids,
			Color:    c.color(len(clusters)),
		})
	}

	return clusters
}

func (c *Clusterer) color(n int) string {
	palette := c.Palette
	if len(palette) == 0 {
		palette = DefaultPalette
	}
	return palette[n%len(palette)]
}

// ClusterName names a group after its most frequent city, or by size when no
// member has a city. Ties go to the city seen first.
func ClusterName(members []*domain.Place) string {
	counts := make(map[string]int)
	var order []string
	for _, p := range members {
		city := p.Metadata.City
		if city == "" {
			continue
		}
		if counts[city] == 0 {
			order = append(order, city)
		}
		counts[city]++
	}

	if len(order) == 0 {
		return fmt.Sprintf("Cluster of %d places", len(members))
	}

	best := order[0]
	for _, city := range order[1:] {
		if counts[city] > counts[best] {
			best = city
		}
	}
	return fmt.Sprintf("%s Area (%d places)", best, len(members))
}
