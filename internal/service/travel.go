package service

import (
	"context"
	"time"

	"github.com/timmy/shotlens/internal/domain"
	"github.com/timmy/shotlens/internal/geo"
	"github.com/timmy/shotlens/internal/logger"
)

// TravelResult is the outcome of geocoding and clustering one screenshot's places.
type TravelResult struct {
	Places   []domain.Place        `json:"places"`
	Clusters []domain.PlaceCluster `json:"clusters"`
	// Failed lists place names the geocoder could not resolve.
	Failed []string `json:"failed,omitempty"`
}

// TravelAgent turns extracted place names into geocoded, clustered places.
type TravelAgent struct {
	geocoder  Geocoder
	clusterer *geo.Clusterer
	now       func() time.Time
}

// NewTravelAgent creates a TravelAgent. A nil clusterer uses deterministic cluster ids.
func NewTravelAgent(geocoder Geocoder, clusterer *geo.Clusterer) *TravelAgent {
	if clusterer == nil {
		clusterer = geo.NewClusterer(ClusterID)
	}
	return &TravelAgent{
		geocoder:  geocoder,
		clusterer: clusterer,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ExtractAndProcessPlaces geocodes every named place, one at a time, and clusters
// the ones that resolved. A place that fails to geocode is dropped and recorded in
// Failed; it never aborts the batch. Nothing is persisted here.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - extracted: extracted data whose place names are geocoded.
//   - screenshotID: owner of the resulting places.
//
// Returns:
//   - *TravelResult: geocoded places with cluster ids assigned, and the clusters.
//   - error: only ctx errors; per-place failures are isolated.
func (a *TravelAgent) ExtractAndProcessPlaces(ctx context.Context, extracted domain.ExtractedData, screenshotID string) (*TravelResult, error) {
	result := &TravelResult{
		Places:   []domain.Place{},
		Clusters: []domain.PlaceCluster{},
	}
	ctx = logger.SetStage(ctx, "geocoding")
	start := time.Now()

	// Names repeated within one screenshot are geocoded once.
	type lookup struct {
		res *GeocodeResult
		err error
	}
	cache := make(map[string]lookup, len(extracted.Places))
	for i, ep := range extracted.Places {
		key := normalizePlaceName(ep.Name)
		if key == "" {
			continue
		}

		l, ok := cache[key]
		if !ok {
			l.res, l.err = a.geocoder.Geocode(ctx, ep.Name)
			if l.err != nil && ctx.Err() != nil {
				return nil, ctx.Err()
			}
			cache[key] = l
		}
		if l.err != nil {
			logger.FromContext(ctx).WithField(logger.FieldPlace, ep.Name).WithError(l.err).Warn("Dropping place that failed to geocode")
			result.Failed = append(result.Failed, ep.Name)
			continue
		}

		result.Places = append(result.Places, domain.Place{
			ID:                 PlaceID(screenshotID, i, ep.Name),
			Name:               ep.Name,
			Address:            l.res.Address,
			Coordinates:        l.res.Coordinates,
			Category:           l.res.Metadata.PlaceType,
			SourceScreenshotID: screenshotID,
			Metadata:           l.res.Metadata,
			CreatedAt:          a.now(),
		})
	}

	if len(result.Places) > 1 {
		result.Clusters = a.clusterer.ClusterPlaces(placePointers(result.Places))
	}

	logger.With(logger.Fields{
		"geocoded": len(result.Places),
		"failed":   len(result.Failed),
		"clusters": len(result.Clusters),
	}).WithDuration(start).Info(ctx, "Geocoded extracted places")

	return result, nil
}

func placePointers(places []domain.Place) []*domain.Place {
	ptrs := make([]*domain.Place, len(places))
	for i := range places {
		ptrs[i] = &places[i]
	}
	return ptrs
}
