package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/shotlens/internal/domain"
)

func TestPlaceID_Deterministic(t *testing.T) {
	a := PlaceID("shot-1", 0, "Golden Gate Bridge")
	assert.Equal(t, a, PlaceID("shot-1", 0, "  golden   gate bridge "))
	assert.NotEqual(t, a, PlaceID("shot-2", 0, "Golden Gate Bridge"))
	assert.NotEqual(t, a, PlaceID("shot-1", 0, "Alcatraz"))
	assert.NotEqual(t, a, PlaceID("shot-1", 1, "Golden Gate Bridge"))

	parsed, err := uuid.Parse(a)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(5), parsed.Version())
}

func TestClusterID_IgnoresMemberOrder(t *testing.T) {
	p1 := &domain.Place{ID: "p1"}
	p2 := &domain.Place{ID: "p2"}
	p3 := &domain.Place{ID: "p3"}

	assert.Equal(t, ClusterID([]*domain.Place{p1, p2}), ClusterID([]*domain.Place{p2, p1}))
	assert.NotEqual(t, ClusterID([]*domain.Place{p1, p2}), ClusterID([]*domain.Place{p1, p3}))
}

func TestTravelAgent_ExtractAndProcessPlaces(t *testing.T) {
	geocoder := &fakeGeocoder{results: map[string]*GeocodeResult{
		"Ferry Building": {Coordinates: domain.Coordinates{Latitude: 38.0, Longitude: -122.0}, Metadata: domain.PlaceMetadata{City: "San Francisco"}},
		"Pier 39":        {Coordinates: domain.Coordinates{Latitude: 38.01, Longitude: -122.005}, Metadata: domain.PlaceMetadata{City: "San Francisco"}},
		"Times Square":   {Coordinates: domain.Coordinates{Latitude: 40.7, Longitude: -74.0}, Metadata: domain.PlaceMetadata{City: "New York"}},
	}}
	agent := NewTravelAgent(geocoder, nil)

	extracted := domain.ExtractedData{Places: []domain.ExtractedPlace{
		{Name: "Ferry Building"},
		{Name: "Nowhere"},
		{Name: "Pier 39"},
		{Name: "ferry building"},
		{Name: ""},
		{Name: "Times Square"},
	}}

	res, err := agent.ExtractAndProcessPlaces(context.Background(), extracted, "shot-1")
	require.NoError(t, err)

	// The repeated name is geocoded once but kept as its own place.
	assert.Equal(t, []string{"Ferry Building", "Nowhere", "Pier 39", "Times Square"}, geocoder.calls)
	assert.Equal(t, []string{"Nowhere"}, res.Failed)
	require.Len(t, res.Places, 4)
	assert.Equal(t, "ferry building", res.Places[2].Name)
	assert.NotEqual(t, res.Places[0].ID, res.Places[2].ID)
	require.Len(t, res.Clusters, 1)

	cluster := res.Clusters[0]
	assert.Equal(t, "San Francisco Area (3 places)", cluster.Name)
	assert.Equal(t, domain.StringArray{res.Places[0].ID, res.Places[1].ID, res.Places[2].ID}, cluster.PlaceIDs)
	assert.InDelta(t, 38.01/3+76.0/3, cluster.Centroid.Latitude, 1e-9)
	assert.InDelta(t, -122.005/3-244.0/3, cluster.Centroid.Longitude, 1e-9)

	require.NotNil(t, res.Places[0].ClusterID)
	assert.Equal(t, cluster.ID, *res.Places[0].ClusterID)
	assert.Nil(t, res.Places[3].ClusterID)
	assert.Equal(t, "shot-1", res.Places[3].SourceScreenshotID)
	assert.Equal(t, PlaceID("shot-1", 5, "Times Square"), res.Places[3].ID)
}

func TestTravelAgent_SinglePlaceNotClustered(t *testing.T) {
	geocoder := &fakeGeocoder{results: map[string]*GeocodeResult{
		"Louvre": {Coordinates: domain.Coordinates{Latitude: 48.86, Longitude: 2.33}},
	}}
	res, err := NewTravelAgent(geocoder, nil).ExtractAndProcessPlaces(context.Background(),
		domain.ExtractedData{Places: []domain.ExtractedPlace{{Name: "Louvre"}}}, "s")
	require.NoError(t, err)
	assert.Len(t, res.Places, 1)
	assert.Empty(t, res.Clusters)
	assert.Nil(t, res.Places[0].ClusterID)
}

func TestTravelAgent_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewTravelAgent(&fakeGeocoder{}, nil).ExtractAndProcessPlaces(ctx,
		domain.ExtractedData{Places: []domain.ExtractedPlace{{Name: "Louvre"}}}, "s")
	assert.ErrorIs(t, err, context.Canceled)
}
