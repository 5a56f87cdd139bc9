package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/timmy/shotlens/internal/domain"
	"golang.org/x/time/rate"
)

// ErrNoGeocodeResult is returned when the geocoder knows no match for a name.
var ErrNoGeocodeResult = errors.New("no geocoding result")

// GeocodeResult is the best match for a place name.
type GeocodeResult struct {
	Name        string
	Address     string
	Coordinates domain.Coordinates
	Metadata    domain.PlaceMetadata
}

// GeocodingService resolves place names to coordinates with an OpenCage-compatible API.
// Calls are throttled client-side to respect the provider's rate limit.
type GeocodingService struct {
	client  *resty.Client
	apiKey  string
	limiter *rate.Limiter
}

// GeocodingConfig holds configuration for the geocoding service.
type GeocodingConfig struct {
	APIKey        string
	BaseURL       string
	RatePerSecond float64
	Burst         int
	Timeout       time.Duration
}

// NewGeocodingService creates a geocoder. A non-positive rate disables throttling.
func NewGeocodingService(cfg *GeocodingConfig) *GeocodingService {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.opencagedata.com"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &GeocodingService{
		client:  newRESTClient(baseURL, "", timeout),
		apiKey:  cfg.APIKey,
		limiter: rate.NewLimiter(limit, burst),
	}
}

type openCageResponse struct {
	Results []struct {
		Formatted string `json:"formatted"`
		Geometry  struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"geometry"`
		Components map[string]any `json:"components"`
	} `json:"results"`
	Status struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"status"`
}

// Geocode returns the top match for name.
// Parameters:
//   - ctx: context for cancellation; also bounds the wait for a rate-limit slot.
//   - name: free-form place name.
//
// Returns:
//   - *GeocodeResult: coordinates, formatted address and address components.
//   - error: a GeocodeFailure; wraps ErrNoGeocodeResult when nothing matched.
func (s *GeocodingService) Geocode(ctx context.Context, name string) (*GeocodeResult, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.GeocodeError(name, errors.New("empty place name"))
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, domain.GeocodeError(name, fmt.Errorf("rate limiter: %w", err))
	}

	var resp openCageResponse
	httpResp, err := s.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"q":     name,
			"key":   s.apiKey,
			"limit": "1",
		}).
		SetResult(&resp).
		SetError(&resp).
		Get("/geocode/v1/json")
	if err != nil {
		return nil, domain.GeocodeError(name, fmt.Errorf("failed to call geocoding API: %w", err))
	}

	if !isSuccess(httpResp) {
		return nil, domain.GeocodeError(name, statusError("geocoding API", httpResp, resp.Status.Message))
	}

	if len(resp.Results) == 0 {
		return nil, domain.GeocodeError(name, ErrNoGeocodeResult)
	}

	r := resp.Results[0]
	c := r.Components
	return &GeocodeResult{
		Name:    name,
		Address: r.Formatted,
		Coordinates: domain.Coordinates{
			Latitude:  r.Geometry.Lat,
			Longitude: r.Geometry.Lng,
		},
		Metadata: domain.PlaceMetadata{
			Neighborhood: firstComponent(c, "neighbourhood", "suburb"),
			City:         firstComponent(c, "city", "town", "village"),
			Country:      firstComponent(c, "country"),
			PlaceType:    firstComponent(c, "_type"),
		},
	}, nil
}

// firstComponent returns the first non-empty string component among keys.
func firstComponent(components map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := components[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
