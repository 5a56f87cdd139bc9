package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/shotlens/internal/api/handler"
	"github.com/timmy/shotlens/internal/api/middleware"
	"github.com/timmy/shotlens/internal/domain"
	"github.com/timmy/shotlens/internal/repository"
	"github.com/timmy/shotlens/internal/service"
)

type stubPipeline struct {
	gotImage     []byte
	gotMediaType string
	err          error
	geocodeErr   error
}

func (s *stubPipeline) Process(ctx context.Context, image []byte, mediaType string) (*service.ProcessResult, error) {
	s.gotImage = image
	s.gotMediaType = mediaType
	if s.err != nil {
		return nil, s.err
	}
	return &service.ProcessResult{ImageID: "img-1", Bucket: domain.BucketShopping, HasEmbedding: true, EmbeddingDimensions: 1024}, nil
}

func (s *stubPipeline) GeocodeAndCluster(ctx context.Context, id string) (*service.TravelResult, error) {
	if s.geocodeErr != nil {
		return nil, s.geocodeErr
	}
	return &service.TravelResult{Places: []domain.Place{{ID: "p1", Name: "Louvre"}}, Clusters: []domain.PlaceCluster{}}, nil
}

type stubScreenshots struct {
	records map[string]*domain.Screenshot
	lastBkt domain.Bucket
}

func (s *stubScreenshots) GetByID(ctx context.Context, id string) (*domain.Screenshot, error) {
	if r, ok := s.records[id]; ok {
		return r, nil
	}
	return nil, repository.ErrNotFound
}

func (s *stubScreenshots) List(ctx context.Context, bucket domain.Bucket, limit, offset int) ([]domain.Screenshot, error) {
	s.lastBkt = bucket
	var out []domain.Screenshot
	for _, r := range s.records {
		out = append(out, *r)
	}
	return out, nil
}

func (s *stubScreenshots) Count(ctx context.Context, bucket domain.Bucket) (int64, error) {
	return int64(len(s.records)), nil
}

type stubPlaces struct {
	region *domain.MapRegion
}

func (s *stubPlaces) ListPlaces(ctx context.Context) ([]domain.Place, error) {
	return []domain.Place{{ID: "p1", Name: "Louvre"}}, nil
}

func (s *stubPlaces) ListPlacesByScreenshot(ctx context.Context, id string) ([]domain.Place, error) {
	return []domain.Place{{ID: "p1", Name: "Louvre", SourceScreenshotID: id}}, nil
}

func (s *stubPlaces) ListClusters(ctx context.Context) ([]domain.PlaceCluster, error) {
	return []domain.PlaceCluster{}, nil
}

func (s *stubPlaces) GetCluster(ctx context.Context, id string) (*domain.PlaceCluster, error) {
	if id != "c1" {
		return nil, repository.ErrNotFound
	}
	return &domain.PlaceCluster{ID: "c1", Name: "Paris Area (2 places)", PlaceIDs: []string{"p1", "p2"}}, nil
}

func (s *stubPlaces) MapRegion(ctx context.Context) (*domain.MapRegion, error) {
	return s.region, nil
}

type stubBlobs struct {
	objects map[string][]byte
	err     error
}

func (s *stubBlobs) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	if s.err != nil {
		return nil, s.err
	}
	data, ok := s.objects[key]
	if !ok {
		return nil, errors.New("no such key")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *stubBlobs) Exists(ctx context.Context, key string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	_, ok := s.objects[key]
	return ok, nil
}

type stubEnricher struct{ err error }

func (s *stubEnricher) Enrich(ctx context.Context, id string) (*domain.SearchResultsMetadata, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &domain.SearchResultsMetadata{Query: "q", ResultCount: 1}, nil
}

type stubSearcher struct {
	err       error
	lastLimit int
	lastBkt   domain.Bucket
}

func (s *stubSearcher) Search(ctx context.Context, q string, limit int, bucket domain.Bucket) ([]service.ScreenshotMatch, error) {
	s.lastLimit = limit
	s.lastBkt = bucket
	if s.err != nil {
		return nil, s.err
	}
	return []service.ScreenshotMatch{{Screenshot: &domain.Screenshot{ID: "a"}, Score: 0.8}}, nil
}

type testServer struct {
	engine      *gin.Engine
	pipeline    *stubPipeline
	screenshots *stubScreenshots
	places      *stubPlaces
	blobs       *stubBlobs
	enricher    *stubEnricher
	searcher    *stubSearcher
}

func newTestServer() *testServer {
	ts := &testServer{
		pipeline:    &stubPipeline{},
		screenshots: &stubScreenshots{records: map[string]*domain.Screenshot{"a": {ID: "a", Bucket: domain.BucketTravel}}},
		places:      &stubPlaces{},
		blobs:       &stubBlobs{objects: map[string][]byte{}},
		enricher:    &stubEnricher{},
		searcher:    &stubSearcher{},
	}
	ts.engine = SetupRouter(&Handlers{
		Health:     handler.NewHealthHandler(handler.Capabilities{Embedding: true}),
		Screenshot: handler.NewScreenshotHandler(ts.pipeline, ts.screenshots, ts.places, ts.blobs, ts.enricher, 1<<20),
		Search:     handler.NewSearchHandler(ts.searcher),
		Place:      handler.NewPlaceHandler(ts.places),
	}, RouterConfig{Mode: "test", CORS: middleware.CORSConfig{AllowedOrigins: []string{"https://app.example.com"}}}, nil)
	return ts
}

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	ts.engine.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestProcess_JSON(t *testing.T) {
	ts := newTestServer()
	body, _ := json.Marshal(map[string]string{
		"image_base64": "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("png")),
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/screenshots/process", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	w := ts.do(req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []byte("png"), ts.pipeline.gotImage)
	assert.Equal(t, "image/png", ts.pipeline.gotMediaType)
	assert.Equal(t, "img-1", decode(t, w)["image_id"])
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestProcess_Multipart(t *testing.T) {
	ts := newTestServer()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", `form-data; name="image"; filename="shot.jpg"`)
	hdr.Set("Content-Type", "image/jpeg")
	part, err := mw.CreatePart(hdr)
	require.NoError(t, err)
	_, _ = part.Write([]byte("jpeg-bytes"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/screenshots/process", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	w := ts.do(req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []byte("jpeg-bytes"), ts.pipeline.gotImage)
	assert.Equal(t, "image/jpeg", ts.pipeline.gotMediaType)
}

func TestProcess_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
	}{
		{name: "missing image", body: `{}`, status: http.StatusBadRequest},
		{name: "bad base64", body: `{"image_base64":"***"}`, status: http.StatusBadRequest},
		{name: "extraction failure", body: `{"image_base64":"cG5n"}`, err: domain.ParseError(errors.New("not json")), status: http.StatusUnprocessableEntity},
		{name: "store failure", body: `{"image_base64":"cG5n"}`, err: errors.New("db down"), status: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer()
			ts.pipeline.err = tt.err
			req := httptest.NewRequest(http.MethodPost, "/api/v1/screenshots/process", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")

			w := ts.do(req)
			assert.Equal(t, tt.status, w.Code)
			assert.NotEmpty(t, decode(t, w)["error"])
		})
	}
}

func TestProcess_TooLarge(t *testing.T) {
	ts := newTestServer()
	big := base64.StdEncoding.EncodeToString(make([]byte, 2<<20))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/screenshots/process", bytes.NewBufferString(`{"image_base64":"`+big+`"}`))
	req.Header.Set("Content-Type", "application/json")

	w := ts.do(req)
	assert.Contains(t, []int{http.StatusRequestEntityTooLarge, http.StatusBadRequest}, w.Code)
	assert.Nil(t, ts.pipeline.gotImage)
}

func TestScreenshots_ListAndGet(t *testing.T) {
	ts := newTestServer()

	w := ts.do(httptest.NewRequest(http.MethodGet, "/api/v1/screenshots?bucket=TRAVEL&limit=5", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.EqualValues(t, 1, body["total"])
	assert.EqualValues(t, 5, body["limit"])
	assert.Equal(t, domain.BucketTravel, ts.screenshots.lastBkt)

	w = ts.do(httptest.NewRequest(http.MethodGet, "/api/v1/screenshots?bucket=food", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(httptest.NewRequest(http.MethodGet, "/api/v1/screenshots/a", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "a", decode(t, w)["id"])

	w = ts.do(httptest.NewRequest(http.MethodGet, "/api/v1/screenshots/zzz", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(httptest.NewRequest(http.MethodGet, "/api/v1/screenshots/a/places", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["places"], 1)
}

func TestScreenshots_ImageAndThumbnail(t *testing.T) {
	ts := newTestServer()
	ts.screenshots.records["a"] = &domain.Screenshot{
		ID:           "a",
		ImageKey:     "images/a.png",
		ThumbnailKey: "thumbnails/a.jpg",
		MediaType:    "image/png",
	}
	ts.blobs.objects["images/a.png"] = []byte("original")
	ts.blobs.objects["thumbnails/a.jpg"] = []byte("thumb")

	w := ts.do(httptest.NewRequest(http.MethodGet, "/api/v1/screenshots/a/image", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, "original", w.Body.String())

	w = ts.do(httptest.NewRequest(http.MethodGet, "/api/v1/screenshots/a/thumbnail", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/jpeg", w.Header().Get("Content-Type"))
	assert.Equal(t, "thumb", w.Body.String())

	// A thumbnail key whose object is gone falls back to the original.
	delete(ts.blobs.objects, "thumbnails/a.jpg")
	w = ts.do(httptest.NewRequest(http.MethodGet, "/api/v1/screenshots/a/thumbnail", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "original", w.Body.String())

	w = ts.do(httptest.NewRequest(http.MethodGet, "/api/v1/screenshots/zzz/image", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	ts.blobs.err = errors.New("storage down")
	w = ts.do(httptest.NewRequest(http.MethodGet, "/api/v1/screenshots/a/image", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	w = ts.do(httptest.NewRequest(http.MethodGet, "/api/v1/screenshots/a/thumbnail", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestScreenshots_GeocodeAndEnrich(t *testing.T) {
	ts := newTestServer()

	w := ts.do(httptest.NewRequest(http.MethodPost, "/api/v1/screenshots/a/geocode", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["places"], 1)

	ts.pipeline.geocodeErr = service.ErrGeocodingUnavailable
	w = ts.do(httptest.NewRequest(http.MethodPost, "/api/v1/screenshots/a/geocode", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = ts.do(httptest.NewRequest(http.MethodPost, "/api/v1/screenshots/a/enrich", nil))
	require.Equal(t, http.StatusOK, w.Code)

	ts.enricher.err = service.ErrNothingToEnrich
	w = ts.do(httptest.NewRequest(http.MethodPost, "/api/v1/screenshots/a/enrich", nil))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	ts.enricher.err = repository.ErrNotFound
	w = ts.do(httptest.NewRequest(http.MethodPost, "/api/v1/screenshots/zzz/enrich", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSearch(t *testing.T) {
	ts := newTestServer()

	w := ts.do(httptest.NewRequest(http.MethodGet, "/api/v1/search?q=ramen&limit=3&bucket=shopping", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode(t, w)["total"])
	assert.Equal(t, 3, ts.searcher.lastLimit)
	assert.Equal(t, domain.BucketShopping, ts.searcher.lastBkt)

	w = ts.do(httptest.NewRequest(http.MethodGet, "/api/v1/search", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(httptest.NewRequest(http.MethodGet, "/api/v1/search?q=x&limit=ten", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	ts.searcher.err = service.ErrSearchUnavailable
	w = ts.do(httptest.NewRequest(http.MethodGet, "/api/v1/search?q=x", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestPlaces(t *testing.T) {
	ts := newTestServer()

	w := ts.do(httptest.NewRequest(http.MethodGet, "/api/v1/places", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["places"], 1)

	w = ts.do(httptest.NewRequest(http.MethodGet, "/api/v1/places/clusters", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode(t, w)["clusters"])

	w = ts.do(httptest.NewRequest(http.MethodGet, "/api/v1/places/clusters/c1", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "c1", decode(t, w)["id"])

	w = ts.do(httptest.NewRequest(http.MethodGet, "/api/v1/places/clusters/missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(httptest.NewRequest(http.MethodGet, "/api/v1/places/region", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Contains(t, body, "region")
	assert.Nil(t, body["region"])

	ts.places.region = &domain.MapRegion{Latitude: 1, Longitude: 2, LatitudeDelta: 0.05, LongitudeDelta: 0.05}
	w = ts.do(httptest.NewRequest(http.MethodGet, "/api/v1/places/region", nil))
	region := decode(t, w)["region"].(map[string]any)
	assert.EqualValues(t, 0.05, region["latitude_delta"])
}

func TestHealthAndCORS(t *testing.T) {
	ts := newTestServer()

	w := ts.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, true, body["capabilities"].(map[string]any)["embedding"])

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/search", nil)
	req.Header.Set("Origin", "https://app.example.com")
	w = ts.do(req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	req.Header.Set("X-Request-ID", "abc-123")
	w = ts.do(req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))
}
