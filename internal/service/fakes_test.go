package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/timmy/shotlens/internal/domain"
	"github.com/timmy/shotlens/internal/repository"
)

func ptr(v float64) *float64 { return &v }

func travelExtraction(places ...domain.ExtractedPlace) *domain.IntentExtraction {
	return &domain.IntentExtraction{
		Intent: domain.Intent{
			PrimaryBucket: domain.BucketTravel,
			BucketCandidates: []domain.BucketCandidate{
				{Bucket: domain.BucketTravel, Confidence: 0.92},
				{Bucket: domain.BucketGeneral, Confidence: 0.08},
			},
			Confidence: 0.92,
			Rationale:  "map with pinned restaurants",
		},
		Extracted: domain.ExtractedData{
			Entities: []string{"Bay Area"},
			Places:   places,
			Products: []string{},
		},
	}
}

type fakeExtractor struct {
	result *domain.IntentExtraction
	err    error
	// wait, when set, is called before returning so tests can interleave with embedding.
	wait func(ctx context.Context)
}

func (f *fakeExtractor) ExtractIntent(ctx context.Context, image []byte, mediaType string) (*domain.IntentExtraction, error) {
	if f.wait != nil {
		f.wait(ctx)
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeExtractor) GetModel() string { return "fake-vlm" }

type fakeEmbedder struct {
	vec     []float32
	err     error
	textVec []float32
	textErr error
	wait    func(ctx context.Context) error
	calls   int
	queries []string
}

func (f *fakeEmbedder) EmbedImage(ctx context.Context, image []byte, mediaType string) ([]float32, error) {
	f.calls++
	if f.wait != nil {
		if err := f.wait(ctx); err != nil {
			return nil, err
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.vec, nil
}

func (f *fakeEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	f.queries = append(f.queries, text)
	if f.textErr != nil {
		return nil, f.textErr
	}
	return f.textVec, nil
}

func (f *fakeEmbedder) GetModel() string { return "fake-embed" }

type fakeThumbnails struct {
	out []byte
	err error
}

func (f *fakeThumbnails) Make(image []byte) ([]byte, error) {
	return f.out, f.err
}

type fakeStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
	// failSuffix makes uploads whose key ends with the suffix fail.
	failSuffix string
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: make(map[string][]byte)}
}

func (s *fakeStorage) Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	if s.failSuffix != "" && strings.HasSuffix(key, s.failSuffix) {
		return errors.New("upload refused")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return nil
}

func (s *fakeStorage) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("no object %s", key)
	}
	return io.NopCloser(strings.NewReader(string(data))), nil
}

func (s *fakeStorage) GetURL(key string) string { return "https://blobs.test/" + key }

func (s *fakeStorage) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	s.deleted = append(s.deleted, key)
	return nil
}

func (s *fakeStorage) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok, nil
}

func (s *fakeStorage) keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.objects))
	for k := range s.objects {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

type fakeScreenshots struct {
	mu        sync.Mutex
	records   map[string]*domain.Screenshot
	createErr error
}

func newFakeScreenshots() *fakeScreenshots {
	return &fakeScreenshots{records: make(map[string]*domain.Screenshot)}
}

func (f *fakeScreenshots) Create(ctx context.Context, s *domain.Screenshot) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *s
	f.records[s.ID] = &cp
	return nil
}

func (f *fakeScreenshots) GetByID(ctx context.Context, id string) (*domain.Screenshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.records[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeScreenshots) GetByIDs(ctx context.Context, ids []string) (map[string]*domain.Screenshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]*domain.Screenshot)
	for _, id := range ids {
		if s, ok := f.records[id]; ok {
			cp := *s
			out[id] = &cp
		}
	}
	return out, nil
}

func (f *fakeScreenshots) ExistsByMD5Hash(ctx context.Context, md5Hash string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.records {
		if s.MD5Hash == md5Hash {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeScreenshots) List(ctx context.Context, bucket domain.Bucket, limit, offset int) ([]domain.Screenshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Screenshot
	for _, s := range f.records {
		if bucket == "" || s.Bucket == bucket {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if offset >= len(out) {
		return []domain.Screenshot{}, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeScreenshots) Count(ctx context.Context, bucket domain.Bucket) (int64, error) {
	rows, _ := f.List(ctx, bucket, 0, 0)
	return int64(len(rows)), nil
}

func (f *fakeScreenshots) UpdateSearchResults(ctx context.Context, id string, results *domain.SearchResultsMetadata) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.records[id]
	if !ok {
		return repository.ErrNotFound
	}
	s.SearchResults = results
	return nil
}

func (f *fakeScreenshots) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

type fakePlaces struct {
	mu         sync.Mutex
	places     map[string]domain.Place
	clusters   map[string]domain.PlaceCluster
	replaceErr error
}

func newFakePlaces() *fakePlaces {
	return &fakePlaces{
		places:   make(map[string]domain.Place),
		clusters: make(map[string]domain.PlaceCluster),
	}
}

// add stores places directly, bypassing the replace semantics.
func (f *fakePlaces) add(places ...domain.Place) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range places {
		f.places[p.ID] = p
	}
}

func (f *fakePlaces) ReplaceScreenshotPlaces(ctx context.Context, screenshotID string, places []domain.Place, clusters []domain.PlaceCluster) error {
	if f.replaceErr != nil {
		return f.replaceErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	known := make(map[string]bool, len(places))
	for _, p := range places {
		known[p.ID] = true
	}
	for _, c := range clusters {
		for _, id := range c.PlaceIDs {
			if !known[id] {
				return fmt.Errorf("unknown place %s", id)
			}
		}
	}

	for id, p := range f.places {
		if p.SourceScreenshotID != screenshotID {
			continue
		}
		if p.ClusterID != nil {
			delete(f.clusters, *p.ClusterID)
		}
		delete(f.places, id)
	}
	for _, p := range places {
		p.ClusterID = nil
		f.places[p.ID] = p
	}
	for _, c := range clusters {
		f.clusters[c.ID] = c
		for _, id := range c.PlaceIDs {
			p := f.places[id]
			cid := c.ID
			p.ClusterID = &cid
			f.places[id] = p
		}
	}
	return nil
}

func (f *fakePlaces) GetCluster(ctx context.Context, id string) (*domain.PlaceCluster, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.clusters[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &c, nil
}

func (f *fakePlaces) ListPlaces(ctx context.Context) ([]domain.Place, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Place, 0, len(f.places))
	for _, p := range f.places {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *fakePlaces) ListByScreenshot(ctx context.Context, screenshotID string) ([]domain.Place, error) {
	all, _ := f.ListPlaces(ctx)
	out := make([]domain.Place, 0)
	for _, p := range all {
		if p.SourceScreenshotID == screenshotID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePlaces) ListClusters(ctx context.Context) ([]domain.PlaceCluster, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.PlaceCluster, 0, len(f.clusters))
	for _, c := range f.clusters {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type fakeIndex struct {
	mu        sync.Mutex
	upserts   map[string]*repository.ScreenshotPayload
	upsertErr error
	hits      []repository.VectorMatch
	searchErr error
	lastTopK  int
	lastScope string
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{upserts: make(map[string]*repository.ScreenshotPayload)}
}

func (f *fakeIndex) Upsert(ctx context.Context, vector []float32, payload *repository.ScreenshotPayload) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts[payload.ScreenshotID] = payload
	return nil
}

func (f *fakeIndex) Search(ctx context.Context, vector []float32, topK int, bucket string, scoreThreshold float32) ([]repository.VectorMatch, error) {
	f.lastTopK = topK
	f.lastScope = bucket
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	if topK < len(f.hits) {
		return f.hits[:topK], nil
	}
	return f.hits, nil
}

type fakeGeocoder struct {
	results map[string]*GeocodeResult
	calls   []string
}

func (f *fakeGeocoder) Geocode(ctx context.Context, name string) (*GeocodeResult, error) {
	f.calls = append(f.calls, name)
	if r, ok := f.results[name]; ok {
		return r, nil
	}
	return nil, domain.GeocodeError(name, ErrNoGeocodeResult)
}

type fakeWebSearcher struct {
	results []domain.WebResult
	err     error
	queries []string
}

func (f *fakeWebSearcher) Search(ctx context.Context, query string, maxResults int) ([]domain.WebResult, error) {
	f.queries = append(f.queries, query)
	return f.results, f.err
}
