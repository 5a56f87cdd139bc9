package domain

import (
	"strings"
	"time"
)

// Bucket is the closed set of intent categories a screenshot can be assigned to.
type Bucket string

const (
	BucketTravel   Bucket = "travel"
	BucketShopping Bucket = "shopping"
	BucketStartup  Bucket = "startup"
	BucketGeneral  Bucket = "general"
)

// AllBuckets lists every valid bucket in display order.
var AllBuckets = []Bucket{BucketTravel, BucketShopping, BucketStartup, BucketGeneral}

// Valid reports whether b is one of the known buckets.
func (b Bucket) Valid() bool {
	switch b {
	case BucketTravel, BucketShopping, BucketStartup, BucketGeneral:
		return true
	}
	return false
}

// ParseBucket normalizes s and returns the matching bucket.
// Parameters:
//   - s: raw bucket name, case-insensitive.
//
// Returns:
//   - Bucket: matching bucket.
//   - bool: false if s is not a known bucket.
func ParseBucket(s string) (Bucket, bool) {
	b := Bucket(strings.ToLower(strings.TrimSpace(s)))
	return b, b.Valid()
}

// ScreenshotStatus represents the processing status of a screenshot record.
type ScreenshotStatus string

const (
	ScreenshotStatusPending    ScreenshotStatus = "pending"
	ScreenshotStatusProcessing ScreenshotStatus = "processing"
	ScreenshotStatusCompleted  ScreenshotStatus = "completed"
	ScreenshotStatusFailed     ScreenshotStatus = "failed"
)

// BucketCandidate is one scored bucket guess from the extraction service.
type BucketCandidate struct {
	Bucket     Bucket  `json:"bucket"`
	Confidence float64 `json:"confidence"`
}

// Intent is the inferred intent of a screenshot.
// PrimaryBucket is expected to be the highest-confidence candidate; this is the
// extraction service's contract and is not re-checked here.
type Intent struct {
	PrimaryBucket    Bucket            `json:"primary_bucket"`
	BucketCandidates []BucketCandidate `json:"bucket_candidates"`
	Confidence       float64           `json:"confidence"`
	Rationale        string            `json:"rationale"`
}

// ExtractedPlace is a place named in a screenshot, with optional coordinates.
type ExtractedPlace struct {
	Name      string   `json:"name"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// HasCoordinates reports whether both latitude and longitude are present.
func (p ExtractedPlace) HasCoordinates() bool {
	return p.Latitude != nil && p.Longitude != nil
}

// ExtractedData is the structured payload pulled out of a screenshot.
type ExtractedData struct {
	OCRText  string           `json:"ocr_text,omitempty"`
	Entities []string         `json:"entities"`
	Places   []ExtractedPlace `json:"places"`
	Products []string         `json:"products"`
	Metadata map[string]any   `json:"metadata,omitempty"`
}

// PlacesWithCoordinates returns the extracted places that carry both coordinates.
func (d ExtractedData) PlacesWithCoordinates() []ExtractedPlace {
	out := make([]ExtractedPlace, 0, len(d.Places))
	for _, p := range d.Places {
		if p.HasCoordinates() {
			out = append(out, p)
		}
	}
	return out
}

// IntentExtraction is a validated reply from the vision extraction service.
type IntentExtraction struct {
	Intent    Intent        `json:"intent"`
	Extracted ExtractedData `json:"extracted_data"`
}

// WebResult is a single ranked web search hit.
type WebResult struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// SearchResultsMetadata records a web search run against a screenshot.
type SearchResultsMetadata struct {
	Query       string      `json:"query"`
	Results     []WebResult `json:"results"`
	SearchedAt  time.Time   `json:"searched_at"`
	ResultCount int         `json:"result_count"`
}

// Screenshot is one ingested image and everything inferred from it.
// Image and thumbnail bytes live in object storage under keys owned by this record.
type Screenshot struct {
	ID             string                 `gorm:"type:text;primaryKey" json:"id"`
	Bucket         Bucket                 `gorm:"type:text;not null;index:idx_screenshots_bucket" json:"bucket"`
	ImageKey       string                 `gorm:"type:text;not null" json:"image_key"`
	ThumbnailKey   string                 `gorm:"type:text" json:"thumbnail_key,omitempty"`
	MediaType      string                 `gorm:"type:text" json:"media_type"`
	FileSize       int64                  `json:"file_size"`
	Width          int                    `json:"width"`
	Height         int                    `json:"height"`
	MD5Hash        string                 `gorm:"type:text;index:idx_screenshots_md5" json:"md5_hash"`
	Intent         Intent                 `gorm:"type:text;serializer:json" json:"intent"`
	Extracted      ExtractedData          `gorm:"type:text;serializer:json" json:"extracted_data"`
	Embedding      []float32              `gorm:"type:text;serializer:json" json:"-"`
	EmbeddingModel string                 `gorm:"type:text" json:"embedding_model,omitempty"`
	VLMModel       string                 `gorm:"type:text" json:"vlm_model,omitempty"`
	Status         ScreenshotStatus       `gorm:"type:text;index:idx_screenshots_status;default:pending" json:"status"`
	Error          string                 `gorm:"type:text" json:"error,omitempty"`
	ProcessedAt    *time.Time             `json:"processed_at,omitempty"`
	SearchResults  *SearchResultsMetadata `gorm:"type:text;serializer:json" json:"search_results,omitempty"`
	AIOutput       map[string]any         `gorm:"type:text;serializer:json" json:"ai_output,omitempty"`
	CreatedAt      time.Time              `gorm:"index:idx_screenshots_created" json:"created_at"`
	UpdatedAt      time.Time              `json:"updated_at"`
}

// TableName returns the database table name for Screenshot.
func (Screenshot) TableName() string {
	return "screenshots"
}

// HasEmbedding reports whether the record carries a vector.
func (s *Screenshot) HasEmbedding() bool {
	return len(s.Embedding) > 0
}

// HasThumbnail reports whether a thumbnail was derived for the record.
func (s *Screenshot) HasThumbnail() bool {
	return s.ThumbnailKey != ""
}
