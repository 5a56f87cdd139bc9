package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/timmy/shotlens/internal/domain"
)

// Wire shapes for the extraction reply. Pointers mark required keys so that a
// missing key can be told apart from a zero value.
type intentWire struct {
	PrimaryBucket    *string          `json:"primary_bucket"`
	BucketCandidates *[]candidateWire `json:"bucket_candidates"`
	Confidence       *float64         `json:"confidence"`
	Rationale        *string          `json:"rationale"`
	ExtractedData    *extractedWire   `json:"extracted_data"`
}

type candidateWire struct {
	Bucket     *string  `json:"bucket"`
	Confidence *float64 `json:"confidence"`
}

type extractedWire struct {
	OCRText      string         `json:"ocrText"`
	OCRTextSnake string         `json:"ocr_text"`
	Entities     []string       `json:"entities"`
	Places       []placeWire    `json:"places"`
	Products     []string       `json:"products"`
	Metadata     map[string]any `json:"metadata"`
}

type placeWire struct {
	Name      *string  `json:"name"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// stripCodeFence removes markdown code fences a model may wrap its JSON in.
func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```JSON", "")
	text = strings.ReplaceAll(text, "```", "")
	return strings.TrimSpace(text)
}

// ParseIntentExtraction decodes and validates a raw extraction reply.
// Any JSON or schema problem is returned as a ParseFailure.
func ParseIntentExtraction(text string) (*domain.IntentExtraction, error) {
	cleaned := stripCodeFence(text)
	if cleaned == "" {
		return nil, domain.ParseError(errors.New("empty reply"))
	}

	var wire intentWire
	if err := json.Unmarshal([]byte(cleaned), &wire); err != nil {
		return nil, domain.ParseError(fmt.Errorf("invalid JSON: %w", err))
	}

	out, err := wire.validate()
	if err != nil {
		return nil, domain.ParseError(err)
	}
	return out, nil
}

func (w *intentWire) validate() (*domain.IntentExtraction, error) {
	primary, err := requireBucket("primary_bucket", w.PrimaryBucket)
	if err != nil {
		return nil, err
	}
	if w.BucketCandidates == nil {
		return nil, errors.New("bucket_candidates is required")
	}
	confidence, err := requireConfidence("confidence", w.Confidence)
	if err != nil {
		return nil, err
	}
	if w.Rationale == nil {
		return nil, errors.New("rationale is required")
	}

	candidates := make([]domain.BucketCandidate, 0, len(*w.BucketCandidates))
	for i, c := range *w.BucketCandidates {
		b, err := requireBucket(fmt.Sprintf("bucket_candidates[%d].bucket", i), c.Bucket)
		if err != nil {
			return nil, err
		}
		conf, err := requireConfidence(fmt.Sprintf("bucket_candidates[%d].confidence", i), c.Confidence)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, domain.BucketCandidate{Bucket: b, Confidence: conf})
	}

	extracted, err := w.ExtractedData.toDomain()
	if err != nil {
		return nil, err
	}

	return &domain.IntentExtraction{
		Intent: domain.Intent{
			PrimaryBucket:    primary,
			BucketCandidates: candidates,
			Confidence:       confidence,
			Rationale:        *w.Rationale,
		},
		Extracted: extracted,
	}, nil
}

func (e *extractedWire) toDomain() (domain.ExtractedData, error) {
	out := domain.ExtractedData{
		Entities: []string{},
		Places:   []domain.ExtractedPlace{},
		Products: []string{},
	}
	if e == nil {
		return out, nil
	}

	out.OCRText = e.OCRText
	if out.OCRText == "" {
		out.OCRText = e.OCRTextSnake
	}
	if e.Entities != nil {
		out.Entities = e.Entities
	}
	if e.Products != nil {
		out.Products = e.Products
	}
	out.Metadata = e.Metadata

	for i, p := range e.Places {
		if p.Name == nil {
			return out, fmt.Errorf("places[%d].name is required", i)
		}
		if strings.TrimSpace(*p.Name) == "" {
			continue
		}
		out.Places = append(out.Places, domain.ExtractedPlace{
			Name:      strings.TrimSpace(*p.Name),
			Latitude:  p.Latitude,
			Longitude: p.Longitude,
		})
	}
	return out, nil
}

func requireBucket(field string, v *string) (domain.Bucket, error) {
	if v == nil {
		return "", fmt.Errorf("%s is required", field)
	}
	b := domain.Bucket(*v)
	if !b.Valid() {
		return "", fmt.Errorf("%s: unknown bucket %q", field, *v)
	}
	return b, nil
}

func requireConfidence(field string, v *float64) (float64, error) {
	if v == nil {
		return 0, fmt.Errorf("%s is required", field)
	}
	if *v < 0 || *v > 1 {
		return 0, fmt.Errorf("%s must be within [0,1], got %v", field, *v)
	}
	return *v, nil
}
