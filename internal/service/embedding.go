package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/timmy/shotlens/internal/domain"
)

// EmbeddingService produces fixed-dimension vectors for images and text from a
// multimodal embedding API. Images and queries share one vector space.
type EmbeddingService struct {
	client     *resty.Client
	model      string
	dimensions int
}

// EmbeddingConfig holds configuration for embedding service
type EmbeddingConfig struct {
	Model      string
	APIKey     string
	BaseURL    string
	Dimensions int
	Timeout    time.Duration
}

// NewEmbeddingService creates a new embedding service
func NewEmbeddingService(cfg *EmbeddingConfig) *EmbeddingService {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.voyageai.com/v1"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &EmbeddingService{
		client:     newRESTClient(baseURL, cfg.APIKey, timeout),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}
}

// GetModel returns the model name being used
func (s *EmbeddingService) GetModel() string {
	return s.model
}

// Dimensions returns the vector length every call is expected to return.
func (s *EmbeddingService) Dimensions() int {
	return s.dimensions
}

// Multimodal embeddings API request/response structures
type multimodalRequest struct {
	Model     string            `json:"model"`
	Inputs    []multimodalInput `json:"inputs"`
	InputType string            `json:"input_type,omitempty"`
}

type multimodalInput struct {
	Content []multimodalContent `json:"content"`
}

type multimodalContent struct {
	Type        string `json:"type"`
	Text        string `json:"text,omitempty"`
	ImageBase64 string `json:"image_base64,omitempty"`
}

type multimodalResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
	Detail string `json:"detail,omitempty"`
}

// EmbedImage embeds a screenshot for indexing.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - image: raw image bytes.
//   - mediaType: MIME type; empty means image/jpeg.
//
// Returns:
//   - []float32: vector of length Dimensions().
//   - error: an EmbeddingFailure on any transport, service or shape error.
func (s *EmbeddingService) EmbedImage(ctx context.Context, image []byte, mediaType string) ([]float32, error) {
	if len(image) == 0 {
		return nil, domain.EmbeddingError(errors.New("empty image"))
	}
	if mediaType == "" {
		mediaType = "image/jpeg"
	}
	return s.embed(ctx, multimodalContent{Type: "image_base64", ImageBase64: dataURL(image, mediaType)}, "document")
}

// EmbedText embeds a search query into the same space as EmbedImage.
func (s *EmbeddingService) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, domain.EmbeddingError(errors.New("empty text"))
	}
	return s.embed(ctx, multimodalContent{Type: "text", Text: text}, "query")
}

func (s *EmbeddingService) embed(ctx context.Context, content multimodalContent, inputType string) ([]float32, error) {
	req := multimodalRequest{
		Model:     s.model,
		Inputs:    []multimodalInput{{Content: []multimodalContent{content}}},
		InputType: inputType,
	}

	var resp multimodalResponse
	httpResp, err := s.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&resp).
		SetError(&resp).
		Post("/multimodalembeddings")
	if err != nil {
		return nil, domain.EmbeddingError(fmt.Errorf("failed to call embedding API: %w", err))
	}

	if !isSuccess(httpResp) {
		return nil, domain.EmbeddingError(statusError("embedding API", httpResp, resp.Detail))
	}

	if len(resp.Data) == 0 {
		return nil, domain.EmbeddingError(errors.New("no embedding returned"))
	}

	vec := resp.Data[0].Embedding
	if s.dimensions > 0 && len(vec) != s.dimensions {
		return nil, domain.EmbeddingError(fmt.Errorf("unexpected embedding length: got %d, expected %d", len(vec), s.dimensions))
	}
	return vec, nil
}
