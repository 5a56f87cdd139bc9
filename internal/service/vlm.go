package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/timmy/shotlens/internal/domain"
	"github.com/timmy/shotlens/internal/prompts"
)

// VLMService extracts intent and structured data from screenshots with a vision language model.
type VLMService struct {
	client    *resty.Client
	model     string
	maxTokens int
}

// VLMConfig holds configuration for VLM service.
type VLMConfig struct {
	Model     string
	APIKey    string
	BaseURL   string
	MaxTokens int
	Timeout   time.Duration
}

// NewVLMService creates a new VLM service against an OpenAI-compatible chat completions API.
// Parameters:
//   - cfg: model, credentials and endpoint.
//
// Returns:
//   - *VLMService: initialized VLM client wrapper.
func NewVLMService(cfg *VLMConfig) *VLMService {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 90 * time.Second
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 2048
	}

	return &VLMService{
		client:    newRESTClient(baseURL, cfg.APIKey, timeout),
		model:     cfg.Model,
		maxTokens: maxTokens,
	}
}

// GetModel returns the model name being used.
func (s *VLMService) GetModel() string {
	return s.model
}

// OpenAI-compatible Chat Completion API request/response structures
type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"` // string for system, []interface{} for user with images
}

type chatTextContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type chatImageContent struct {
	Type     string       `json:"type"`
	ImageURL chatImageURL `json:"image_url"`
}

type chatImageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// ExtractIntent classifies a screenshot into a bucket and pulls out text, entities,
// places and products.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - image: raw image bytes.
//   - mediaType: MIME type of image; empty means image/jpeg.
//
// Returns:
//   - *domain.IntentExtraction: validated reply.
//   - error: an ExtractionFailure, or a ParseFailure when the reply does not match the schema.
func (s *VLMService) ExtractIntent(ctx context.Context, image []byte, mediaType string) (*domain.IntentExtraction, error) {
	if len(image) == 0 {
		return nil, domain.ExtractionError(errors.New("empty image"))
	}
	if mediaType == "" {
		mediaType = "image/jpeg"
	}

	req := chatRequest{
		Model: s.model,
		Messages: []chatMessage{
			{
				Role:    "system",
				Content: prompts.IntentSystemPrompt,
			},
			{
				Role: "user",
				Content: []interface{}{
					chatImageContent{
						Type: "image_url",
						ImageURL: chatImageURL{
							URL:    dataURL(image, mediaType),
							Detail: "auto",
						},
					},
					chatTextContent{
						Type: "text",
						Text: prompts.IntentUserPrompt(),
					},
				},
			},
		},
		MaxTokens: s.maxTokens,
	}

	text, err := s.complete(ctx, req)
	if err != nil {
		return nil, domain.ExtractionError(err)
	}

	return ParseIntentExtraction(text)
}

func (s *VLMService) complete(ctx context.Context, req chatRequest) (string, error) {
	var resp chatResponse
	httpResp, err := s.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&resp).
		SetError(&resp).
		Post("/chat/completions")
	if err != nil {
		return "", fmt.Errorf("failed to call VLM API: %w", err)
	}

	if !isSuccess(httpResp) {
		msg := ""
		if resp.Error != nil {
			msg = resp.Error.Message
		}
		return "", statusError("VLM API", httpResp, msg)
	}

	if resp.Error != nil {
		return "", fmt.Errorf("VLM API error: %s", resp.Error.Message)
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("no content in VLM response (status: %d)", httpResp.StatusCode())
	}

	return resp.Choices[0].Message.Content, nil
}

func base64Encode(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}
