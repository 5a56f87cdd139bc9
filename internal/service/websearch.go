package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/timmy/shotlens/internal/domain"
)

// WebSearchService runs ranked web searches against a Tavily-compatible API.
type WebSearchService struct {
	client      *resty.Client
	apiKey      string
	maxResults  int
	searchDepth string
}

// WebSearchConfig holds configuration for the web search service.
type WebSearchConfig struct {
	APIKey      string
	BaseURL     string
	MaxResults  int
	SearchDepth string
	Timeout     time.Duration
}

func NewWebSearchService(cfg *WebSearchConfig) *WebSearchService {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.tavily.com"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 20 * time.Second
	}
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 5
	}
	depth := cfg.SearchDepth
	if depth == "" {
		depth = "basic"
	}
	return &WebSearchService{
		client:      newRESTClient(baseURL, cfg.APIKey, timeout),
		apiKey:      cfg.APIKey,
		maxResults:  maxResults,
		searchDepth: depth,
	}
}

type tavilyRequest struct {
	APIKey      string `json:"api_key"`
	Query       string `json:"query"`
	MaxResults  int    `json:"max_results"`
	SearchDepth string `json:"search_depth"`
}

type tavilyResponse struct {
	Results []struct {
		Title   string  `json:"title"`
		URL     string  `json:"url"`
		Content string  `json:"content"`
		Score   float64 `json:"score"`
	} `json:"results"`
	Detail any `json:"detail,omitempty"`
}

// Search returns up to maxResults hits for query; zero uses the configured default.
func (s *WebSearchService) Search(ctx context.Context, query string, maxResults int) ([]domain.WebResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("empty search query")
	}
	if maxResults <= 0 {
		maxResults = s.maxResults
	}

	var resp tavilyResponse
	httpResp, err := s.client.R().
		SetContext(ctx).
		SetBody(tavilyRequest{
			APIKey:      s.apiKey,
			Query:       query,
			MaxResults:  maxResults,
			SearchDepth: s.searchDepth,
		}).
		SetResult(&resp).
		SetError(&resp).
		Post("/search")
	if err != nil {
		return nil, fmt.Errorf("failed to call web search API: %w", err)
	}
	if !isSuccess(httpResp) {
		detail := ""
		if resp.Detail != nil {
			detail = fmt.Sprint(resp.Detail)
		}
		return nil, statusError("web search API", httpResp, detail)
	}

	results := make([]domain.WebResult, 0, len(resp.Results))
	for _, r := range resp.Results {
		results = append(results, domain.WebResult{
			Title:   r.Title,
			URL:     r.URL,
			Content: r.Content,
			Score:   r.Score,
		})
	}
	return results, nil
}

// TravelQuery builds the search query used to enrich a travel screenshot.
func TravelQuery(location string) string {
	return location + " travel guide attractions activities"
}

// ProductQuery builds the search query used to enrich a shopping screenshot.
func ProductQuery(product string) string {
	return product + " reviews comparison alternatives"
}
