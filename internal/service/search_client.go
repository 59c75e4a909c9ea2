package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// WebItem is one web search hit.
type WebItem struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Snippet     string `json:"snippet"`
	Summary     string `json:"summary,omitempty"`
	PublishTime string `json:"publish_time,omitempty"`
}

// SearchOptions tune a single search call.
type SearchOptions struct {
	Count       int
	TimeRange   string // e.g. "2w", "1m", "3m"
	NeedSummary bool
}

// SearchClient performs web searches for analysis context.
type SearchClient interface {
	Search(ctx context.Context, query string, opts SearchOptions) ([]WebItem, error)
}

type httpSearchClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewSearchClient creates a SearchClient backed by an HTTP web-search API.
func NewSearchClient(baseURL, apiKey string, logger zerolog.Logger) SearchClient {
	return &httpSearchClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger.With().Str("service", "SearchClient").Logger(),
	}
}

type searchRequest struct {
	Query     string `json:"query"`
	Count     int    `json:"count,omitempty"`
	Freshness string `json:"freshness,omitempty"`
	Summary   bool   `json:"summary,omitempty"`
}

type searchResponse struct {
	Data struct {
		WebPages struct {
			Value []struct {
				Name          string `json:"name"`
				URL           string `json:"url"`
				Snippet       string `json:"snippet"`
				Summary       string `json:"summary"`
				DatePublished string `json:"datePublished"`
			} `json:"value"`
		} `json:"webPages"`
	} `json:"data"`
}

func (c *httpSearchClient) Search(ctx context.Context, query string, opts SearchOptions) ([]WebItem, error) {
	reqBody := searchRequest{
		Query:     query,
		Count:     opts.Count,
		Freshness: freshnessFromRange(opts.TimeRange),
		Summary:   opts.NeedSummary,
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/web-search", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("building search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling search API: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading search response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search API returned %d: %s", resp.StatusCode, body)
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decoding search response: %w", err)
	}

	items := make([]WebItem, 0, len(parsed.Data.WebPages.Value))
	for _, v := range parsed.Data.WebPages.Value {
		items = append(items, WebItem{
			Title:       v.Name,
			URL:         v.URL,
			Snippet:     v.Snippet,
			Summary:     v.Summary,
			PublishTime: v.DatePublished,
		})
	}
	return items, nil
}

// freshnessFromRange translates compact time-range strings into the search
// API's freshness parameter.
func freshnessFromRange(timeRange string) string {
	switch timeRange {
	case "1d":
		return "oneDay"
	case "1w", "2w":
		return "oneWeek"
	case "1m":
		return "oneMonth"
	case "2m", "3m":
		return "oneYear"
	default:
		return "noLimit"
	}
}
