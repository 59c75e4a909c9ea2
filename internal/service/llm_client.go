package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ErrNoJSONFound is returned when a completion contains no JSON object.
var ErrNoJSONFound = errors.New("no JSON object in completion")

// ChatMessage is one turn of an LLM conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Completion is the model's reply plus token accounting.
type Completion struct {
	Content     string
	TotalTokens int
}

// LLMClient calls an OpenAI-compatible chat completions API.
type LLMClient interface {
	Chat(ctx context.Context, messages []ChatMessage) (*Completion, error)
}

type httpLLMClient struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	httpClient  *http.Client
	logger      zerolog.Logger
}

// NewLLMClient creates an LLMClient for an OpenAI-compatible endpoint.
func NewLLMClient(baseURL, apiKey, model string, logger zerolog.Logger) LLMClient {
	return &httpLLMClient{
		baseURL:     baseURL,
		apiKey:      apiKey,
		model:       model,
		temperature: 0.7,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		logger: logger.With().Str("service", "LLMClient").Logger(),
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

func (c *httpLLMClient) Chat(ctx context.Context, messages []ChatMessage) (*Completion, error) {
	payload, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling chat request: %w", err)
	}

	url := strings.TrimSuffix(c.baseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("building chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling chat API: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading chat response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("chat API returned %d: %s", resp.StatusCode, body)
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decoding chat response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, errors.New("chat API returned no choices")
	}
	return &Completion{
		Content:     parsed.Choices[0].Message.Content,
		TotalTokens: parsed.Usage.TotalTokens,
	}, nil
}

// ExtractJSON pulls the first JSON object out of a completion. Models often
// wrap the object in prose or markdown fences, so it takes everything from
// the first '{' to the last '}'.
func ExtractJSON(content string) (string, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end == -1 || end < start {
		return "", ErrNoJSONFound
	}
	return content[start : end+1], nil
}
