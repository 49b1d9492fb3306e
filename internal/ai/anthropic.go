package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/africaresearchbase/arb/internal/conf"
)

const (
	// anthropicEndpoint is the Anthropic Messages API endpoint.
	anthropicEndpoint = "https://api.anthropic.com/v1/messages"
	// anthropicVersion is the API version header value.
	anthropicVersion = "2023-06-01"

	defaultMaxTokens = 2048
)

// AnthropicClient implements Provider against the Anthropic Messages API.
type AnthropicClient struct {
	apiKey     string
	model      string
	endpoint   string
	httpClient *http.Client
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// NewAnthropicClient creates a Messages API client from the AI settings.
func NewAnthropicClient(settings *conf.AISettings) *AnthropicClient {
	timeout := time.Duration(settings.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &AnthropicClient{
		apiKey:   settings.APIKey,
		model:    settings.Model,
		endpoint: anthropicEndpoint,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *AnthropicClient) Name() string { return "anthropic" }

// Generate sends a single-message prompt and returns the text content of
// the first response block.
func (c *AnthropicClient) Generate(ctx context.Context, prompt string) (string, error) {
	reqBody, err := json.Marshal(anthropicRequest{
		Model:     c.model,
		MaxTokens: defaultMaxTokens,
		Messages: []anthropicMessage{
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Api-Key", c.apiKey)
	httpReq.Header.Set("Anthropic-Version", anthropicVersion)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if len(parsed.Content) == 0 {
		return "", fmt.Errorf("no content in response")
	}

	return parsed.Content[0].Text, nil
}
