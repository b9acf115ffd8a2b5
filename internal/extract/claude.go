package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dgallion1/docchunk/internal/retry"
)

const anthropicURL = "https://api.anthropic.com/v1/messages"

// ClaudeClient calls the Anthropic Messages API for chunk metadata.
type ClaudeClient struct {
	apiKey     string
	model      string
	url        string
	httpClient *http.Client
	stats      *LLMStats
}

func NewClaudeClient(apiKey, model string) *ClaudeClient {
	return &ClaudeClient{
		apiKey: apiKey,
		model:  model,
		url:    anthropicURL,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		stats: NewLLMStats(time.Hour),
	}
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *ClaudeClient) Model() string    { return c.model }
func (c *ClaudeClient) Stats() *LLMStats { return c.stats }

// Extract asks Claude for metadata about one chunk.
func (c *ClaudeClient) Extract(ctx context.Context, text, headerPath string) (md Metadata, err error) {
	start := time.Now()
	defer func() { c.stats.Record(time.Since(start), err) }()

	body, err := json.Marshal(anthropicRequest{
		Model:     c.model,
		MaxTokens: 1024,
		System:    SystemPrompt,
		Messages: []anthropicMessage{
			{Role: "user", Content: BuildUserPrompt(text, headerPath)},
		},
	})
	if err != nil {
		return Metadata{}, retry.Permanent(fmt.Errorf("marshal request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return Metadata{}, retry.Permanent(fmt.Errorf("create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Metadata{}, fmt.Errorf("claude api: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Metadata{}, fmt.Errorf("read response: %w", err)
	}

	// 529 is Anthropic's "overloaded" and is covered by >= 500.
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return Metadata{}, &retry.RetryableError{
			Service:    "claude",
			StatusCode: resp.StatusCode,
			Message:    string(respBody),
		}
	}
	if resp.StatusCode != http.StatusOK {
		return Metadata{}, retry.Permanent(fmt.Errorf("claude api status %d: %s", resp.StatusCode, truncate(string(respBody), 200)))
	}

	var apiResp anthropicResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return Metadata{}, fmt.Errorf("decode response: %w", err)
	}
	if apiResp.Error != nil {
		return Metadata{}, fmt.Errorf("claude error: %s: %s", apiResp.Error.Type, apiResp.Error.Message)
	}
	if len(apiResp.Content) == 0 {
		return Metadata{}, &ValidationError{Reason: "empty response from claude"}
	}

	return ParseMetadata(apiResp.Content[0].Text)
}

// Close releases resources.
func (c *ClaudeClient) Close() {
	c.httpClient.CloseIdleConnections()
}
