// Package openai is a minimal client for OpenAI-compatible chat-completion
// endpoints, used to generate conversation summaries. One client covers both
// cloud APIs and local servers (Ollama, llama.cpp) that speak the same
// protocol; the Local flag decides which validation regime summaries get.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mbeaufort/mnemo/internal/summarize"
	"github.com/mbeaufort/mnemo/pkg/memory"
)

// Defaults applied by Config.withDefaults.
const (
	defaultTimeout   = 30 * time.Second
	defaultMaxTokens = 512
)

// maxErrorBodySize caps how much of an error response body is read.
const maxErrorBodySize = 4096

// Config describes the endpoint.
type Config struct {
	// BaseURL is the API root, e.g. "https://api.openai.com/v1" or
	// "http://localhost:11434/v1".
	BaseURL string

	// APIKey is sent as a Bearer token when non-empty.
	APIKey string

	Model string

	// Local marks the endpoint as a local model.
	Local bool

	MaxTokens int
	Timeout   time.Duration
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = defaultMaxTokens
	}
	return c
}

// Client calls a chat-completions endpoint. Non-streaming only; summary
// generation is a bounded request/response call.
type Client struct {
	config Config
	client *http.Client
}

// Compile-time interface check.
var _ summarize.Generator = (*Client)(nil)

// New creates a Client. A nil httpClient uses one with the configured
// timeout.
func New(cfg Config, httpClient *http.Client) *Client {
	cfg = cfg.withDefaults()
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{config: cfg, client: httpClient}
}

// Local implements summarize.Generator.
func (c *Client) Local() bool {
	return c.config.Local
}

// openAI wire types for JSON serialization.

type oaiRequest struct {
	Model     string       `json:"model"`
	Messages  []oaiMessage `json:"messages"`
	MaxTokens int          `json:"max_tokens,omitempty"`
}

type oaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type oaiResponse struct {
	Choices []oaiChoice `json:"choices"`
}

type oaiChoice struct {
	Message      oaiMessage `json:"message"`
	FinishReason string     `json:"finish_reason"`
}

// Generate implements summarize.Generator. Any transport or API failure is
// reported wrapping memory.ErrGenerationUnavailable so callers can fall
// back deterministically.
func (c *Client) Generate(ctx context.Context, systemPrompt, conversationText string) (string, error) {
	body := oaiRequest{
		Model: c.config.Model,
		Messages: []oaiMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: conversationText},
		},
		MaxTokens: c.config.MaxTokens,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("openai: marshal request: %w", err)
	}

	endpoint := c.config.BaseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("openai: create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("openai: %w: %v", memory.ErrGenerationUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return "", fmt.Errorf("openai: %w: HTTP %d: %s",
			memory.ErrGenerationUnavailable, resp.StatusCode, errBody)
	}

	var parsed oaiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("openai: %w: decode response: %v",
			memory.ErrGenerationUnavailable, err)
	}

	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("openai: %w: response carried no choices",
			memory.ErrGenerationUnavailable)
	}

	return parsed.Choices[0].Message.Content, nil
}
