package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// CompletionClient issues one free-text prompt and returns the model's text
// reply. Implementations must honour the context deadline.
type CompletionClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// ProxyClient talks to a messages-style completion endpoint behind a thin
// proxy. The reply envelope carries a list of content blocks; the first
// text-type block is the completion.
type ProxyClient struct {
	BaseURL   string
	APIKey    string
	Model     string
	MaxTokens int
	client    *http.Client
}

func NewProxyClient(baseURL, apiKey, model string, timeout time.Duration) *ProxyClient {
	if baseURL == "" {
		baseURL = "http://localhost:8787"
	}
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ProxyClient{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		APIKey:    apiKey,
		Model:     model,
		MaxTokens: 1500,
		client:    &http.Client{Timeout: timeout},
	}
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []contentBlock `json:"content"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func (c *ProxyClient) Complete(ctx context.Context, prompt string) (string, error) {
	reqBody := messagesRequest{
		Model:     c.Model,
		MaxTokens: c.MaxTokens,
		Messages:  []message{{Role: "user", Content: prompt}},
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", failure(FailureTransport, fmt.Errorf("failed to marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/messages", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", failure(FailureTransport, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", failure(FailureTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", failure(FailureStatus, fmt.Errorf("completion API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	var parsed messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", failure(FailureParse, fmt.Errorf("failed to decode envelope: %w", err))
	}

	for _, block := range parsed.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", failure(FailureParse, fmt.Errorf("envelope contains no text block"))
}
