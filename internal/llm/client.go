// Package llm wraps OpenAI-compatible chat completion APIs for the
// extraction stage. One request, one attempt: failure handling belongs
// to the run driver, which tags and reports errors per thread rather
// than retrying inside the client.
package llm

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

// Client completes prompts against a chat model.
type Client interface {
	// CompleteJSON sends a single chat completion request expecting a
	// JSON object response and returns the raw content string.
	CompleteJSON(ctx context.Context, req Request) (string, error)

	// CompleteText sends a single chat completion request and returns
	// the plain text content.
	CompleteText(ctx context.Context, req Request) (string, error)
}

// Request carries one chat completion call.
type Request struct {
	System      string
	User        string
	Model       string
	Temperature float64
	MaxTokens   int
}

// Config holds connection settings for an OpenAI-compatible endpoint.
type Config struct {
	Endpoint    string
	APIKey      string
	Model       string
	TimeoutSecs int
}

// HTTPClient talks to an OpenAI-compatible chat completions endpoint.
type HTTPClient struct {
	config Config
	http   *http.Client
}

// ChatRequest represents an OpenAI-compatible chat completion request.
type ChatRequest struct {
	Model          string          `json:"model"`
	Messages       []ChatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
}

// ChatMessage represents a message in the conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ResponseFormat specifies the expected response format.
type ResponseFormat struct {
	Type string `json:"type"`
}

// ChatResponse represents an OpenAI-compatible chat completion response.
type ChatResponse struct {
	Choices []struct {
		Message ChatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// HTTPError carries a non-200 status from the completion endpoint.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// NewHTTPClient creates a client for the given endpoint.
func NewHTTPClient(config Config) *HTTPClient {
	timeout := config.TimeoutSecs
	if timeout <= 0 {
		timeout = 120
	}
	return &HTTPClient{
		config: config,
		http: &http.Client{
			Timeout: time.Duration(timeout) * time.Second,
		},
	}
}

// CompleteJSON makes exactly one completion call and returns the model's
// message content.
func (c *HTTPClient) CompleteJSON(ctx context.Context, req Request) (string, error) {
	model := req.Model
	if model == "" {
		model = c.config.Model
	}
	chatReq := ChatRequest{
		Model: model,
		Messages: []ChatMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.User},
		},
		Temperature:    req.Temperature,
		MaxTokens:      req.MaxTokens,
		ResponseFormat: &ResponseFormat{Type: "json_object"},
	}

	return c.complete(ctx, chatReq)
}

// CompleteText makes exactly one completion call without a response
// format constraint.
func (c *HTTPClient) CompleteText(ctx context.Context, req Request) (string, error) {
	model := req.Model
	if model == "" {
		model = c.config.Model
	}
	chatReq := ChatRequest{
		Model: model,
		Messages: []ChatMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.User},
		},
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	return c.complete(ctx, chatReq)
}

func (c *HTTPClient) complete(ctx context.Context, chatReq ChatRequest) (string, error) {
	resp, err := c.send(ctx, chatReq)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in completion response")
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("empty completion response")
	}
	return content, nil
}

func (c *HTTPClient) send(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	requestBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.config.Endpoint, bytes.NewBuffer(requestBody))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != 200 {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Message: string(body)}
	}

	var chatResp ChatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return nil, fmt.Errorf("parsing response JSON: %w", err)
	}
	return &chatResp, nil
}
