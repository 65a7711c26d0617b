package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Default client configuration values
const (
	DefaultTimeout = 30 * time.Second
	DefaultBaseURL = "https://api.openai.com/v1"
)

// Client calls OpenAI-compatible chat-completions endpoints.
type Client struct {
	httpClient *http.Client
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) {
		cl.httpClient.Timeout = d
	}
}

// NewClient creates a chat-completions client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type chatRequest struct {
	Model      string        `json:"model"`
	Messages   []Message     `json:"messages"`
	Tools      []requestTool `json:"tools,omitempty"`
	ToolChoice string        `json:"tool_choice,omitempty"`
}

type requestTool struct {
	Type     string     `json:"type"`
	Function ToolSchema `json:"function"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content   string     `json:"content"`
			ToolCalls []ToolCall `json:"tool_calls"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// ChatCompletion sends one chat-completion request against the given
// provider.
func (c *Client) ChatCompletion(ctx context.Context, cfg ProviderConfig, messages []Message, tools []ToolSchema) (*Response, error) {
	req := chatRequest{
		Model:    cfg.Model,
		Messages: messages,
	}
	for _, t := range tools {
		req.Tools = append(req.Tools, requestTool{Type: "function", Function: t})
	}
	if len(req.Tools) > 0 {
		req.ToolChoice = "auto"
	}

	start := time.Now()
	resp, err := c.doRequest(ctx, cfg, &req)
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("provider error: %s", resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("provider returned no choices")
	}

	choice := resp.Choices[0]
	return &Response{
		Content:      choice.Message.Content,
		ToolCalls:    choice.Message.ToolCalls,
		FinishReason: choice.FinishReason,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
		LatencyMs:    time.Since(start).Milliseconds(),
	}, nil
}

// ValidateKey makes a minimal call to verify the provider accepts the
// key.
func (c *Client) ValidateKey(ctx context.Context, cfg ProviderConfig) error {
	if cfg.APIKey == "" {
		return fmt.Errorf("API key is empty")
	}
	_, err := c.ChatCompletion(ctx, cfg, []Message{{Role: RoleUser, Content: "hi"}}, nil)
	if err == nil {
		return nil
	}
	errStr := strings.ToLower(err.Error())
	if strings.Contains(errStr, "401") || strings.Contains(errStr, "unauthorized") ||
		strings.Contains(errStr, "invalid") || strings.Contains(errStr, "authentication") {
		return fmt.Errorf("invalid API key: %w", err)
	}
	return fmt.Errorf("could not reach provider: %w", err)
}

func endpoint(cfg ProviderConfig) string {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	return base + "/chat/completions"
}

func (c *Client) doRequest(ctx context.Context, cfg ProviderConfig, req *chatRequest) (*chatResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	const maxRetries = 3
	for attempt := 0; attempt <= maxRetries; attempt++ {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint(cfg), bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", "Bearer "+cfg.APIKey)

		httpResp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return nil, fmt.Errorf("http request: %w", err)
		}

		respBody, err := io.ReadAll(httpResp.Body)
		httpResp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}

		if httpResp.StatusCode == http.StatusOK {
			var resp chatResponse
			if err := json.Unmarshal(respBody, &resp); err != nil {
				return nil, fmt.Errorf("unmarshal response: %w", err)
			}
			return &resp, nil
		}

		// Retry on 429 (rate limit) and 503 (overloaded).
		if (httpResp.StatusCode == 429 || httpResp.StatusCode == 503) && attempt < maxRetries {
			wait := retryAfterDelay(httpResp, attempt)
			slog.Warn("provider rate limited, retrying", "status", httpResp.StatusCode, "attempt", attempt+1, "wait", wait)
			select {
			case <-time.After(wait):
				continue
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		return nil, fmt.Errorf("API error %d: %s", httpResp.StatusCode, string(respBody))
	}

	return nil, fmt.Errorf("max retries exceeded")
}

// retryAfterDelay respects the retry-after header if present, otherwise
// backs off exponentially.
func retryAfterDelay(resp *http.Response, attempt int) time.Duration {
	if ra := resp.Header.Get("retry-after"); ra != "" {
		if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	wait := time.Duration(2<<uint(attempt)) * time.Second
	if wait > 30*time.Second {
		wait = 30 * time.Second
	}
	return wait
}
