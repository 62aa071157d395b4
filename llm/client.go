// Package llm provides a provider-agnostic LLM client with retry support.
// The external classifier and the indexing pipeline are best-effort
// collaborators, so callers are expected to check Available() and treat
// failures as a degraded mode rather than a fatal condition.
package llm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// maxResponseSize limits the LLM response body to prevent memory exhaustion.
const maxResponseSize = 10 * 1024 * 1024 // 10MB

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`    // "system" or "user"
	Content string `json:"content"` // Message content
}

// Request defines an LLM completion request.
type Request struct {
	// Messages is the chat history to send to the LLM.
	Messages []Message

	// Temperature controls randomness. nil uses endpoint default, 0 is deterministic.
	Temperature *float64

	// MaxTokens limits response length. 0 uses endpoint default.
	MaxTokens int
}

// TokenUsage represents token consumption details for an LLM call.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response contains the LLM completion result.
type Response struct {
	// RequestID uniquely identifies this LLM call in logs.
	RequestID string

	// Content is the generated text.
	Content string

	// Model is the model that produced the response.
	Model string

	// Usage contains token consumption metrics, when the provider reports them.
	Usage TokenUsage

	// FinishReason indicates why generation stopped.
	FinishReason string
}

// Endpoint describes the configured model endpoint.
type Endpoint struct {
	// Provider is the provider identifier ("gemini", "openai", "ollama").
	Provider string

	// URL overrides the provider's default base URL when non-empty.
	URL string

	// Model is the model identifier sent to the provider.
	Model string

	// EmbedModel is the model used for Embed calls.
	EmbedModel string

	// EmbedDimension requests a fixed embedding dimensionality (0 = provider default).
	EmbedDimension int
}

// RetryConfig holds retry configuration for LLM requests.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts per call.
	MaxAttempts int

	// BackoffBase is the initial backoff duration.
	BackoffBase time.Duration

	// BackoffMultiplier is applied to backoff on each retry.
	BackoffMultiplier float64

	// MaxBackoff caps the maximum backoff duration.
	MaxBackoff time.Duration
}

// DefaultRetryConfig returns sensible retry defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		BackoffBase:       2 * time.Second,
		BackoffMultiplier: 2.0,
		MaxBackoff:        30 * time.Second,
	}
}

// Client talks to one configured endpoint through its registered provider.
type Client struct {
	endpoint    Endpoint
	httpClient  *http.Client
	retryConfig RetryConfig
	logger      *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithRetryConfig sets the retry configuration.
func WithRetryConfig(cfg RetryConfig) ClientOption {
	return func(client *Client) {
		client.retryConfig = cfg
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(client *Client) {
		client.logger = logger
	}
}

// NewClient creates a client for the given endpoint.
func NewClient(endpoint Endpoint, opts ...ClientOption) *Client {
	c := &Client{
		endpoint:    endpoint,
		retryConfig: DefaultRetryConfig(),
		httpClient: &http.Client{
			Timeout: 180 * time.Second, // Allow time for LLM responses
		},
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Available reports whether the endpoint can be used at all: the provider
// must be registered and hold whatever credentials it needs. A false return
// is a normal degraded mode, not an error.
func (c *Client) Available() bool {
	provider := GetProvider(c.endpoint.Provider)
	if provider == nil || c.endpoint.Model == "" {
		return false
	}
	return provider.Available()
}

// Complete sends a completion request, retrying transient failures.
func (c *Client) Complete(ctx context.Context, req Request) (*Response, error) {
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("at least one message is required")
	}

	provider := GetProvider(c.endpoint.Provider)
	if provider == nil {
		return nil, NewFatalError(fmt.Errorf("unknown provider: %s", c.endpoint.Provider))
	}

	requestID := uuid.New().String()

	url := provider.BuildURL(c.endpoint.URL, c.endpoint.Model)
	body, err := provider.BuildRequestBody(c.endpoint.Model, req.Messages, req.Temperature, req.MaxTokens)
	if err != nil {
		return nil, NewFatalError(fmt.Errorf("build request body: %w", err))
	}

	respBody, err := c.post(ctx, provider, url, body, requestID)
	if err != nil {
		return nil, err
	}

	resp, err := provider.ParseResponse(respBody, c.endpoint.Model)
	if err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	resp.RequestID = requestID
	return resp, nil
}

// Embed generates an embedding for the given text using the endpoint's
// embedding model. The provider must implement EmbeddingProvider.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	provider := GetProvider(c.endpoint.Provider)
	if provider == nil {
		return nil, NewFatalError(fmt.Errorf("unknown provider: %s", c.endpoint.Provider))
	}

	embedder, ok := provider.(EmbeddingProvider)
	if !ok {
		return nil, NewFatalError(fmt.Errorf("provider %s does not support embeddings", c.endpoint.Provider))
	}
	if c.endpoint.EmbedModel == "" {
		return nil, NewFatalError(fmt.Errorf("no embedding model configured"))
	}

	requestID := uuid.New().String()

	url := embedder.BuildEmbedURL(c.endpoint.URL, c.endpoint.EmbedModel)
	body, err := embedder.BuildEmbedRequestBody(c.endpoint.EmbedModel, text, c.endpoint.EmbedDimension)
	if err != nil {
		return nil, NewFatalError(fmt.Errorf("build embed request body: %w", err))
	}

	respBody, err := c.post(ctx, provider, url, body, requestID)
	if err != nil {
		return nil, err
	}

	embedding, err := embedder.ParseEmbedResponse(respBody)
	if err != nil {
		return nil, fmt.Errorf("parse embed response: %w", err)
	}
	return embedding, nil
}

// post executes the HTTP request with retry and backoff.
func (c *Client) post(ctx context.Context, provider Provider, url string, body []byte, requestID string) ([]byte, error) {
	var lastErr error

	for attempt := 1; attempt <= c.retryConfig.MaxAttempts; attempt++ {
		respBody, err := c.doPost(ctx, provider, url, body, requestID)
		if err == nil {
			return respBody, nil
		}
		lastErr = err

		if IsFatal(err) {
			return nil, err
		}

		if attempt < c.retryConfig.MaxAttempts {
			backoff := c.calculateBackoff(attempt)
			c.logger.Debug("LLM request failed, retrying",
				"request_id", requestID,
				"attempt", attempt,
				"max_attempts", c.retryConfig.MaxAttempts,
				"backoff", backoff,
				"error", err)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	return nil, fmt.Errorf("all %d attempts failed: %w", c.retryConfig.MaxAttempts, lastErr)
}

func (c *Client) doPost(ctx context.Context, provider Provider, url string, body []byte, requestID string) ([]byte, error) {
	c.logger.Debug("sending LLM request",
		"request_id", requestID,
		"provider", provider.Name(),
		"model", c.endpoint.Model,
		"url", url)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, NewFatalError(fmt.Errorf("create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	provider.SetHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, NewTransientError(fmt.Errorf("http request: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, NewTransientError(fmt.Errorf("read response: %w", err))
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return respBody, nil
	case resp.StatusCode == http.StatusTooManyRequests ||
		resp.StatusCode == http.StatusRequestTimeout ||
		resp.StatusCode >= 500:
		return nil, NewTransientError(fmt.Errorf("status %d: %s", resp.StatusCode, truncate(respBody, 200)))
	default:
		// Auth and bad-request errors will not improve on retry.
		return nil, NewFatalError(fmt.Errorf("status %d: %s", resp.StatusCode, truncate(respBody, 200)))
	}
}

// calculateBackoff computes exponential backoff duration with jitter.
func (c *Client) calculateBackoff(attempt int) time.Duration {
	multiplier := 1.0
	for i := 1; i < attempt; i++ {
		multiplier *= c.retryConfig.BackoffMultiplier
	}

	backoff := time.Duration(float64(c.retryConfig.BackoffBase) * multiplier)
	if backoff > c.retryConfig.MaxBackoff {
		backoff = c.retryConfig.MaxBackoff
	}

	// +/- 25% jitter to prevent synchronized retries
	jitter := float64(backoff) * 0.25 * (rand.Float64()*2 - 1)
	return backoff + time.Duration(jitter)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
