// Package gemini implements the agent.Provider interface on Google's Gemini
// API via the Gen AI SDK. The client owns retry policy for transient
// failures; after exhausting retries it reports agent.ErrServiceUnavailable
// so the orchestration loop can end the request cleanly.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"github.com/rosescout/rosescout/agent"
)

// Config holds client settings. APIKey is required; the rest default in New.
type Config struct {
	APIKey string
	// Model defaults to "gemini-2.0-flash".
	Model string
	// MaxRetries bounds retry attempts for transient failures. Default: 3.
	MaxRetries int
	// RetryDelay is the base backoff delay, doubled per attempt. Default: 1s.
	RetryDelay time.Duration
	// Logger defaults to a disabled logger.
	Logger zerolog.Logger
}

// Client calls the Gemini API. Safe for concurrent use.
type Client struct {
	client *genai.Client
	cfg    Config
}

// New creates a Client with the given configuration.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: failed to create client: %w", err)
	}
	return &Client{client: client, cfg: cfg}, nil
}

// Generate sends one model invocation and returns the model's turn. Transient
// failures are retried with exponential backoff; exhaustion returns an error
// wrapping agent.ErrServiceUnavailable.
func (c *Client) Generate(ctx context.Context, req *agent.Request) (*agent.Reply, error) {
	contents, err := toContents(req.Transcript)
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}

	config := &genai.GenerateContentConfig{}
	if req.System != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.System}},
		}
	}
	if len(req.Tools) > 0 {
		config.Tools = toDeclarations(req.Tools)
		config.ToolConfig = toToolConfig(req.ToolChoice)
	}

	var resp *genai.GenerateContentResponse
	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := c.cfg.RetryDelay * (1 << (attempt - 1))
			c.cfg.Logger.Warn().
				Err(lastErr).
				Int("attempt", attempt).
				Dur("delay", delay).
				Msg("retrying model call")
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		resp, lastErr = c.client.Models.GenerateContent(ctx, c.cfg.Model, contents, config)
		if lastErr == nil {
			return fromResponse(resp)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !isRetryable(lastErr) {
			return nil, fmt.Errorf("gemini: %w", lastErr)
		}
	}
	return nil, fmt.Errorf("gemini: retries exhausted: %w: %w", agent.ErrServiceUnavailable, lastErr)
}

// isRetryable classifies transient failures: rate limits, 5xx responses,
// timeouts, and connection resets.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())

	if strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "429") ||
		strings.Contains(msg, "too many requests") ||
		strings.Contains(msg, "resource exhausted") ||
		strings.Contains(msg, "quota") {
		return true
	}
	if strings.Contains(msg, "500") ||
		strings.Contains(msg, "502") ||
		strings.Contains(msg, "503") ||
		strings.Contains(msg, "504") ||
		strings.Contains(msg, "internal server error") ||
		strings.Contains(msg, "bad gateway") ||
		strings.Contains(msg, "service unavailable") ||
		strings.Contains(msg, "gateway timeout") {
		return true
	}
	if strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "deadline exceeded") {
		return true
	}
	if strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "no such host") {
		return true
	}
	return false
}
