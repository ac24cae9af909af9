// Package transport speaks the OpenAI-compatible streaming chat protocol.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"evalchat/internal/history"
)

// ErrMissingAPIKey is a configuration failure surfaced before any request.
var ErrMissingAPIKey = errors.New("API key not configured")

// Config holds transport configuration.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Client streams chat completions from an OpenAI-compatible endpoint.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a streaming chat client.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger,
	}
}

// Stream sends the rendered history and delivers response increments in
// arrival order until the stream terminates. Cancelling ctx tears down the
// underlying call; Stream then returns ctx.Err() so callers can tell an
// abort from a transport failure. Any other non-nil return is a transport
// failure and the partial output must be discarded by the caller.
func (c *Client) Stream(ctx context.Context, messages []history.Message, deliver func(delta string)) error {
	if c.apiKey == "" {
		return ErrMissingAPIKey
	}

	body, err := json.Marshal(chatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   true,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "text/event-stream")

	start := time.Now()
	c.logger.Debug("requesting model turn",
		zap.String("model", c.model),
		zap.Int("messages", len(messages)))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	if err := Assemble(resp.Body, deliver); err != nil {
		if ctx.Err() != nil {
			c.logger.Warn("stream cancelled", zap.Duration("after", time.Since(start)))
			return ctx.Err()
		}
		c.logger.Error("stream failed", zap.Error(err), zap.Duration("after", time.Since(start)))
		return fmt.Errorf("stream error: %w", err)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	c.logger.Debug("model turn complete", zap.Duration("took", time.Since(start)))
	return nil
}
