// Package webhook implements the automation webhook client (C9): an
// authenticated POST of a finalized requirement to an external n8n-style
// automation endpoint.
package webhook

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Config describes the webhook endpoint and an optional API key, sent
// verbatim as the Authorization header (no scheme prefix).
type Config struct {
	BaseURL     string
	Path        string
	APIKey      string
	TimeoutMs   int
}

// n8nRequest is the wire shape posted to the webhook.
type n8nRequest struct {
	Requirement string `json:"requirement"`
	SessionID   string `json:"session_id"`
}

// Client posts finalized requirements to the configured automation
// endpoint with a bounded timeout per call.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

func NewClient(cfg Config) *Client {
	timeout := time.Duration(cfg.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Dispatch posts the requirement/session pair. A non-2xx response or
// transport failure is returned as an error for the caller (C7) to
// translate into a user-visible message.
func (c *Client) Dispatch(ctx context.Context, requirement, sessionID string) error {
	body, err := json.Marshal(n8nRequest{Requirement: requirement, SessionID: sessionID})
	if err != nil {
		return fmt.Errorf("webhook: marshal request: %w", err)
	}

	url := strings.TrimSuffix(c.cfg.BaseURL, "/") + "/" + strings.TrimPrefix(c.cfg.Path, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook: non-2xx response: %d", resp.StatusCode)
	}
	return nil
}
