package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"wardkeeper/pkg/llm"
)

// responseFormat pins the model to the AiResponse JSON shape via Ollama's
// structured-output "format" field.
var responseFormat = json.RawMessage(`{
	"type": "object",
	"properties": {
		"trigger_n8n": {"type": "boolean"},
		"payload": {"type": "string"},
		"response": {"type": "string"}
	},
	"required": ["trigger_n8n", "payload", "response"]
}`)

// Client is a local/self-hosted Ollama model implementing the non-streaming
// classifier contract.
type Client struct {
	client  *api.Client
	model   string
	options map[string]any
}

// New dials an Ollama server, preferring an explicit baseURL over
// environment-derived discovery.
func New(model, baseURL string, options map[string]any) (*Client, error) {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	httpClient := &http.Client{Transport: transport}

	var client *api.Client
	var err error
	if baseURL != "" {
		u, parseErr := url.Parse(baseURL)
		if parseErr != nil {
			return nil, fmt.Errorf("ollama: invalid base url: %w", parseErr)
		}
		client = api.NewClient(u, httpClient)
	} else {
		client, err = api.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("ollama: client from environment: %w", err)
		}
	}

	return &Client{client: client, model: model, options: options}, nil
}

func (c *Client) Chat(ctx context.Context, turns []llm.ChatMessage) (llm.AiResponse, error) {
	messages := convertTurns(turns)

	streamVal := false
	req := &api.ChatRequest{
		Model:    c.model,
		Messages: messages,
		Options:  c.options,
		Stream:   &streamVal,
		Format:   responseFormat,
	}

	var content string
	err := c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		content += resp.Message.Content
		return nil
	})
	if err != nil {
		return llm.AiResponse{}, fmt.Errorf("ollama: chat: %w", err)
	}
	if content == "" {
		return llm.AiResponse{}, fmt.Errorf("ollama: empty response")
	}
	return llm.ParseAiResponse(content), nil
}

func convertTurns(turns []llm.ChatMessage) []api.Message {
	messages := []api.Message{{Role: "system", Content: llm.SystemPrompt}}

	for _, turn := range turns {
		role := string(turn.Role)
		var content strings.Builder
		var images []api.ImageData

		for _, item := range turn.Content {
			switch item.Kind {
			case llm.ContentText:
				content.WriteString(item.Text)
			case llm.ContentImage:
				// Ollama only accepts inline image bytes; a bare URL reference
				// has nothing to download from here, so it is skipped.
			case llm.ContentAudio:
				// Audio input is unsupported by Ollama's chat API.
			}
		}

		msg := api.Message{Role: role, Content: content.String()}
		if len(images) > 0 {
			msg.Images = images
		}
		messages = append(messages, msg)
	}
	return messages
}

// IsTransientError classifies connection-level failures and overload
// responses as retryable.
func (c *Client) IsTransientError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "connection refused") || strings.Contains(msg, "connection reset") {
		return true
	}
	if strings.Contains(msg, "overloaded") {
		return true
	}
	return false
}
