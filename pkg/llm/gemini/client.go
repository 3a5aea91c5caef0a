package gemini

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"wardkeeper/pkg/llm"
)

// Client is a single Gemini model/key pairing implementing the non-streaming
// classifier contract.
type Client struct {
	client  *genai.Client
	model   string
	options map[string]any
}

// New creates a Gemini client for one model with one API key.
func New(ctx context.Context, apiKey, model string, options map[string]any) (*Client, error) {
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &Client{client: gc, model: model, options: options}, nil
}

// responseSchema pins the model to the three-field AiResponse shape so
// ParseAiResponse almost never has to fall back to raw text.
var responseSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"trigger_n8n": {Type: genai.TypeBoolean},
		"payload":     {Type: genai.TypeString},
		"response":    {Type: genai.TypeString},
	},
	Required: []string{"trigger_n8n", "payload", "response"},
}

func (c *Client) Chat(ctx context.Context, turns []llm.ChatMessage) (llm.AiResponse, error) {
	contents := convertTurns(turns)

	cfg := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: llm.SystemPrompt}}},
		ResponseMIMEType:  "application/json",
		ResponseSchema:    responseSchema,
	}
	if t, ok := c.options["temperature"].(float64); ok {
		t32 := float32(t)
		cfg.Temperature = &t32
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, cfg)
	if err != nil {
		return llm.AiResponse{}, fmt.Errorf("gemini: generate content: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return llm.AiResponse{}, fmt.Errorf("gemini: empty response")
	}
	return llm.ParseAiResponse(text), nil
}

// convertTurns maps ChatMessage history onto genai content parts: text
// becomes a text part, images become URI-referenced parts (Gemini resolves
// publicly reachable URLs itself), and voice becomes an inline audio blob.
func convertTurns(turns []llm.ChatMessage) []*genai.Content {
	var contents []*genai.Content
	for _, turn := range turns {
		role := "user"
		if turn.Role == llm.RoleAssistant {
			role = "model"
		}

		var parts []*genai.Part
		for _, item := range turn.Content {
			switch item.Kind {
			case llm.ContentText:
				if item.Text != "" {
					parts = append(parts, &genai.Part{Text: item.Text})
				}
			case llm.ContentImage:
				if item.URL != "" {
					parts = append(parts, &genai.Part{
						FileData: &genai.FileData{FileURI: item.URL, MIMEType: imageMIMEType(item.Filename)},
					})
				}
			case llm.ContentAudio:
				if item.AudioBase64MP3 != "" {
					if raw, err := base64.StdEncoding.DecodeString(item.AudioBase64MP3); err == nil {
						parts = append(parts, &genai.Part{
							InlineData: &genai.Blob{MIMEType: "audio/mp3", Data: raw},
						})
					}
				}
			}
		}

		if len(parts) == 0 {
			continue
		}
		contents = append(contents, &genai.Content{Role: role, Parts: parts})
	}
	return contents
}

func imageMIMEType(filename string) string {
	lower := strings.ToLower(filename)
	switch {
	case strings.HasSuffix(lower, ".png"):
		return "image/png"
	case strings.HasSuffix(lower, ".gif"):
		return "image/gif"
	case strings.HasSuffix(lower, ".webp"):
		return "image/webp"
	default:
		return "image/jpeg"
	}
}

// IsTransientError classifies the common Google API failure modes worth
// retrying: rate limiting and transient 5xx/network errors.
func (c *Client) IsTransientError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())

	if strings.Contains(msg, "503") || strings.Contains(msg, "overloaded") {
		return true
	}
	if strings.Contains(msg, "429") || strings.Contains(msg, "resource exhausted") || strings.Contains(msg, "resource_exhausted") {
		return true
	}
	if strings.Contains(msg, "500") || strings.Contains(msg, "internal error") {
		return true
	}
	if strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "context deadline exceeded") {
		return true
	}
	return false
}
