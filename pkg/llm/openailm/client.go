package openailm

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"wardkeeper/pkg/llm"
)

// Client wraps the official OpenAI Go SDK (also usable against any
// OpenAI-compatible endpoint via a custom base URL) behind the non-streaming
// classifier contract.
type Client struct {
	client   *openai.Client
	provider string
	model    string
	options  map[string]any
}

// New creates a client against apiKey/baseURL; baseURL empty means the
// official OpenAI API.
func New(provider, apiKey, model, baseURL string, options map[string]any) (*Client, error) {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)
	return &Client{client: &client, provider: provider, model: model, options: options}, nil
}

var responseSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"trigger_n8n": map[string]any{"type": "boolean"},
		"payload":     map[string]any{"type": "string"},
		"response":    map[string]any{"type": "string"},
	},
	"required":             []string{"trigger_n8n", "payload", "response"},
	"additionalProperties": false,
}

func (c *Client) Chat(ctx context.Context, turns []llm.ChatMessage) (llm.AiResponse, error) {
	messages := convertTurns(turns)

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.model),
		Messages: messages,
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
				JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   "ai_response",
					Schema: responseSchema,
					Strict: openai.Bool(true),
				},
			},
		},
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return llm.AiResponse{}, fmt.Errorf("%s: chat completion: %w", c.provider, err)
	}
	if len(resp.Choices) == 0 {
		return llm.AiResponse{}, fmt.Errorf("%s: empty response", c.provider)
	}
	return llm.ParseAiResponse(resp.Choices[0].Message.Content), nil
}

func convertTurns(turns []llm.ChatMessage) []openai.ChatCompletionMessageParamUnion {
	items := []openai.ChatCompletionMessageParamUnion{
		{OfSystem: &openai.ChatCompletionSystemMessageParam{
			Content: openai.ChatCompletionSystemMessageParamContentUnion{OfString: openai.String(llm.SystemPrompt)},
		}},
	}

	for _, turn := range turns {
		if turn.Role == llm.RoleAssistant {
			items = append(items, openai.ChatCompletionMessageParamUnion{
				OfAssistant: &openai.ChatCompletionAssistantMessageParam{
					Content: openai.ChatCompletionAssistantMessageParamContentUnion{OfString: openai.String(textOf(turn))},
				},
			})
			continue
		}

		if hasImage(turn) {
			var parts []openai.ChatCompletionContentPartUnionParam
			for _, item := range turn.Content {
				switch item.Kind {
				case llm.ContentText:
					if item.Text != "" {
						parts = append(parts, openai.ChatCompletionContentPartUnionParam{
							OfText: &openai.ChatCompletionContentPartTextParam{Text: item.Text},
						})
					}
				case llm.ContentImage:
					if item.URL != "" {
						parts = append(parts, openai.ChatCompletionContentPartUnionParam{
							OfImageURL: &openai.ChatCompletionContentPartImageParam{
								ImageURL: openai.ChatCompletionContentPartImageImageURLParam{URL: item.URL},
							},
						})
					}
				case llm.ContentAudio:
					if item.AudioBase64MP3 != "" {
						parts = append(parts, openai.ChatCompletionContentPartUnionParam{
							OfInputAudio: &openai.ChatCompletionContentPartInputAudioParam{
								InputAudio: openai.ChatCompletionContentPartInputAudioInputAudioParam{
									Data:   item.AudioBase64MP3,
									Format: "mp3",
								},
							},
						})
					}
				}
			}
			items = append(items, openai.ChatCompletionMessageParamUnion{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Content: openai.ChatCompletionUserMessageParamContentUnion{OfArrayOfContentParts: parts},
				},
			})
			continue
		}

		items = append(items, openai.ChatCompletionMessageParamUnion{
			OfUser: &openai.ChatCompletionUserMessageParam{
				Content: openai.ChatCompletionUserMessageParamContentUnion{OfString: openai.String(textOf(turn))},
			},
		})
	}
	return items
}

func textOf(turn llm.ChatMessage) string {
	var sb strings.Builder
	for _, item := range turn.Content {
		if item.Kind == llm.ContentText {
			sb.WriteString(item.Text)
		}
	}
	return sb.String()
}

func hasImage(turn llm.ChatMessage) bool {
	for _, item := range turn.Content {
		if item.Kind == llm.ContentImage {
			return true
		}
	}
	return false
}

// IsTransientError classifies network-level failures as retryable.
func (c *Client) IsTransientError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "context deadline exceeded") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "timeout")
}
