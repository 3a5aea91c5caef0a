// Package llm abstracts over the agent engine's LLM providers (C8): a
// provider-agnostic, non-streaming, strict-JSON chat contract — a single
// decision per turn, never a multi-step tool-use loop.
package llm

import (
	"context"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Role identifies who produced a ChatMessage turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ContentKind discriminates Content variants.
type ContentKind string

const (
	ContentText  ContentKind = "text"
	ContentImage ContentKind = "image"
	ContentAudio ContentKind = "audio"
)

// Content is one piece of a ChatMessage's payload. Exactly the fields
// relevant to Kind are populated.
type Content struct {
	Kind           ContentKind
	Text           string
	URL            string
	Filename       string
	AudioBase64MP3 string
}

func TextContent(text string) Content { return Content{Kind: ContentText, Text: text} }

func ImageContent(url, filename string) Content {
	return Content{Kind: ContentImage, URL: url, Filename: filename}
}

func AudioContent(base64MP3 string) Content {
	return Content{Kind: ContentAudio, AudioBase64MP3: base64MP3}
}

// ChatMessage is one turn of conversation history.
type ChatMessage struct {
	Role    Role
	Content []Content
}

// AiResponse is the strict-JSON decision the provider returns for a turn.
type AiResponse struct {
	TriggerN8N bool   `json:"trigger_n8n"`
	Payload    string `json:"payload"`
	Response   string `json:"response"`
}

// Client is the non-streaming chat contract every provider implements.
type Client interface {
	Chat(ctx context.Context, turns []ChatMessage) (AiResponse, error)
	IsTransientError(err error) bool
}

// ProviderFactory constructs a Client from a provider-specific config blob.
type ProviderFactory func(cfg map[string]any) (Client, error)

var registry = map[string]ProviderFactory{}

// RegisterProvider makes a provider factory available under name. Providers
// self-register from an init() in their own package, mirroring the
// teacher's channel/LLM loader pattern.
func RegisterProvider(name string, factory ProviderFactory) {
	registry[name] = factory
}

// GetProviderFactory looks up a previously registered factory.
func GetProviderFactory(name string) (ProviderFactory, bool) {
	f, ok := registry[name]
	return f, ok
}

// stripJSONFence removes a ```json ... ``` or bare ``` ... ``` fence if
// present, tolerating leading/trailing whitespace around it.
func stripJSONFence(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") {
		return t
	}
	t = strings.TrimPrefix(t, "```json")
	t = strings.TrimPrefix(t, "```")
	t = strings.TrimSuffix(t, "```")
	return strings.TrimSpace(t)
}

// ParseAiResponse leniently decodes raw model output into an AiResponse: a
// ```json fence is stripped before decoding, and any decode failure yields
// an AiResponse carrying the raw text in Response with TriggerN8N false, so
// the surrounding session simply surfaces it to the user instead of
// erroring out.
func ParseAiResponse(raw string) AiResponse {
	cleaned := stripJSONFence(raw)
	var out AiResponse
	if err := json.Unmarshal([]byte(cleaned), &out); err != nil {
		return AiResponse{TriggerN8N: false, Response: raw}
	}
	return out
}

// FallbackClient tries each Client in Clients in order, making up to
// MaxRetries attempts on each (at least one) while its failures are
// transient, with a delay that grows by RetryDelay per attempt, before
// falling through to the next provider.
type FallbackClient struct {
	Clients    []Client
	MaxRetries int
	RetryDelay time.Duration
}

func (f *FallbackClient) Chat(ctx context.Context, turns []ChatMessage) (AiResponse, error) {
	var lastErr error
	for _, client := range f.Clients {
		maxRetries := f.MaxRetries
		if maxRetries <= 0 {
			maxRetries = 1
		}

		for attempt := 1; attempt <= maxRetries; attempt++ {
			if attempt > 1 {
				select {
				case <-ctx.Done():
					return AiResponse{}, ctx.Err()
				case <-time.After(time.Duration(attempt-1) * f.RetryDelay):
				}
			}

			resp, err := client.Chat(ctx, turns)
			if err == nil {
				return resp, nil
			}
			lastErr = err

			if !client.IsTransientError(err) {
				break
			}
		}
	}
	return AiResponse{}, lastErr
}

func (f *FallbackClient) IsTransientError(err error) bool {
	return false
}

// SystemPrompt is the fixed intent-classifier persona every provider's call
// uses: distinguishing actionable automation commands from chat and from
// under-specified requests.
const SystemPrompt = `你是一个自动化需求分类助手。你的任务是判断用户的消息是否构成一个明确、可执行的自动化需求。

- 如果需求已经明确、完整，可以直接执行：将 trigger_n8n 设为 true，把最终整理好的需求文本放入 payload，并在 response 中给出一句确认性的回复。
- 如果用户只是在闲聊，或者需求还不够具体、需要澄清：将 trigger_n8n 设为 false，payload 留空，在 response 中提出一个澄清问题或做出恰当的闲聊回复。

始终以严格的 JSON 格式回复，包含且仅包含 trigger_n8n、payload、response 三个字段，不要添加任何解释性文字或代码块标记。`
