package llm

import (
	"fmt"
	"log/slog"
	"time"

	jsoniter "github.com/json-iterator/go"
)

// ProviderConfig is one entry of the "llm" config array: a provider type
// name plus its provider-specific option blob (api_key, model, base_url,
// temperature, ...), interpreted by that provider's own factory.
type ProviderConfig struct {
	Type    string         `json:"type"`
	Options map[string]any `json:"options"`
}

// NewFromConfig builds a Client from the raw "llm" config section: each
// configured provider entry is resolved through the provider registry and
// instantiated, and the resulting clients are combined into a
// FallbackClient that retries transient failures and tries each in turn.
func NewFromConfig(rawLLM jsoniter.RawMessage, maxRetries int, retryDelay time.Duration) (Client, error) {
	if len(rawLLM) == 0 {
		return nil, fmt.Errorf("llm: missing config")
	}

	var entries []ProviderConfig
	if err := json.Unmarshal(rawLLM, &entries); err != nil {
		return nil, fmt.Errorf("llm: parse config: %w", err)
	}

	var clients []Client
	for _, entry := range entries {
		factory, ok := GetProviderFactory(entry.Type)
		if !ok {
			slog.Warn("llm: unknown provider type, skipping", "type", entry.Type)
			continue
		}
		client, err := factory(entry.Options)
		if err != nil {
			slog.Warn("llm: provider init failed, skipping", "type", entry.Type, "error", err)
			continue
		}
		clients = append(clients, client)
	}

	if len(clients) == 0 {
		return nil, fmt.Errorf("llm: no providers could be initialized")
	}

	return &FallbackClient{Clients: clients, MaxRetries: maxRetries, RetryDelay: retryDelay}, nil
}
