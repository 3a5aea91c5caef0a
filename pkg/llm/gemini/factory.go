package gemini

import (
	"context"
	"fmt"

	"wardkeeper/pkg/llm"
)

// factory builds a Client from the provider config blob's "api_key" and
// "model" entries, with any remaining keys passed through as generation
// options (e.g. "temperature").
func factory(cfg map[string]any) (llm.Client, error) {
	apiKey, _ := cfg["api_key"].(string)
	model, _ := cfg["model"].(string)
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: missing api_key")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return New(context.Background(), apiKey, model, cfg)
}

func init() {
	llm.RegisterProvider("gemini", factory)
}
