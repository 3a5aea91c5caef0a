package openailm

import (
	"fmt"

	"wardkeeper/pkg/llm"
)

func factory(cfg map[string]any) (llm.Client, error) {
	apiKey, _ := cfg["api_key"].(string)
	model, _ := cfg["model"].(string)
	baseURL, _ := cfg["base_url"].(string)
	if apiKey == "" {
		return nil, fmt.Errorf("openai: missing api_key")
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	return New("openai", apiKey, model, baseURL, cfg)
}

func init() {
	llm.RegisterProvider("openai", factory)
}
