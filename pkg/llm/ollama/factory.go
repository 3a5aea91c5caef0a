package ollama

import (
	"fmt"

	"wardkeeper/pkg/llm"
)

func factory(cfg map[string]any) (llm.Client, error) {
	model, _ := cfg["model"].(string)
	baseURL, _ := cfg["base_url"].(string)
	if model == "" {
		return nil, fmt.Errorf("ollama: missing model")
	}
	return New(model, baseURL, cfg)
}

func init() {
	llm.RegisterProvider("ollama", factory)
}
