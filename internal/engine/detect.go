package engine

import "fmt"

// Backend names accepted by Detect.
const (
	BackendOpenAI = "openai"
	BackendOllama = "ollama"
)

// DetectConfig holds parameters for backend selection.
type DetectConfig struct {
	Backend       string
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OllamaBaseURL string
}

// Detect returns the Engine for the configured backend. An empty backend
// selects OpenAI.
func Detect(cfg DetectConfig) (Engine, error) {
	switch cfg.Backend {
	case BackendOpenAI, "":
		if cfg.OpenAIAPIKey == "" && cfg.OpenAIBaseURL == "" {
			return nil, fmt.Errorf("openai backend needs an API key or a base URL")
		}
		return NewOpenAIEngine(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL), nil
	case BackendOllama:
		return NewOllamaEngine(cfg.OllamaBaseURL), nil
	default:
		return nil, fmt.Errorf("unknown engine backend %q", cfg.Backend)
	}
}
