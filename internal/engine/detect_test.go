package engine

import "testing"

func TestDetect(t *testing.T) {
	tests := []struct {
		name    string
		cfg     DetectConfig
		want    string
		wantErr bool
	}{
		{"default is openai", DetectConfig{OpenAIAPIKey: "sk-test"}, "openai", false},
		{"openai", DetectConfig{Backend: BackendOpenAI, OpenAIAPIKey: "sk-test"}, "openai", false},
		{"openai-compatible without key", DetectConfig{Backend: BackendOpenAI, OpenAIBaseURL: "http://localhost:8080/v1"}, "openai", false},
		{"openai without credentials", DetectConfig{Backend: BackendOpenAI}, "", true},
		{"ollama", DetectConfig{Backend: BackendOllama, OllamaBaseURL: "http://localhost:11434"}, "ollama", false},
		{"unknown", DetectConfig{Backend: "mlx"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := Detect(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Detect returned %T, want error", e)
				}
				return
			}
			if err != nil {
				t.Fatalf("Detect: %v", err)
			}
			switch e.(type) {
			case *OpenAIEngine:
				if tt.want != "openai" {
					t.Errorf("Detect returned %T, want %s", e, tt.want)
				}
			case *OllamaEngine:
				if tt.want != "ollama" {
					t.Errorf("Detect returned %T, want %s", e, tt.want)
				}
			default:
				t.Errorf("Detect returned %T", e)
			}
		})
	}
}
