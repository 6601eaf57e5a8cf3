package engine

import (
	"context"
	"fmt"
)

// Backend names accepted by Detect.
const (
	BackendOllama = "ollama"
	BackendGemini = "gemini"
)

// DetectConfig holds parameters for backend selection.
type DetectConfig struct {
	Backend       string
	OllamaBaseURL string
	GeminiAPIKey  string
}

// Detect returns the configured backend. An empty backend means Ollama.
func Detect(ctx context.Context, cfg DetectConfig) (Engine, error) {
	switch cfg.Backend {
	case "", BackendOllama:
		return NewOllamaEngine(cfg.OllamaBaseURL), nil
	case BackendGemini:
		return NewGeminiEngine(ctx, cfg.GeminiAPIKey)
	}
	return nil, fmt.Errorf("unknown engine backend %q (want %s or %s)", cfg.Backend, BackendOllama, BackendGemini)
}
