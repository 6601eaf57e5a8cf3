package engine

import (
	"context"
	"errors"
)

// ErrImageUnsupported is returned by engines that cannot generate images.
var ErrImageUnsupported = errors.New("image generation is not supported by this engine")

// Engine abstracts an inference backend (a local Ollama server or the Gemini
// API). The language service adapter uses this interface instead of
// depending on a concrete client.
type Engine interface {
	// Chat sends messages to the given model and returns the assistant's response.
	// When jsonSchema is non-nil, structured JSON output is requested.
	Chat(ctx context.Context, model string, messages []Message, jsonSchema *Schema) (string, error)
	// GenerateImage renders prompt with the given model and returns an image URL
	// (a data: URL when the backend returns raw bytes).
	GenerateImage(ctx context.Context, model, prompt string) (string, error)
	// IsRunning reports whether the backend is reachable.
	IsRunning(ctx context.Context) bool
	// HasModel reports whether the given model name is available.
	HasModel(ctx context.Context, name string) bool
	// PullModel downloads a model. The optional callback receives progress updates.
	PullModel(ctx context.Context, name string, onProgress func(PullProgress)) error
}
