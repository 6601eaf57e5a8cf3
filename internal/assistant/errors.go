package assistant

import "fmt"

// AdapterError reports a failure talking to the language service.
type AdapterError struct {
	Op  string
	Err error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("language service %s: %v", e.Op, e.Err)
}

func (e *AdapterError) Unwrap() error { return e.Err }

// GenerationError reports a failed image generation.
type GenerationError struct {
	Prompt string
	Err    error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generating image for %q: %v", e.Prompt, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }
