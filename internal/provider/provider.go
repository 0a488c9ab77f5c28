// Package provider implements the text-generation backends.
package provider

import (
	"context"
	"errors"
	"fmt"
)

// Generator is the capability shared by every backend: generate text for a prompt.
type Generator interface {
	// Generate returns the raw generated text for the request.
	Generate(ctx context.Context, req *Request) (string, error)
	// Name identifies the backend in logs ("remote" or "local").
	Name() string
	// DefaultModel returns the configured model identifier.
	DefaultModel() string
}

// Request contains the parameters for one generation call.
type Request struct {
	// System is the persona text. Chat backends send it as the system message.
	System string
	// Prompt is the full constructed prompt: persona, history and the new input.
	Prompt      string
	Model       string
	Temperature float64
	// MaxTokens caps the output; 0 selects the backend default.
	MaxTokens int
}

// ErrLocalUnsupported is returned when no local inference engine is available.
var ErrLocalUnsupported = errors.New("local generation unsupported: no inference engine available")

// ProviderError is returned when a provider cannot be constructed.
type ProviderError struct {
	Provider string
	Hint     string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("provider %q: %s: %v", e.Provider, e.Hint, e.Err)
	}
	return fmt.Sprintf("provider %q: %s", e.Provider, e.Hint)
}

func (e *ProviderError) Unwrap() error { return e.Err }
