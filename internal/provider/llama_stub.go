//go:build !llama

package provider

import (
	"context"
	"fmt"
)

// LlamaAvailable reports whether this binary carries the in-process engine.
const LlamaAvailable = false

// LlamaProvider is unavailable in builds without the llama tag.
type LlamaProvider struct{}

// NewLlamaProvider always fails with ErrLocalUnsupported in this build.
func NewLlamaProvider(modelPath string, contextSize int) (*LlamaProvider, error) {
	return nil, fmt.Errorf("%w: built without the llama tag", ErrLocalUnsupported)
}

func (p *LlamaProvider) Name() string         { return "local" }
func (p *LlamaProvider) DefaultModel() string { return "" }

func (p *LlamaProvider) Generate(ctx context.Context, req *Request) (string, error) {
	return "", ErrLocalUnsupported
}

func (p *LlamaProvider) Close() error { return nil }
