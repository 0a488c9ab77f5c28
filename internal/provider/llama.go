//go:build llama

package provider

import (
	"context"
	"fmt"
	"strings"
	"sync"

	llama "github.com/go-skynet/go-llama.cpp"
)

// LlamaAvailable reports whether this binary carries the in-process engine.
const LlamaAvailable = true

// LlamaProvider implements Generator with llama.cpp bindings loaded in-process.
type LlamaProvider struct {
	modelPath string
	model     *llama.LLama
	// llama.cpp contexts are not safe for concurrent prediction.
	mu sync.Mutex
}

// NewLlamaProvider loads the GGUF model at modelPath.
func NewLlamaProvider(modelPath string, contextSize int) (*LlamaProvider, error) {
	if strings.TrimSpace(modelPath) == "" {
		return nil, fmt.Errorf("%w: model path is empty", ErrLocalUnsupported)
	}
	if contextSize <= 0 {
		contextSize = 2048
	}
	model, err := llama.New(modelPath, llama.SetContext(contextSize))
	if err != nil {
		return nil, fmt.Errorf("%w: load %s: %v", ErrLocalUnsupported, modelPath, err)
	}
	return &LlamaProvider{modelPath: modelPath, model: model}, nil
}

// Name returns the backend name.
func (p *LlamaProvider) Name() string { return "local" }

// DefaultModel returns the loaded model file.
func (p *LlamaProvider) DefaultModel() string { return p.modelPath }

// Generate predicts a continuation of the prompt. The bindings cannot be
// interrupted, so ctx is only checked before prediction starts.
func (p *LlamaProvider) Generate(ctx context.Context, req *Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultLocalMaxTokens
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	out, err := p.model.Predict(req.Prompt,
		llama.SetTemperature(float32(req.Temperature)),
		llama.SetTokens(maxTokens),
	)
	if err != nil {
		return "", fmt.Errorf("llama predict: %w", err)
	}
	return stripEcho(out, req.Prompt), nil
}

// Close frees the model.
func (p *LlamaProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.model != nil {
		p.model.Free()
		p.model = nil
	}
	return nil
}
