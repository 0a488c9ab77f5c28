package provider

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// DefaultLocalMaxTokens caps locally generated output.
const DefaultLocalMaxTokens = 150

// LocalProvider implements Generator by running a local inference engine
// (llama.cpp's llama-cli or a binary with compatible flags).
type LocalProvider struct {
	binaryPath string
	model      string
}

// NewLocalProvider resolves the engine binary. It returns an error wrapping
// ErrLocalUnsupported when the engine is not installed, so callers fail at
// startup instead of on every message.
func NewLocalProvider(binaryPath, model string) (*LocalProvider, error) {
	if strings.TrimSpace(binaryPath) == "" {
		return nil, fmt.Errorf("%w: engine path is empty", ErrLocalUnsupported)
	}
	resolved, err := exec.LookPath(binaryPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLocalUnsupported, err)
	}
	return &LocalProvider{binaryPath: resolved, model: model}, nil
}

// Name returns the backend name.
func (p *LocalProvider) Name() string { return "local" }

// DefaultModel returns the model file passed to the engine.
func (p *LocalProvider) DefaultModel() string { return p.model }

// Generate runs the engine with sampling enabled and returns the generated
// continuation with the echoed prompt removed.
func (p *LocalProvider) Generate(ctx context.Context, req *Request) (string, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultLocalMaxTokens
	}

	args := []string{
		"-m", model,
		"--temp", strconv.FormatFloat(req.Temperature, 'f', -1, 64),
		"-n", strconv.Itoa(maxTokens),
		"-p", req.Prompt,
	}
	cmd := exec.CommandContext(ctx, p.binaryPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("local engine failed: %w (stderr: %s)", err, truncateBody(stderr.Bytes(), 512))
	}
	return stripEcho(stdout.String(), req.Prompt), nil
}

// stripEcho removes the prompt the engine echoes ahead of its continuation.
func stripEcho(output, prompt string) string {
	if rest, ok := strings.CutPrefix(output, prompt); ok {
		return rest
	}
	// Some engines emit a BOS token or leading whitespace before the echo.
	trimmed := strings.TrimLeft(output, " \t\r\n")
	if rest, ok := strings.CutPrefix(trimmed, strings.TrimLeft(prompt, " \t\r\n")); ok {
		return rest
	}
	return output
}
