package agent

import (
	"context"
	"log/slog"

	"github.com/ucai/ucaibot/internal/provider"
)

// FallbackReply is sent whenever generation fails.
const FallbackReply = "I am experiencing technical difficulties. How annoying."

// DefaultTemperature is the sampling temperature the default config sets.
const DefaultTemperature = 0.8

// Reply is the outcome of a generation attempt. Err is non-nil when Text is
// the fallback because the backend failed.
type Reply struct {
	Text string
	Err  error
}

// Failed reports whether the reply is the fallback.
func (r Reply) Failed() bool { return r.Err != nil }

// ResponderOptions configures a Responder.
type ResponderOptions struct {
	Generator   provider.Generator
	Persona     string
	Model       string
	Temperature float64
	MaxTokens   int
}

// Responder builds prompts and runs them through the configured backend.
type Responder struct {
	generator   provider.Generator
	persona     string
	model       string
	temperature float64
	maxTokens   int
}

// NewResponder creates a Responder.
func NewResponder(opts ResponderOptions) *Responder {
	model := opts.Model
	if model == "" && opts.Generator != nil {
		model = opts.Generator.DefaultModel()
	}
	return &Responder{
		generator:   opts.Generator,
		persona:     opts.Persona,
		model:       model,
		temperature: opts.Temperature,
		maxTokens:   opts.MaxTokens,
	}
}

// Model returns the model identifier sent with every request.
func (r *Responder) Model() string { return r.model }

// Respond generates raw reply text for input given the recent history.
// It never fails: backend errors produce FallbackReply with Err set.
func (r *Responder) Respond(ctx context.Context, input string, history []string) Reply {
	req := &provider.Request{
		System:      r.persona,
		Prompt:      BuildPrompt(r.persona, history, input),
		Model:       r.model,
		Temperature: r.temperature,
		MaxTokens:   r.maxTokens,
	}
	text, err := r.generator.Generate(ctx, req)
	if err != nil {
		slog.Error("Error generating AI response", "backend", r.generator.Name(), "model", r.model, "error", err)
		return Reply{Text: FallbackReply, Err: err}
	}
	slog.Debug("Generated raw reply", "backend", r.generator.Name(), "chars", len(text))
	return Reply{Text: text}
}
