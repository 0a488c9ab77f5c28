package provider

import (
	"strings"

	"github.com/ucai/ucaibot/internal/config"
)

// Resolve creates the single Generator selected by the LOCAL flag.
// It runs once at startup; an unavailable local engine is returned as an
// error wrapping ErrLocalUnsupported.
func Resolve(cfg *config.Config) (Generator, error) {
	model := strings.TrimSpace(cfg.Model.Name)
	if cfg.Model.Local {
		local := cfg.Providers.Local
		if local.Engine == config.LocalEngineLlama {
			p, err := NewLlamaProvider(model, local.ContextSize)
			if err != nil {
				return nil, &ProviderError{
					Provider: "local",
					Hint:     "build with -tags llama and set AI_MODEL to a GGUF file, or set LOCAL_ENGINE=exec",
					Err:      err,
				}
			}
			return p, nil
		}
		p, err := NewLocalProvider(local.BinaryPath, model)
		if err != nil {
			return nil, &ProviderError{
				Provider: "local",
				Hint:     "install llama.cpp or set LOCAL_ENGINE_PATH, or set LOCAL=false",
				Err:      err,
			}
		}
		return p, nil
	}

	key := strings.TrimSpace(cfg.Providers.OpenRouter.APIKey)
	if key == "" {
		return nil, &ProviderError{Provider: "openrouter", Hint: "set OPENROUTER_API_KEY"}
	}
	return NewOpenAIProvider(key, strings.TrimSpace(cfg.Providers.OpenRouter.APIBase), model), nil
}
