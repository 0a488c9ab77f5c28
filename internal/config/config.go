// Package config provides configuration types and loading for ucaibot.
package config

import (
	"errors"
	"fmt"
	"strings"
)

// Config is the root configuration struct.
// Top-level groups: Slack, Model, Providers, Agent, Log.
type Config struct {
	Slack     SlackConfig     `json:"slack"`
	Model     ModelConfig     `json:"model"`
	Providers ProvidersConfig `json:"providers"`
	Agent     AgentConfig     `json:"agent"`
	Log       LogConfig       `json:"log"`
}

// ---------------------------------------------------------------------------
// Slack – chat platform connection
// ---------------------------------------------------------------------------

// SlackConfig configures the Slack Socket Mode channel.
type SlackConfig struct {
	BotToken  string `json:"botToken" envconfig:"SLACK_BOT_TOKEN"`
	AppToken  string `json:"appToken" envconfig:"SLACK_APP_TOKEN"`
	BotUserID string `json:"botUserId,omitempty" envconfig:"SLACK_BOT_USER_ID"`
	APIBase   string `json:"apiBase,omitempty" envconfig:"SLACK_API_BASE"`
	// ChannelID is the only channel the bot listens and replies in.
	ChannelID string `json:"channelId" envconfig:"CHANNEL_ID"`
}

// ---------------------------------------------------------------------------
// Model – generation backend selection and sampling
// ---------------------------------------------------------------------------

// ModelConfig groups model selection and sampling settings.
type ModelConfig struct {
	Name        string  `json:"name" envconfig:"AI_MODEL"`
	Local       bool    `json:"local" envconfig:"LOCAL"`
	Temperature float64 `json:"temperature" envconfig:"TEMPERATURE"`
	// MaxTokens caps the output; 0 leaves the backend default (250 remote, 150 local).
	MaxTokens int `json:"maxTokens,omitempty" envconfig:"MAX_TOKENS"`
}

// ---------------------------------------------------------------------------
// Providers – backend credentials & endpoints
// ---------------------------------------------------------------------------

// ProvidersConfig contains generation backend configurations.
type ProvidersConfig struct {
	OpenRouter ProviderConfig    `json:"openrouter"`
	Local      LocalEngineConfig `json:"local"`
}

// ProviderConfig contains settings for the remote chat-completion API.
type ProviderConfig struct {
	APIKey  string `json:"apiKey" envconfig:"OPENROUTER_API_KEY"`
	APIBase string `json:"apiBase,omitempty" envconfig:"OPENROUTER_API_BASE"`
}

// LocalEngineConfig selects the local inference engine.
// Engine "exec" runs BinaryPath; "llama" loads the model in-process and
// needs a binary built with the llama tag.
type LocalEngineConfig struct {
	Engine      string `json:"engine" envconfig:"LOCAL_ENGINE"`
	BinaryPath  string `json:"binaryPath" envconfig:"LOCAL_ENGINE_PATH"`
	ContextSize int    `json:"contextSize,omitempty" envconfig:"LOCAL_CONTEXT_SIZE"`
}

const (
	LocalEngineExec  = "exec"
	LocalEngineLlama = "llama"
)

// ---------------------------------------------------------------------------
// Agent – persona and response behaviour
// ---------------------------------------------------------------------------

// AgentConfig holds the persona prompt and response policy knobs.
type AgentConfig struct {
	Prompt               string  `json:"prompt" envconfig:"PROMPT"`
	RandomResponseChance float64 `json:"randomResponseChance" envconfig:"RANDOM_RESPONSE_CHANCE"`
}

// LogConfig controls diagnostic output.
type LogConfig struct {
	Debug bool `json:"debug" envconfig:"DEBUG"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Slack: SlackConfig{
			APIBase: "https://slack.com/api/",
		},
		Model: ModelConfig{
			Temperature: 0.8,
		},
		Providers: ProvidersConfig{
			OpenRouter: ProviderConfig{
				APIBase: "https://openrouter.ai/api/v1",
			},
			Local: LocalEngineConfig{
				Engine:      LocalEngineExec,
				BinaryPath:  "llama-cli",
				ContextSize: 2048,
			},
		},
		Agent: AgentConfig{
			RandomResponseChance: 0.1,
		},
	}
}

// Mode selects which fields Validate requires.
type Mode int

const (
	// ModeRun validates everything the chat bot needs.
	ModeRun Mode = iota
	// ModeAsk validates only what one-shot generation needs.
	ModeAsk
)

// Validate reports every missing or out-of-range setting for the given mode.
func (c *Config) Validate(mode Mode) error {
	var errs []error
	missing := func(name, value string) {
		if strings.TrimSpace(value) == "" {
			errs = append(errs, fmt.Errorf("%s is required", name))
		}
	}

	missing("AI_MODEL", c.Model.Name)
	if !c.Model.Local {
		missing("OPENROUTER_API_KEY", c.Providers.OpenRouter.APIKey)
	} else {
		switch c.Providers.Local.Engine {
		case LocalEngineExec, "":
			missing("LOCAL_ENGINE_PATH", c.Providers.Local.BinaryPath)
		case LocalEngineLlama:
		default:
			errs = append(errs, fmt.Errorf("LOCAL_ENGINE must be %q or %q, got %q", LocalEngineExec, LocalEngineLlama, c.Providers.Local.Engine))
		}
	}
	if c.Model.Temperature < 0 || c.Model.Temperature > 2 {
		errs = append(errs, fmt.Errorf("TEMPERATURE must be within [0,2], got %v", c.Model.Temperature))
	}
	if c.Model.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("MAX_TOKENS must not be negative, got %d", c.Model.MaxTokens))
	}

	if mode == ModeRun {
		missing("SLACK_BOT_TOKEN", c.Slack.BotToken)
		missing("SLACK_APP_TOKEN", c.Slack.AppToken)
		missing("CHANNEL_ID", c.Slack.ChannelID)
		if p := c.Agent.RandomResponseChance; p < 0 || p > 1 {
			errs = append(errs, fmt.Errorf("RANDOM_RESPONSE_CHANCE must be within [0,1], got %v", p))
		}
	}
	return errors.Join(errs...)
}
