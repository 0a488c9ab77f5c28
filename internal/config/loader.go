package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

const (
	// ConfigDir is the default config directory name.
	ConfigDir = ".ucaibot"
	// ConfigFile is the default config file name.
	ConfigFile = "config.json"
)

// ConfigPath returns the path to the config file.
func ConfigPath() (string, error) {
	if explicit := strings.TrimSpace(os.Getenv("UCAIBOT_CONFIG")); explicit != "" {
		if strings.HasPrefix(explicit, "~") {
			home, err := resolveHomeDir()
			if err != nil {
				return "", err
			}
			return filepath.Join(home, explicit[1:]), nil
		}
		return explicit, nil
	}
	home, err := resolveHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ConfigDir, ConfigFile), nil
}

func resolveHomeDir() (string, error) {
	if h := strings.TrimSpace(os.Getenv("UCAIBOT_HOME")); h != "" {
		if strings.HasPrefix(h, "~") {
			base, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			return filepath.Join(base, h[1:]), nil
		}
		return h, nil
	}
	return os.UserHomeDir()
}

// Load loads the configuration from file and environment variables.
// Priority: environment > file > defaults.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	// Env files only fill variables the process does not already have.
	LoadEnvFileCandidates()

	path, err := ConfigPath()
	if err == nil {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := json.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, err
		}
	}

	groups := []struct {
		name   string
		target any
	}{
		{"slack", &cfg.Slack},
		{"model", &cfg.Model},
		{"openrouter", &cfg.Providers.OpenRouter},
		{"local engine", &cfg.Providers.Local},
		{"agent", &cfg.Agent},
		{"log", &cfg.Log},
	}
	for _, g := range groups {
		unsetBlankEnv(g.target)
		if err := envconfig.Process("", g.target); err != nil {
			return nil, fmt.Errorf("%s env: %w", g.name, err)
		}
	}

	cfg.Slack.APIBase = strings.TrimSpace(cfg.Slack.APIBase)
	if cfg.Slack.APIBase != "" && !strings.HasSuffix(cfg.Slack.APIBase, "/") {
		// slack-go joins method names directly onto the base.
		cfg.Slack.APIBase += "/"
	}
	if strings.HasPrefix(cfg.Providers.Local.BinaryPath, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.Providers.Local.BinaryPath = filepath.Join(home, cfg.Providers.Local.BinaryPath[1:])
		}
	}
	return cfg, nil
}

// unsetBlankEnv removes set-but-blank variables backing non-string fields so
// those fields keep their defaults. envconfig would fail to parse them.
func unsetBlankEnv(target any) {
	t := reflect.TypeOf(target).Elem()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		key := f.Tag.Get("envconfig")
		if key == "" || f.Type.Kind() == reflect.String {
			continue
		}
		if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) == "" {
			_ = os.Unsetenv(key)
		}
	}
}
