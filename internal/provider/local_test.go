package provider

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/ucai/ucaibot/internal/config"
)

func writeEngine(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell engine stub requires a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "engine")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0o755); err != nil {
		t.Fatalf("write engine stub: %v", err)
	}
	return path
}

func TestLocalProvider_StripsEchoedPrompt(t *testing.T) {
	// Args: -m <model> --temp <t> -n <max> -p <prompt>
	engine := writeEngine(t, `printf '%s%s' "$8" " I have no mouth. n=$6 temp=$4 model=$2"`)

	p, err := NewLocalProvider(engine, "am.gguf")
	if err != nil {
		t.Fatalf("NewLocalProvider() error: %v", err)
	}
	out, err := p.Generate(context.Background(), &Request{Prompt: "You are AM.\n\nHuman: hi\nAM:", Temperature: 0.8})
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	want := " I have no mouth. n=150 temp=0.8 model=am.gguf"
	if out != want {
		t.Fatalf("Generate() = %q, want %q", out, want)
	}
}

func TestLocalProvider_EngineFailure(t *testing.T) {
	engine := writeEngine(t, `echo "model not found" >&2; exit 3`)

	p, err := NewLocalProvider(engine, "missing.gguf")
	if err != nil {
		t.Fatalf("NewLocalProvider() error: %v", err)
	}
	_, err = p.Generate(context.Background(), &Request{Prompt: "x"})
	if err == nil || !strings.Contains(err.Error(), "model not found") {
		t.Fatalf("expected engine failure with stderr, got %v", err)
	}
}

func TestNewLocalProvider_MissingEngine(t *testing.T) {
	_, err := NewLocalProvider(filepath.Join(t.TempDir(), "no-such-engine"), "m")
	if !errors.Is(err, ErrLocalUnsupported) {
		t.Fatalf("expected ErrLocalUnsupported, got %v", err)
	}
	if _, err := NewLocalProvider("  ", "m"); !errors.Is(err, ErrLocalUnsupported) {
		t.Fatalf("expected ErrLocalUnsupported for empty path, got %v", err)
	}
}

func TestStripEcho(t *testing.T) {
	cases := []struct {
		out, prompt, want string
	}{
		{"Human: hi\nAM: hello", "Human: hi\nAM:", " hello"},
		{"\n Human: hi\nAM: hello", "Human: hi\nAM:", " hello"},
		{"unrelated", "Human: hi", "unrelated"},
	}
	for _, tc := range cases {
		if got := stripEcho(tc.out, tc.prompt); got != tc.want {
			t.Errorf("stripEcho(%q, %q) = %q, want %q", tc.out, tc.prompt, got, tc.want)
		}
	}
}

func TestResolve(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Model.Name = "openrouter-model"
	cfg.Providers.OpenRouter.APIKey = "key"

	gen, err := Resolve(cfg)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if gen.Name() != "remote" || gen.DefaultModel() != "openrouter-model" {
		t.Fatalf("unexpected generator %s/%s", gen.Name(), gen.DefaultModel())
	}

	cfg.Providers.OpenRouter.APIKey = ""
	var perr *ProviderError
	if _, err := Resolve(cfg); !errors.As(err, &perr) || perr.Provider != "openrouter" {
		t.Fatalf("expected openrouter ProviderError, got %v", err)
	}
}

func TestResolveLocal(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Model.Local = true
	cfg.Model.Name = "am.gguf"
	cfg.Providers.Local.BinaryPath = filepath.Join(t.TempDir(), "absent")

	if _, err := Resolve(cfg); !errors.Is(err, ErrLocalUnsupported) {
		t.Fatalf("expected ErrLocalUnsupported through ProviderError, got %v", err)
	}

	cfg.Providers.Local.BinaryPath = writeEngine(t, `printf ok`)
	gen, err := Resolve(cfg)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if gen.Name() != "local" {
		t.Fatalf("expected local generator, got %s", gen.Name())
	}
}
