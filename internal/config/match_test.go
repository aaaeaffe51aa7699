package config

import (
	"errors"
	"testing"

	"github.com/crystaldolphin/confidant/internal/schema"
)

func TestMatchProvider_Keyword(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Providers.Gemini.APIKey = "g"
	cfg.Providers.OpenAI.APIKey = "o"

	if got := cfg.MatchProvider("gemini-2.5-flash").Name; got != "gemini" {
		t.Errorf("expected gemini, got %q", got)
	}
	if got := cfg.MatchProvider("gpt-4o").Name; got != "openai" {
		t.Errorf("expected openai, got %q", got)
	}
}

func TestMatchProvider_Prefix(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Providers.DeepSeek.APIKey = "d"
	cfg.Providers.OpenRouter.APIKey = "r"

	if got := cfg.MatchProvider("deepseek/deepseek-chat").Name; got != "deepseek" {
		t.Errorf("expected deepseek, got %q", got)
	}
}

func TestMatchProvider_FallbackPrefersGateway(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Providers.OpenRouter.APIKey = "r"
	cfg.Providers.DeepSeek.APIKey = "d"

	if got := cfg.MatchProvider("claude-sonnet").Name; got != "openrouter" {
		t.Errorf("expected openrouter fallback, got %q", got)
	}
}

func TestMatchProvider_NoKeys(t *testing.T) {
	cfg := DefaultConfig()
	if res := cfg.MatchProvider(""); res.Provider != nil {
		t.Errorf("expected no provider, got %q", res.Name)
	}
}

func TestValidateGateway(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.ValidateGateway(); !errors.Is(err, schema.ErrConfig) {
		t.Fatalf("expected ErrConfig for missing token, got %v", err)
	}

	cfg.Channels.Telegram.Token = "t"
	if err := cfg.ValidateGateway(); !errors.Is(err, schema.ErrConfig) {
		t.Fatalf("expected ErrConfig for missing key, got %v", err)
	}

	cfg.Providers.Gemini.APIKey = "g"
	if err := cfg.ValidateGateway(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg.Storage.Backend = "mongo"
	if err := cfg.ValidateGateway(); !errors.Is(err, schema.ErrConfig) {
		t.Fatalf("expected ErrConfig for bad backend, got %v", err)
	}
}
