package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables that override file values.
const (
	EnvTelegramToken = "TELEGRAM_BOT_TOKEN"
	EnvGeminiKey     = "GEMINI_API_KEY"
	EnvOpenAIKey     = "OPENAI_API_KEY"
	EnvModel         = "GEMINI_MODEL_NAME"
	EnvWebAppURL     = "WEB_APP_URL"
	EnvPort          = "PORT"
	EnvRedisAddr     = "REDIS_ADDR"
)

// LoadDotEnv reads KEY=VALUE pairs from the given files (default ".env")
// into the process environment. Missing files are not an error; variables
// already set win.
func LoadDotEnv(files ...string) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("config: .env not loaded", "err", err)
	}
}

// ApplyEnv copies environment overrides into cfg.
func ApplyEnv(cfg *Config) {
	if v := os.Getenv(EnvTelegramToken); v != "" {
		cfg.Channels.Telegram.Token = v
	}
	if v := os.Getenv(EnvGeminiKey); v != "" {
		cfg.Providers.Gemini.APIKey = v
	}
	if v := os.Getenv(EnvOpenAIKey); v != "" {
		cfg.Providers.OpenAI.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvModel)); v != "" {
		cfg.Agents.Defaults.Model = v
	}
	if v := os.Getenv(EnvWebAppURL); v != "" {
		cfg.Gateway.WebAppURL = v
	}
	if v := os.Getenv(EnvPort); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			cfg.Gateway.Port = port
		} else {
			slog.Warn("config: ignoring invalid PORT", "value", v)
		}
	}
	if v := os.Getenv(EnvRedisAddr); v != "" {
		cfg.Storage.Redis.Addr = v
	}
}
