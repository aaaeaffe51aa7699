package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, dir string, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_NonExistent(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.json")
	if err != nil {
		t.Fatalf("expected no error for missing file, got: %v", err)
	}
	def := DefaultConfig()
	if cfg.Session.TrimTo != def.Session.TrimTo {
		t.Errorf("expected default trimTo %d, got %d", def.Session.TrimTo, cfg.Session.TrimTo)
	}
}

func TestLoad_ValidConfig(t *testing.T) {
	t.Setenv(EnvModel, "")
	dir := t.TempDir()
	path := writeConfig(t, dir, map[string]any{
		"agents": map[string]any{
			"defaults": map[string]any{
				"model": "openai/gpt-4o",
			},
		},
		"reengagement": map[string]any{
			"shortMin": "1h",
			"shortMax": "2h",
		},
		"delivery": map[string]any{
			"perCharDelay": 10,
		},
	})

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Agents.Defaults.Model != "openai/gpt-4o" {
		t.Errorf("expected model %q, got %q", "openai/gpt-4o", cfg.Agents.Defaults.Model)
	}
	if cfg.Reengagement.ShortMin.Std() != time.Hour || cfg.Reengagement.ShortMax.Std() != 2*time.Hour {
		t.Errorf("unexpected short range: %v..%v", cfg.Reengagement.ShortMin.Std(), cfg.Reengagement.ShortMax.Std())
	}
	if cfg.Delivery.PerCharDelay.Std() != 10*time.Millisecond {
		t.Errorf("bare number should be milliseconds, got %v", cfg.Delivery.PerCharDelay.Std())
	}
	// Untouched sections keep defaults.
	if cfg.Reengagement.LongMax.Std() != 96*time.Hour {
		t.Errorf("expected default longMax, got %v", cfg.Reengagement.LongMax.Std())
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte("{not valid json"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("expected no error for invalid JSON (falls back to default), got: %v", err)
	}
	def := DefaultConfig()
	if cfg.Delivery.PerCharDelay != def.Delivery.PerCharDelay {
		t.Errorf("expected default perCharDelay, got %v", cfg.Delivery.PerCharDelay.Std())
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, map[string]any{
		"delivery": map[string]any{"heartbeat": "soon"},
	})

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Delivery.Heartbeat.Std() != 4*time.Second {
		t.Errorf("expected fallback heartbeat 4s, got %v", cfg.Delivery.Heartbeat.Std())
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv(EnvTelegramToken, "123:abc")
	t.Setenv(EnvGeminiKey, "g-key")
	t.Setenv(EnvModel, "gemini-2.5-pro")
	t.Setenv(EnvWebAppURL, "https://example.org/tz")
	t.Setenv(EnvPort, "8081")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Channels.Telegram.Token != "123:abc" {
		t.Errorf("token not applied: %q", cfg.Channels.Telegram.Token)
	}
	if cfg.Providers.Gemini.APIKey != "g-key" {
		t.Errorf("gemini key not applied")
	}
	if cfg.Agents.Defaults.Model != "gemini-2.5-pro" {
		t.Errorf("model not applied: %q", cfg.Agents.Defaults.Model)
	}
	if cfg.Gateway.WebAppURL != "https://example.org/tz" {
		t.Errorf("web app url not applied")
	}
	if cfg.Gateway.Port != 8081 {
		t.Errorf("port not applied: %d", cfg.Gateway.Port)
	}
}

func TestLoad_InvalidPortIgnored(t *testing.T) {
	t.Setenv(EnvPort, "http")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Gateway.Port != 3000 {
		t.Errorf("expected default port, got %d", cfg.Gateway.Port)
	}
}

func TestSave_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	original := DefaultConfig()
	original.Agents.Defaults.Model = "gemini-2.0-flash"
	original.Reengagement.LongMin = Duration(36 * time.Hour)

	if err := Save(&original, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	t.Setenv(EnvModel, "")
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Agents.Defaults.Model != original.Agents.Defaults.Model {
		t.Errorf("model mismatch: got %q, want %q", loaded.Agents.Defaults.Model, original.Agents.Defaults.Model)
	}
	if loaded.Reengagement.LongMin != original.Reengagement.LongMin {
		t.Errorf("longMin mismatch: got %v", loaded.Reengagement.LongMin.Std())
	}
}

func TestSave_FilePermissions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	cfg := DefaultConfig()
	if err := Save(&cfg, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat failed: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("expected permissions 0600, got %04o", perm)
	}
}

func TestSave_CreatesDirectory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "dir", "config.json")

	cfg := DefaultConfig()
	if err := Save(&cfg, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("file not created: %v", err)
	}
}

func TestLoadDotEnv_MissingFileIsQuiet(t *testing.T) {
	LoadDotEnv(filepath.Join(t.TempDir(), "absent.env"))
}

func TestLoadDotEnv_ReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("CONFIDANT_TEST_VALUE=hello\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIDANT_TEST_VALUE", "")
	os.Unsetenv("CONFIDANT_TEST_VALUE")

	LoadDotEnv(path)
	if got := os.Getenv("CONFIDANT_TEST_VALUE"); got != "hello" {
		t.Errorf("expected hello, got %q", got)
	}
}
