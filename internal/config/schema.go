// Package config defines the configuration schema for confidant.
//
// JSON keys use camelCase. Durations are written as Go duration strings
// ("19h", "62ms") so the file stays readable.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/crystaldolphin/confidant/internal/config/agent"
	"github.com/crystaldolphin/confidant/internal/config/channel"
	"github.com/crystaldolphin/confidant/internal/config/gateway"
	"github.com/crystaldolphin/confidant/internal/config/provider"
)

// ---- Storage ---------------------------------------------------------------

const (
	StorageFile   = "file"
	StorageRedis  = "redis"
	StorageSQLite = "sqlite"
)

// RedisConfig configures the redis storage backend.
type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password,omitempty"`
	DB       int    `json:"db"`
	Prefix   string `json:"prefix"`
}

// StorageConfig selects where slot history and diaries live.
type StorageConfig struct {
	Backend string      `json:"backend"` // "file" | "redis" | "sqlite"
	Dir     string      `json:"dir"`     // file backend root, relative to the workspace
	SQLite  string      `json:"sqlitePath"`
	Redis   RedisConfig `json:"redis"`
}

func defaultStorageConfig() StorageConfig {
	return StorageConfig{
		Backend: StorageFile,
		Dir:     "chats",
		SQLite:  "confidant.db",
		Redis: RedisConfig{
			Addr:   "localhost:6379",
			Prefix: "confidant",
		},
	}
}

// ---- Engine tuning ---------------------------------------------------------

// ReengagementConfig bounds the idle timers.
type ReengagementConfig struct {
	Enabled bool `json:"enabled"`
	// ShortMin/ShortMax bound the delay in the default state.
	ShortMin Duration `json:"shortMin"`
	ShortMax Duration `json:"shortMax"`
	// LongMin/LongMax bound the delay after a farewell.
	LongMin Duration `json:"longMin"`
	LongMax Duration `json:"longMax"`
	// PersistDeadlines keeps pending deadlines across restarts.
	PersistDeadlines bool   `json:"persistDeadlines"`
	LedgerPath       string `json:"ledgerPath"`
}

func defaultReengagementConfig() ReengagementConfig {
	return ReengagementConfig{
		Enabled:          true,
		ShortMin:         Duration(19 * time.Hour),
		ShortMax:         Duration(24 * time.Hour),
		LongMin:          Duration(48 * time.Hour),
		LongMax:          Duration(96 * time.Hour),
		PersistDeadlines: true,
		LedgerPath:       "reengagement.json",
	}
}

// DeliveryConfig controls paced delivery.
type DeliveryConfig struct {
	PerCharDelay Duration `json:"perCharDelay"`
	Heartbeat    Duration `json:"heartbeat"`
}

func defaultDeliveryConfig() DeliveryConfig {
	return DeliveryConfig{
		PerCharDelay: Duration(62 * time.Millisecond),
		Heartbeat:    Duration(4 * time.Second),
	}
}

// SessionConfig controls history trimming and the narrator cadence.
type SessionConfig struct {
	TrimAbove       int `json:"trimAbove"`
	TrimTo          int `json:"trimTo"`
	NarratorCadence int `json:"narratorCadence"`
	// SpamThreshold is the number of unanswered messages tolerated.
	SpamThreshold int `json:"spamThreshold"`
}

func defaultSessionConfig() SessionConfig {
	return SessionConfig{
		TrimAbove:       100,
		TrimTo:          80,
		NarratorCadence: 2,
		SpamThreshold:   2,
	}
}

// LimitsConfig caps user-supplied text and media.
type LimitsConfig struct {
	Bio        int   `json:"bio"`
	Character  int   `json:"character"`
	Narrator   int   `json:"narrator"`
	ImageBytes int64 `json:"imageBytes"`
	VoiceBytes int64 `json:"voiceBytes"`
}

func defaultLimitsConfig() LimitsConfig {
	return LimitsConfig{
		Bio:        700,
		Character:  400,
		Narrator:   3000,
		ImageBytes: 4 << 20,
		VoiceBytes: 14 << 20,
	}
}

// ---- Root config -----------------------------------------------------------

// Config is the root configuration object, loaded from ~/.confidant/config.json.
type Config struct {
	Agents       agent.AgentsConfig       `json:"agents"`
	Channels     channel.ChannelsConfig   `json:"channels"`
	Providers    provider.ProvidersConfig `json:"providers"`
	Gateway      gateway.GatewayConfig    `json:"gateway"`
	Storage      StorageConfig            `json:"storage"`
	Reengagement ReengagementConfig       `json:"reengagement"`
	Delivery     DeliveryConfig           `json:"delivery"`
	Session      SessionConfig            `json:"session"`
	Limits       LimitsConfig             `json:"limits"`
}

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() Config {
	return Config{
		Agents:       agent.DefaultAgentsConfig(),
		Channels:     channel.DefaultChannelsConfig(),
		Providers:    provider.DefaultProvidersConfig(),
		Gateway:      gateway.DefaultGatewayConfig(),
		Storage:      defaultStorageConfig(),
		Reengagement: defaultReengagementConfig(),
		Delivery:     defaultDeliveryConfig(),
		Session:      defaultSessionConfig(),
		Limits:       defaultLimitsConfig(),
	}
}

// WorkspacePath returns the expanded absolute path to the persona workspace.
func (c *Config) WorkspacePath() string {
	ws := c.Agents.Defaults.Workspace
	if ws == "" {
		ws = "~/.confidant/workspace"
	}
	return expandHome(ws)
}

// WorkspaceFile resolves p against the workspace unless it is absolute.
func (c *Config) WorkspaceFile(p string) string {
	p = expandHome(p)
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.WorkspacePath(), p)
}

// ProviderByName returns a pointer to the ProviderConfig field matching the
// given registry name (e.g. "gemini", "openai"). Returns nil if unknown.
func (c *Config) ProviderByName(name string) *provider.ProviderConfig {
	return c.Providers.ByName(name)
}

func expandHome(p string) string {
	if strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, p[2:])
		}
	}
	return p
}
