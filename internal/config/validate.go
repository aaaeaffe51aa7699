package config

import (
	"fmt"

	"github.com/crystaldolphin/confidant/internal/schema"
)

// ValidateGateway checks the credentials the gateway cannot run without.
// A missing web app URL only disables the /time link and is not reported.
func (c *Config) ValidateGateway() error {
	if c.Channels.Telegram.Token == "" {
		return fmt.Errorf("%w: telegram token (set %s or channels.telegram.token)", schema.ErrConfig, EnvTelegramToken)
	}
	return c.Validate()
}

// Validate checks that the default model resolves to a provider with
// credentials and that the engine settings are coherent.
func (c *Config) Validate() error {
	model := c.Agents.Defaults.Model
	if c.MatchProvider(model).Provider == nil {
		return fmt.Errorf("%w: no API key configured for model %q; edit %s", schema.ErrConfig, model, ConfigPath())
	}
	switch c.Storage.Backend {
	case StorageFile, StorageRedis, StorageSQLite:
	default:
		return fmt.Errorf("%w: unknown storage backend %q", schema.ErrConfig, c.Storage.Backend)
	}
	if c.Reengagement.ShortMin > c.Reengagement.ShortMax || c.Reengagement.LongMin > c.Reengagement.LongMax {
		return fmt.Errorf("%w: reengagement bounds are inverted", schema.ErrConfig)
	}
	return nil
}
