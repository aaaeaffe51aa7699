package channel

type ChannelsConfig struct {
	Telegram TelegramConfig `json:"telegram"`
}

func DefaultChannelsConfig() ChannelsConfig {
	return ChannelsConfig{
		Telegram: DefaultTelegramConfig(),
	}
}
