package channel

// TelegramConfig configures the Telegram channel.
type TelegramConfig struct {
	Enabled   bool     `json:"enabled"`
	Token     string   `json:"token"`
	AllowFrom []string `json:"allowFrom"`
	Proxy     string   `json:"proxy,omitempty"`
	// SendRate caps outbound API calls per second across all chats.
	SendRate float64 `json:"sendRate"`
	// SendBurst is the limiter bucket size.
	SendBurst int `json:"sendBurst"`
}

func DefaultTelegramConfig() TelegramConfig {
	return TelegramConfig{
		Enabled:   true,
		AllowFrom: []string{},
		SendRate:  25,
		SendBurst: 5,
	}
}
