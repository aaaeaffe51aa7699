package gateway

// GatewayConfig holds the HTTP side of the gateway: the time-offset
// endpoint, health and metrics.
type GatewayConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
	// WebAppURL is the page that reports the user's UTC offset back to
	// /set-timezone. Empty disables the /time link.
	WebAppURL string `json:"webAppUrl,omitempty"`
}

func DefaultGatewayConfig() GatewayConfig {
	return GatewayConfig{Host: "0.0.0.0", Port: 3000}
}
