package proxy

import "time"

// Config holds configuration for the outbound gateway proxy.
type Config struct {
	// DefaultGatewayIP is used whenever a request supplies no address or an
	// address that fails validation.
	DefaultGatewayIP string `mapstructure:"default_gateway_ip"`
	// Timeout bounds every forwarded call.
	Timeout time.Duration `mapstructure:"timeout"`
	// HealthTimeout bounds the lightweight health probe; kept short so an
	// offline gateway is reported within one poll cycle.
	HealthTimeout time.Duration `mapstructure:"health_timeout"`
}

// DefaultConfig returns the default proxy configuration.
func DefaultConfig() Config {
	return Config{
		DefaultGatewayIP: "192.168.12.1",
		Timeout:          10 * time.Second,
		HealthTimeout:    3 * time.Second,
	}
}
