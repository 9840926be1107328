// Package config loads cellgate configuration from file and environment
// and builds the application logger.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// ServerConfig holds the HTTP server configuration.
type ServerConfig struct {
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
	DevMode bool   `mapstructure:"dev_mode"`
}

// Addr returns the listen address as host:port.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Load reads configuration from file and environment variables.
// An empty configPath searches the default locations; a missing config
// file is not an error (defaults apply).
func Load(configPath string) (*viper.Viper, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.dev_mode", false)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("proxy.default_gateway_ip", "192.168.12.1")
	v.SetDefault("proxy.timeout", "10s")
	v.SetDefault("proxy.health_timeout", "3s")

	v.SetDefault("monitor.enabled", true)
	v.SetDefault("monitor.interval", "5s")
	v.SetDefault("monitor.ping_timeout", "2s")
	v.SetDefault("monitor.ping_count", 1)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("cellgate")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/cellgate")
	}

	// Environment variable support: CG_SERVER_PORT=9090
	v.SetEnvPrefix("CG")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// Config file not found is fine -- use defaults
	}

	return v, nil
}
