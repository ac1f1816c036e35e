package config

import (
	"fmt"
	"time"
)

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`

	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`

	DatabasePath string `mapstructure:"database_path" yaml:"database_path"`

	// JWT verification. An empty secret leaves websocket identities unverified.
	JWTSecret   string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer   string        `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience string        `mapstructure:"jwt_audience" yaml:"jwt_audience"`
	JWTTTL      time.Duration `mapstructure:"jwt_ttl" yaml:"jwt_ttl"`

	MaxMessageBytes    int64         `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
	RateLimitPerMinute int           `mapstructure:"rate_limit_per_minute" yaml:"rate_limit_per_minute"`
	EventBuffer        int           `mapstructure:"event_buffer" yaml:"event_buffer"`
	PersistTimeout     time.Duration `mapstructure:"persist_timeout" yaml:"persist_timeout"`
	HistoryLimit       int           `mapstructure:"history_limit" yaml:"history_limit"`

	// Event relay. Disabled while AMQPURL is empty.
	AMQPURL      string `mapstructure:"amqp_url" yaml:"amqp_url"`
	AMQPExchange string `mapstructure:"amqp_exchange" yaml:"amqp_exchange"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:               ":8080",
		ReadHeaderTimeout:  5 * time.Second,
		ShutdownTimeout:    5 * time.Second,
		LogLevel:           "info",
		LogFormat:          "console",
		DatabasePath:       "chatcore.db",
		JWTTTL:             24 * time.Hour,
		MaxMessageBytes:    1 << 20,
		RateLimitPerMinute: 0,
		EventBuffer:        64,
		PersistTimeout:     5 * time.Second,
		HistoryLimit:       100,
		AMQPExchange:       "chatcore.events",
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
// Used for command-line overrides.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.DatabasePath != "" {
		c.DatabasePath = other.DatabasePath
	}
}

// Validate rejects settings the server cannot run with.
func (c Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("config: addr is required")
	case c.DatabasePath == "":
		return fmt.Errorf("config: database_path is required")
	case c.PersistTimeout <= 0:
		return fmt.Errorf("config: persist_timeout must be positive")
	case c.HistoryLimit <= 0:
		return fmt.Errorf("config: history_limit must be positive")
	case c.MaxMessageBytes <= 0:
		return fmt.Errorf("config: max_message_bytes must be positive")
	case c.RateLimitPerMinute < 0:
		return fmt.Errorf("config: rate_limit_per_minute must not be negative")
	}
	return nil
}
