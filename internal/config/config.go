package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Storage drivers.
const (
	DriverSQLite = "sqlite"
	DriverBadger = "badger"
)

var validate = validator.New()

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr" validate:"required"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout" validate:"gte=0"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" validate:"gte=0"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level" validate:"omitempty,oneof=debug info warn warning error"`
	LogFile           string        `mapstructure:"log_file" yaml:"log_file"`
	// MaxMessageBytes caps the content of a message sent over HTTP or WS. Zero disables the check.
	MaxMessageBytes int `mapstructure:"max_message_bytes" yaml:"max_message_bytes" validate:"gte=0"`
	// InboundRateLimit is the number of WS frames a connection may send per minute. Zero disables it.
	InboundRateLimit int           `mapstructure:"inbound_rate_limit" yaml:"inbound_rate_limit" validate:"gte=0"`
	Storage          StorageConfig `mapstructure:"storage" yaml:"storage"`
}

// StorageConfig selects the message store backend.
// An empty badger path keeps the data in memory.
type StorageConfig struct {
	Driver string `mapstructure:"driver" yaml:"driver" validate:"oneof=sqlite badger"`
	Path   string `mapstructure:"path" yaml:"path" validate:"required_if=Driver sqlite"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		MaxMessageBytes:   4096,
		InboundRateLimit:  120,
		Storage: StorageConfig{
			Driver: DriverSQLite,
			Path:   "duochat.db",
		},
	}
}

// Validate checks value ranges and the storage selection.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// UpdateFrom overwrites non-zero values from other config into receiver.
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
	if other.LogFile != "" {
		c.LogFile = other.LogFile
	}
	if other.MaxMessageBytes != 0 {
		c.MaxMessageBytes = other.MaxMessageBytes
	}
	if other.InboundRateLimit != 0 {
		c.InboundRateLimit = other.InboundRateLimit
	}
	if other.Storage.Driver != "" {
		c.Storage.Driver = other.Storage.Driver
	}
	if other.Storage.Path != "" {
		c.Storage.Path = other.Storage.Path
	}
}
