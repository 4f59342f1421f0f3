package config

import (
	"errors"
	"fmt"

	"github.com/telepair/pulsewatch/pkg/natsx/embed"
)

// EmbedNATSConfig runs a NATS server inside the process.
type EmbedNATSConfig struct {
	Enabled bool                `yaml:"enabled" json:"enabled"`
	Server  *embed.ServerConfig `yaml:"server"  json:"server"`
}

// DefaultEmbedNATSConfig returns a disabled embedded server config.
func DefaultEmbedNATSConfig() EmbedNATSConfig {
	return EmbedNATSConfig{Server: embed.DefaultServerConfig()}
}

// SetDefaults fills a missing server section.
func (c *EmbedNATSConfig) SetDefaults() {
	if c.Server == nil {
		c.Server = embed.DefaultServerConfig()
	}
}

// Validate checks the server section when enabled.
func (c *EmbedNATSConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Server == nil {
		return errors.New("server must be set if embed_nats is enabled")
	}
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("invalid server config: %w", err)
	}
	return nil
}
