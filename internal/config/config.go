// Package config loads the pulsewatch service configuration.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/telepair/pulsewatch/internal/observer"
	"github.com/telepair/pulsewatch/internal/simulator"
	"github.com/telepair/pulsewatch/pkg/health"
	"github.com/telepair/pulsewatch/pkg/logger"
	"github.com/telepair/pulsewatch/pkg/natsx/client"
	"github.com/telepair/pulsewatch/pkg/utils"
)

const (
	// DefaultPath is where the CLI looks for a config file.
	DefaultPath = "~/.pulsewatch/config.yaml"

	defaultShutdownTimeoutSec = 10
	defaultControlPrefix      = "pulse.control"
)

// Config holds the configuration of the pulsewatch service.
type Config struct {
	Observer           observer.Config  `yaml:"observer"             json:"observer"`
	Sensor             SensorConfig     `yaml:"sensor"               json:"sensor"`
	NATS               client.Config    `yaml:"nats"                 json:"nats"`
	EmbedNATS          EmbedNATSConfig  `yaml:"embed_nats"           json:"embed_nats"`
	Control            ControlConfig    `yaml:"control"              json:"control"`
	Simulator          simulator.Config `yaml:"simulator"            json:"simulator"`
	Health             health.Config    `yaml:"health"               json:"health"`
	Logger             logger.Config    `yaml:"logger"               json:"logger"`
	ShutdownTimeoutSec int              `yaml:"shutdown_timeout_sec" json:"shutdown_timeout_sec"`
}

// ControlConfig names the NATS subject the service takes commands on.
type ControlConfig struct {
	// ControlPrefix is followed by the device id; start/stop commands arrive there.
	ControlPrefix string `yaml:"control_prefix" json:"control_prefix"`
}

// DefaultConfig returns a configuration running the in-memory backend.
func DefaultConfig() *Config {
	cfg := &Config{
		Observer:  observer.DefaultConfig(),
		Sensor:    DefaultSensorConfig(),
		NATS:      *client.DefaultConfig(),
		EmbedNATS: DefaultEmbedNATSConfig(),
		Simulator: simulator.DefaultConfig(),
		Health:    health.DefaultConfig(),
		Logger:    logger.DefaultConfig(),
	}
	cfg.SetDefaults()
	return cfg
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	c.Sensor.SetDefaults()
	c.EmbedNATS.SetDefaults()
	if c.Control.ControlPrefix == "" {
		c.Control.ControlPrefix = defaultControlPrefix
	}
	if c.ShutdownTimeoutSec <= 0 {
		c.ShutdownTimeoutSec = defaultShutdownTimeoutSec
	}
}

// Validate validates the configuration. The observer device id may be empty;
// the host resolves it from the machine.
func (c *Config) Validate() error {
	if c.Observer.QueueSize < 0 || c.Observer.SubscriberBuffer < 0 {
		return errors.New("invalid observer config: buffer sizes cannot be negative")
	}
	if err := c.Sensor.Validate(); err != nil {
		return fmt.Errorf("invalid sensor config: %w", err)
	}
	if c.Sensor.UsesNATS() {
		if err := c.NATS.Validate(); err != nil {
			return fmt.Errorf("invalid nats config: %w", err)
		}
	}
	if err := c.EmbedNATS.Validate(); err != nil {
		return fmt.Errorf("invalid embed_nats config: %w", err)
	}
	if err := client.ValidateSubject(c.Control.ControlPrefix + ".x"); err != nil {
		return fmt.Errorf("invalid control prefix: %w", err)
	}
	if c.Simulator.Enabled {
		if err := c.Simulator.Parse(); err != nil {
			return fmt.Errorf("invalid simulator config: %w", err)
		}
	}
	if c.Health.Enabled {
		if err := c.Health.Parse(); err != nil {
			return fmt.Errorf("invalid health config: %w", err)
		}
	}
	if err := c.Logger.Validate(); err != nil {
		return fmt.Errorf("invalid logger config: %w", err)
	}
	return nil
}

// NeedsNATS reports whether any component needs a NATS connection.
func (c *Config) NeedsNATS() bool {
	return c.Sensor.UsesNATS() || c.EmbedNATS.Enabled
}

// LoadConfig loads configuration from a file, or returns the default config if
// the file doesn't exist.
func LoadConfig(configPath string) (*Config, error) {
	configPath, err := utils.ExpandPath(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to expand config path: %w", err)
	}
	if configPath == "" {
		return DefaultConfig(), nil
	}
	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}

	// #nosec G304 -- configPath is controlled by user via command line flag
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	// Unmarshal over the defaults so omitted sections keep them.
	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	config.SetDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config in %s: %w", configPath, err)
	}
	return config, nil
}

// Marshal renders the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// Save writes the configuration to path, creating parent directories. An
// existing file is only replaced when overwrite is set.
func (c *Config) Save(path string, overwrite bool) error {
	path, err := utils.EnsureParent(path)
	if err != nil {
		return fmt.Errorf("prepare config path: %w", err)
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file %s already exists", path)
		}
	}
	data, err := c.Marshal()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config file %s: %w", path, err)
	}
	return nil
}
