package config

import (
	"fmt"
	"strings"

	"github.com/telepair/pulsewatch/internal/sensor/natsstore"
)

// Sensor backends.
const (
	BackendMemory = "memory"
	BackendNATS   = "nats"
)

// SensorConfig selects the sample store the observer reads from.
type SensorConfig struct {
	Backend string           `yaml:"backend" json:"backend"`
	NATS    natsstore.Config `yaml:"nats"    json:"nats"`
	// History bounds the in-memory backend.
	History int `yaml:"history" json:"history"`
}

// DefaultSensorConfig returns the in-memory backend.
func DefaultSensorConfig() SensorConfig {
	return SensorConfig{
		Backend: BackendMemory,
		NATS:    natsstore.DefaultConfig(),
		History: 1024,
	}
}

// SetDefaults fills zero values.
func (c *SensorConfig) SetDefaults() {
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
	if c.Backend == "" {
		c.Backend = BackendMemory
	}
	if c.History <= 0 {
		c.History = 1024
	}
	c.NATS.SetDefaults()
}

// Validate checks the backend and its settings.
func (c *SensorConfig) Validate() error {
	switch c.Backend {
	case BackendMemory:
		return nil
	case BackendNATS:
		if err := c.NATS.Validate(); err != nil {
			return fmt.Errorf("invalid nats store config: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unknown sensor backend %q (want %s or %s)", c.Backend, BackendMemory, BackendNATS)
	}
}

// UsesNATS reports whether the backend needs a NATS connection.
func (c *SensorConfig) UsesNATS() bool {
	return c.Backend == BackendNATS
}
