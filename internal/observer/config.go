package observer

import (
	"errors"
	"fmt"
	"strings"
)

const (
	defaultSampleType       = "heart_rate"
	defaultQueueSize        = 256
	defaultSubscriberBuffer = 64
)

// Config holds observer configuration.
type Config struct {
	SampleType string `yaml:"sample_type"       json:"sample_type"`
	// DeviceID is the local wearable. Empty means the host resolves it.
	DeviceID         string `yaml:"device_id"         json:"device_id"`
	DeviceName       string `yaml:"device_name"       json:"device_name"`
	QueueSize        int    `yaml:"queue_size"        json:"queue_size"`
	SubscriberBuffer int    `yaml:"subscriber_buffer" json:"subscriber_buffer"`
}

// DefaultConfig returns the heart rate observer configuration.
func DefaultConfig() Config {
	return Config{
		SampleType:       defaultSampleType,
		QueueSize:        defaultQueueSize,
		SubscriberBuffer: defaultSubscriberBuffer,
	}
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	if strings.TrimSpace(c.SampleType) == "" {
		c.SampleType = defaultSampleType
	}
	if c.QueueSize <= 0 {
		c.QueueSize = defaultQueueSize
	}
	if c.SubscriberBuffer <= 0 {
		c.SubscriberBuffer = defaultSubscriberBuffer
	}
	if c.DeviceName == "" {
		c.DeviceName = c.DeviceID
	}
}

// Validate checks the configuration. The sample type is resolved at Start,
// not here, so an unknown type surfaces as ErrUnknownSampleType.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DeviceID) == "" {
		return errors.New("device id is required")
	}
	if c.QueueSize < 0 {
		return fmt.Errorf("queue size cannot be negative: %d", c.QueueSize)
	}
	if c.SubscriberBuffer < 0 {
		return fmt.Errorf("subscriber buffer cannot be negative: %d", c.SubscriberBuffer)
	}
	return nil
}

// Device returns the local device described by the configuration.
func (c *Config) Device() Device {
	return Device{ID: c.DeviceID, Name: c.DeviceName}
}
