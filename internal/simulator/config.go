package simulator

import (
	"fmt"
	"time"

	"github.com/telepair/pulsewatch/internal/observer"
)

const (
	defaultBaseBPM  = 68.0
	defaultJitter   = 2.5
	defaultInterval = time.Second
	minInterval     = 10 * time.Millisecond
	minBPM          = 30.0
	maxBPM          = 220.0
)

// Config controls the synthetic sample feed.
type Config struct {
	Enabled    bool          `yaml:"enabled"     json:"enabled"`
	SampleType string        `yaml:"sample_type" json:"sample_type"`
	BaseBPM    float64       `yaml:"base_bpm"    json:"base_bpm"`
	Jitter     float64       `yaml:"jitter"      json:"jitter"`
	Interval   time.Duration `yaml:"interval"    json:"interval"`
	// Unit samples are reported in. The observer converts them back.
	Unit observer.Unit `yaml:"unit" json:"unit"`
}

// DefaultConfig returns a disabled heart rate simulator.
func DefaultConfig() Config {
	return Config{
		SampleType: observer.HeartRate.Identifier,
		BaseBPM:    defaultBaseBPM,
		Jitter:     defaultJitter,
		Interval:   defaultInterval,
		Unit:       observer.UnitCountPerMinute,
	}
}

// Parse fills defaults and validates the configuration.
func (c *Config) Parse() error {
	if c.SampleType == "" {
		c.SampleType = observer.HeartRate.Identifier
	}
	if _, ok := observer.LookupSampleType(c.SampleType); !ok {
		return fmt.Errorf("%w: %q", observer.ErrUnknownSampleType, c.SampleType)
	}
	if c.BaseBPM == 0 {
		c.BaseBPM = defaultBaseBPM
	}
	if c.BaseBPM < minBPM || c.BaseBPM > maxBPM {
		return fmt.Errorf("base bpm %.1f out of range [%.0f, %.0f]", c.BaseBPM, minBPM, maxBPM)
	}
	if c.Jitter < 0 {
		return fmt.Errorf("jitter cannot be negative: %v", c.Jitter)
	}
	if c.Interval == 0 {
		c.Interval = defaultInterval
	}
	if c.Interval < minInterval {
		return fmt.Errorf("interval %v is below %v", c.Interval, minInterval)
	}
	if c.Unit == "" {
		c.Unit = observer.UnitCountPerMinute
	}
	if _, err := (observer.Quantity{Value: 1, Unit: c.Unit}).In(observer.UnitCountPerMinute); err != nil {
		return err
	}
	return nil
}
