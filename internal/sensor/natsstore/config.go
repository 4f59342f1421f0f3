package natsstore

import (
	"errors"
	"fmt"
	"time"

	"github.com/telepair/pulsewatch/pkg/natsx/client"
)

const (
	defaultStream        = "pulse-samples"
	defaultSubjectPrefix = "pulse.samples"
	defaultGrantBucket   = "pulse-grants"
	defaultMaxAge        = 7 * 24 * time.Hour
	defaultFetchBatch    = 32
	defaultFetchWait     = time.Second
	defaultDuplicates    = 2 * time.Minute
)

// Config describes where samples and grants live in JetStream.
type Config struct {
	Stream        string        `yaml:"stream"         json:"stream"`
	SubjectPrefix string        `yaml:"subject_prefix" json:"subject_prefix"`
	GrantBucket   string        `yaml:"grant_bucket"   json:"grant_bucket"`
	// AutoGrant records a grant for capabilities that were never decided.
	AutoGrant  bool          `yaml:"auto_grant"  json:"auto_grant"`
	MaxAge     time.Duration `yaml:"max_age"     json:"max_age"`
	OnMemory   bool          `yaml:"on_memory"   json:"on_memory"`
	FetchBatch int           `yaml:"fetch_batch" json:"fetch_batch"`
	FetchWait  time.Duration `yaml:"fetch_wait"  json:"fetch_wait"`
}

// DefaultConfig returns the default store layout.
func DefaultConfig() Config {
	return Config{
		Stream:        defaultStream,
		SubjectPrefix: defaultSubjectPrefix,
		GrantBucket:   defaultGrantBucket,
		AutoGrant:     true,
		MaxAge:        defaultMaxAge,
		FetchBatch:    defaultFetchBatch,
		FetchWait:     defaultFetchWait,
	}
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	if c.Stream == "" {
		c.Stream = defaultStream
	}
	if c.SubjectPrefix == "" {
		c.SubjectPrefix = defaultSubjectPrefix
	}
	if c.GrantBucket == "" {
		c.GrantBucket = defaultGrantBucket
	}
	if c.MaxAge == 0 {
		c.MaxAge = defaultMaxAge
	}
	if c.FetchBatch <= 0 {
		c.FetchBatch = defaultFetchBatch
	}
	if c.FetchWait <= 0 {
		c.FetchWait = defaultFetchWait
	}
}

// Validate checks names against NATS rules.
func (c *Config) Validate() error {
	if err := client.ValidateToken(c.Stream); err != nil {
		return fmt.Errorf("invalid stream name: %w", err)
	}
	if err := client.ValidateSubject(c.SubjectPrefix + ".x"); err != nil {
		return fmt.Errorf("invalid subject prefix: %w", err)
	}
	if err := client.ValidateBucketName(c.GrantBucket); err != nil {
		return fmt.Errorf("invalid grant bucket: %w", err)
	}
	if c.MaxAge < 0 {
		return errors.New("max age cannot be negative")
	}
	return nil
}
