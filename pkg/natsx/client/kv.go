package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// BucketConfig is the configuration for a NATS key-value store bucket.
type BucketConfig struct {
	Name         string        `yaml:"name"           json:"name"`
	History      uint8         `yaml:"history"        json:"history"`
	Replicas     int           `yaml:"replicas"       json:"replicas"`
	OnMemory     bool          `yaml:"on_memory"      json:"on_memory"`
	Compression  bool          `yaml:"compression"    json:"compression"`
	MaxBytes     int64         `yaml:"max_bytes"      json:"max_bytes"`
	MaxValueSize int32         `yaml:"max_value_size" json:"max_value_size"`
	TTL          time.Duration `yaml:"ttl"            json:"ttl"`
}

// Validate validates the bucket config.
func (c *BucketConfig) Validate() error {
	if err := ValidateBucketName(c.Name); err != nil {
		return fmt.Errorf("invalid bucket name: %w", err)
	}
	return nil
}

func (c *BucketConfig) keyValueConfig() jetstream.KeyValueConfig {
	cfg := jetstream.KeyValueConfig{
		Bucket:       c.Name,
		TTL:          c.TTL,
		History:      c.History,
		Replicas:     c.Replicas,
		Compression:  c.Compression,
		MaxBytes:     c.MaxBytes,
		MaxValueSize: c.MaxValueSize,
		Storage:      jetstream.FileStorage,
	}
	if c.OnMemory {
		cfg.Storage = jetstream.MemoryStorage
	}
	return cfg
}

// KV is a key-value bucket.
type KV struct {
	kv     jetstream.KeyValue
	name   string
	logger *slog.Logger
}

// KeyValue opens the bucket described by config, creating it when missing.
func (c *Client) KeyValue(ctx context.Context, config BucketConfig) (*KV, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid bucket config: %w", err)
	}

	kv, err := c.js.KeyValue(ctx, config.Name)
	if errors.Is(err, jetstream.ErrBucketNotFound) {
		kv, err = c.js.CreateKeyValue(ctx, config.keyValueConfig())
	}
	if err != nil {
		c.logger.Error("failed to create or get KV bucket", "bucket", config.Name, "error", err)
		return nil, fmt.Errorf("failed to create or get KV bucket: %w", err)
	}

	c.logger.Info("KV bucket ready", "bucket", config.Name)
	return &KV{
		kv:     kv,
		name:   config.Name,
		logger: c.logger.With("bucket", config.Name),
	}, nil
}

// Put stores a value with the given key.
func (m *KV) Put(ctx context.Context, key string, value []byte) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if err := ValidateValue(value); err != nil {
		return err
	}
	if _, err := m.kv.Put(ctx, key, value); err != nil {
		m.logger.ErrorContext(ctx, "failed to put key-value pair", "key", key, "error", err)
		return fmt.Errorf("put %s: %w", key, err)
	}
	m.logger.DebugContext(ctx, "put key-value pair", "key", key)
	return nil
}

// Get retrieves a value by key. A missing key returns ErrKeyNotFound.
func (m *KV) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	entry, err := m.kv.Get(ctx, key)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return entry.Value(), nil
}

// Delete removes a key.
func (m *KV) Delete(ctx context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if err := m.kv.Delete(ctx, key); err != nil {
		m.logger.ErrorContext(ctx, "failed to delete key-value pair", "key", key, "error", err)
		return fmt.Errorf("delete %s: %w", key, err)
	}
	m.logger.DebugContext(ctx, "deleted key-value pair", "key", key)
	return nil
}

// Keys lists the live keys in the bucket.
func (m *KV) Keys(ctx context.Context) ([]string, error) {
	lister, err := m.kv.ListKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	defer lister.Stop()

	var keys []string
	for key := range lister.Keys() {
		keys = append(keys, key)
	}
	return keys, nil
}
