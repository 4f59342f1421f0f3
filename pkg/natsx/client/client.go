package client

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const (
	// DefaultConnectTimeout is the default timeout for connecting to NATS.
	DefaultConnectTimeout = 2 * time.Second
	// DefaultReconnectWait is the default wait time between reconnection attempts.
	DefaultReconnectWait = 2 * time.Second
	// DefaultPort is the default NATS server port.
	DefaultPort = 4222
	// DefaultName is the connection name reported to the server.
	DefaultName = "pulsewatch"
	// UnlimitedReconnects indicates unlimited reconnection attempts.
	UnlimitedReconnects = -1
	// DrainTimeout is the timeout for draining connections during close.
	DrainTimeout = 5 * time.Second
)

// Config holds NATS client configuration.
type Config struct {
	Name           string        `yaml:"name"            json:"name"`
	URLs           []string      `yaml:"urls"            json:"urls"`
	Token          string        `yaml:"token"           json:"-"`
	NKey           string        `yaml:"nkey"            json:"-"`
	JWT            string        `yaml:"jwt"             json:"-"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" json:"connect_timeout"`
	MaxReconnects  int           `yaml:"max_reconnects"  json:"max_reconnects"`
	ReconnectWait  time.Duration `yaml:"reconnect_wait"  json:"reconnect_wait"`
	EnableTLS      bool          `yaml:"enable_tls"      json:"enable_tls"`
	// TLSSkipVerify skips certificate verification. Only for development.
	TLSSkipVerify bool `yaml:"tls_skip_verify" json:"tls_skip_verify"`
}

func defaultURL() string {
	return "nats://" + net.JoinHostPort("localhost", strconv.Itoa(DefaultPort))
}

// DefaultConfig returns a default NATS configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:           DefaultName,
		URLs:           []string{defaultURL()},
		ConnectTimeout: DefaultConnectTimeout,
		MaxReconnects:  UnlimitedReconnects,
		ReconnectWait:  DefaultReconnectWait,
	}
}

// Validate fills defaults and validates the client configuration.
func (c *Config) Validate() error {
	if c.Name == "" {
		c.Name = DefaultName
	}
	if len(c.URLs) == 0 {
		c.URLs = []string{defaultURL()}
	}
	for i, u := range c.URLs {
		if err := ValidateNATSURL(u); err != nil {
			return fmt.Errorf("invalid URL at index %d: %w", i, err)
		}
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.ReconnectWait <= 0 {
		c.ReconnectWait = DefaultReconnectWait
	}
	return nil
}

// Option customizes a Client.
type Option func(*Client)

// WithMetrics records connection lifecycle events on m.
func WithMetrics(m ConnectionMetrics) Option {
	return func(c *Client) {
		if m != nil {
			c.metrics = m
		}
	}
}

// Client wraps a NATS connection with JetStream support.
type Client struct {
	name    string
	config  *Config
	conn    *nats.Conn
	js      jetstream.JetStream
	closed  atomic.Bool
	metrics ConnectionMetrics
	logger  *slog.Logger
}

// NewClient connects to NATS.
func NewClient(config *Config, opts ...Option) (*Client, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	client := &Client{
		name:    config.Name,
		config:  config,
		metrics: noopMetrics{},
		logger:  slog.Default().With("component", "natsx.client"),
	}
	for _, opt := range opts {
		opt(client)
	}

	natsOpts, err := NewOptionsBuilder(client).BuildNATSOptions(config)
	if err != nil {
		return nil, err
	}
	if err := client.connect(config, natsOpts); err != nil {
		return nil, err
	}
	client.metrics.RecordConnection()
	client.logger.Info("connected to NATS", "url", client.conn.ConnectedUrl(), "name", client.name)
	return client, nil
}

func (c *Client) connect(config *Config, opts []nats.Option) error {
	nc, err := nats.Connect(strings.Join(config.URLs, ","), opts...)
	if err != nil {
		c.logger.Error("failed to connect to NATS", "error", err)
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		c.logger.Error("failed to create JetStream context", "error", err)
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	c.conn = nc
	c.js = js
	return nil
}

// Publish sends data on a core NATS subject.
func (c *Client) Publish(subject string, data []byte) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	if err := ValidateSubject(subject); err != nil {
		return err
	}
	if err := c.conn.Publish(subject, data); err != nil {
		c.metrics.RecordError()
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

// Subscribe registers handler on a core NATS subject. Wildcards are allowed.
func (c *Client) Subscribe(subject string, handler nats.MsgHandler) (*nats.Subscription, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}
	if err := ValidateSubject(subject); err != nil {
		return nil, err
	}
	sub, err := c.conn.Subscribe(subject, handler)
	if err != nil {
		c.metrics.RecordError()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}
	c.logger.Debug("subscribed", "subject", subject)
	return sub, nil
}

// Close drains and closes the connection.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	if c.conn == nil {
		return nil
	}

	done := make(chan error, 1)
	go func() {
		done <- c.conn.Drain()
	}()
	select {
	case err := <-done:
		if err != nil {
			c.logger.Warn("failed to drain connection", "error", err)
		}
	case <-time.After(DrainTimeout):
		c.logger.Warn("connection drain timeout, forcing close")
	}
	c.conn.Close()

	c.logger.Debug("client closed")
	return nil
}

// Conn returns the underlying NATS connection.
func (c *Client) Conn() *nats.Conn {
	return c.conn
}

// JetStream returns the JetStream context.
func (c *Client) JetStream() jetstream.JetStream {
	return c.js
}

// IsConnected returns true if the client is connected to NATS.
func (c *Client) IsConnected() bool {
	if c.closed.Load() || c.conn == nil {
		return false
	}
	return c.conn.IsConnected()
}

// HealthCheck verifies the connection with a round trip to the server.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	if err := c.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("natsx: flush: %w", err)
	}
	return nil
}
