// Package embed runs an in-process NATS server with JetStream enabled.
package embed

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nkeys"
)

const (
	// DefaultStartTimeout is the timeout for starting the embedded NATS server.
	DefaultStartTimeout = 10 * time.Second
	// DefaultShutdownTimeout is the timeout for shutting down the embedded NATS server.
	DefaultShutdownTimeout = 10 * time.Second
	// DefaultPort is the default NATS server port.
	DefaultPort = 4222
	// RandomPort lets the operating system pick a free port.
	RandomPort = -1
	// DefaultMaxMemory is the default JetStream memory limit (64MB).
	DefaultMaxMemory = 64 * 1024 * 1024
	// DefaultMaxStorage is the default JetStream storage limit (1GB).
	DefaultMaxStorage = 1024 * 1024 * 1024
	// DefaultWriteDeadline is the default write deadline for connections.
	DefaultWriteDeadline = 2 * time.Second
	// DefaultStorePath is where JetStream keeps its files.
	DefaultStorePath = "./data/nats"
	// MaxPortNumber is the maximum valid port number.
	MaxPortNumber = 65535
)

// ServerConfig holds embedded NATS server configuration.
type ServerConfig struct {
	Host          string        `yaml:"host"           json:"host"`
	Port          int           `yaml:"port"           json:"port"`
	StorePath     string        `yaml:"store_path"     json:"store_path"`
	MaxMemory     int64         `yaml:"max_memory"     json:"max_memory"`
	MaxStorage    int64         `yaml:"max_storage"    json:"max_storage"`
	LogLevel      string        `yaml:"log_level"      json:"log_level"`
	WriteDeadline time.Duration `yaml:"write_deadline" json:"write_deadline"`
	// NKeyUsers lists public user nkeys allowed to connect. Empty disables auth.
	NKeyUsers []string `yaml:"nkey_users" json:"nkey_users"`
}

// DefaultServerConfig returns a default NATS server configuration.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Host:          "127.0.0.1",
		Port:          DefaultPort,
		StorePath:     DefaultStorePath,
		MaxMemory:     DefaultMaxMemory,
		MaxStorage:    DefaultMaxStorage,
		LogLevel:      "INFO",
		WriteDeadline: DefaultWriteDeadline,
	}
}

// Validate fills defaults and validates the server configuration.
func (sc *ServerConfig) Validate() error {
	switch {
	case sc.Port == RandomPort:
	case sc.Port == 0:
		sc.Port = DefaultPort
	case sc.Port < 0 || sc.Port > MaxPortNumber:
		return fmt.Errorf("invalid port %d", sc.Port)
	}
	if sc.Host == "" {
		sc.Host = "127.0.0.1"
	}
	if sc.MaxMemory <= 0 {
		sc.MaxMemory = DefaultMaxMemory
	}
	if sc.MaxStorage <= 0 {
		sc.MaxStorage = DefaultMaxStorage
	}
	if sc.StorePath == "" {
		sc.StorePath = DefaultStorePath
	}
	if sc.WriteDeadline <= 0 {
		sc.WriteDeadline = DefaultWriteDeadline
	}
	sc.LogLevel = strings.ToUpper(sc.LogLevel)
	switch sc.LogLevel {
	case "", "OFF", "INFO", "DEBUG", "TRACE":
	default:
		return fmt.Errorf("invalid log level %q", sc.LogLevel)
	}
	for _, pub := range sc.NKeyUsers {
		if !nkeys.IsValidPublicUserKey(pub) {
			return fmt.Errorf("invalid user nkey %q", pub)
		}
	}
	return nil
}

func (sc *ServerConfig) options() *server.Options {
	opts := &server.Options{
		Host:               sc.Host,
		Port:               sc.Port,
		WriteDeadline:      sc.WriteDeadline,
		JetStream:          true,
		JetStreamMaxMemory: sc.MaxMemory,
		JetStreamMaxStore:  sc.MaxStorage,
		StoreDir:           filepath.Clean(sc.StorePath),
		NoLog:              true,
		NoSigs:             true,
	}
	switch sc.LogLevel {
	case "INFO":
		opts.NoLog = false
	case "DEBUG":
		opts.NoLog = false
		opts.Debug = true
	case "TRACE":
		opts.NoLog = false
		opts.Trace = true
	}
	for _, pub := range sc.NKeyUsers {
		opts.Nkeys = append(opts.Nkeys, &server.NkeyUser{Nkey: pub})
	}
	return opts
}

// EmbeddedServer wraps a NATS server for embedded use.
type EmbeddedServer struct {
	server  *server.Server
	config  *ServerConfig
	logger  *slog.Logger
	mu      sync.RWMutex
	stopped bool
}

// NewEmbeddedServer creates a server. It does not listen until Start.
func NewEmbeddedServer(config *ServerConfig) (*EmbeddedServer, error) {
	if config == nil {
		config = DefaultServerConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid server config: %w", err)
	}

	logger := slog.Default().With("component", "nats-embedded")
	s, err := server.NewServer(config.options())
	if err != nil {
		logger.Error("failed to create NATS server", "error", err)
		return nil, fmt.Errorf("failed to create NATS server: %w", err)
	}

	return &EmbeddedServer{
		server: s,
		config: config,
		logger: logger,
	}, nil
}

// Start starts the server and waits until it accepts connections.
func (s *EmbeddedServer) Start() error {
	s.logger.Info("starting NATS server", "store", s.config.StorePath, "auth", len(s.config.NKeyUsers) > 0)
	s.server.Start()

	if !s.server.ReadyForConnections(DefaultStartTimeout) {
		s.logger.Error("NATS server failed to start within timeout")
		return errors.New("NATS server failed to start within timeout")
	}

	s.logger.Info("NATS server started", "url", s.server.ClientURL())
	return nil
}

// Stop shuts the server down. It is safe to call more than once.
func (s *EmbeddedServer) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return nil
	}
	s.stopped = true
	if !s.server.Running() {
		return nil
	}

	s.logger.Info("stopping NATS server")
	s.server.Shutdown()
	done := make(chan struct{})
	go func() {
		s.server.WaitForShutdown()
		close(done)
	}()
	select {
	case <-done:
		s.logger.Info("NATS server stopped")
		return nil
	case <-time.After(DefaultShutdownTimeout):
		return errors.New("NATS server shutdown timed out")
	}
}

// IsRunning returns true if the server is running.
func (s *EmbeddedServer) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.stopped && s.server.Running()
}

// ClientURL returns the URL for clients to connect. With a random port it is
// only meaningful after Start.
func (s *EmbeddedServer) ClientURL() string {
	return s.server.ClientURL()
}

// HealthCheck reports whether the server is running with JetStream.
func (s *EmbeddedServer) HealthCheck() error {
	if !s.IsRunning() {
		return errors.New("server is not running")
	}
	if !s.server.JetStreamEnabled() {
		return errors.New("JetStream not enabled")
	}
	return nil
}

// ServerStats is a snapshot of server counters.
type ServerStats struct {
	Connections      int    `json:"connections"`
	InMsgs           int64  `json:"in_msgs"`
	OutMsgs          int64  `json:"out_msgs"`
	JetStreamMemory  uint64 `json:"jetstream_memory"`
	JetStreamStorage uint64 `json:"jetstream_storage"`
}

// Stats returns current server statistics.
func (s *EmbeddedServer) Stats() (ServerStats, error) {
	varz, err := s.server.Varz(nil)
	if err != nil {
		return ServerStats{}, fmt.Errorf("varz: %w", err)
	}
	stats := ServerStats{
		Connections: varz.Connections,
		InMsgs:      varz.InMsgs,
		OutMsgs:     varz.OutMsgs,
	}
	if jsz, err := s.server.Jsz(nil); err == nil {
		stats.JetStreamMemory = jsz.Memory
		stats.JetStreamStorage = jsz.Store
	}
	return stats, nil
}
