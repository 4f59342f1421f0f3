// Package server wires the sensor observer into a long-running service.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/telepair/pulsewatch/internal/config"
	"github.com/telepair/pulsewatch/internal/device"
	"github.com/telepair/pulsewatch/internal/metrics"
	"github.com/telepair/pulsewatch/internal/observer"
	"github.com/telepair/pulsewatch/internal/sensor/memory"
	"github.com/telepair/pulsewatch/internal/sensor/natsstore"
	"github.com/telepair/pulsewatch/internal/simulator"
	"github.com/telepair/pulsewatch/pkg/health"
	"github.com/telepair/pulsewatch/pkg/logger"
	"github.com/telepair/pulsewatch/pkg/natsx/client"
	"github.com/telepair/pulsewatch/pkg/natsx/embed"
	"github.com/telepair/pulsewatch/pkg/shutdown"
)

const (
	setupTimeout        = 30 * time.Second
	healthCheckInterval = 10 * time.Second
)

// Backend is a sensor service that can also take simulated samples.
type Backend interface {
	observer.Service
	simulator.Sink
}

// Server hosts one observer and its supporting infrastructure.
type Server struct {
	config   *config.Config
	device   observer.Device
	embedded *embed.EmbeddedServer
	nats     *client.Client
	backend  Backend
	store    *natsstore.Store
	observer *observer.Observer
	sim      *simulator.Simulator
	health   *health.Server
	control  *controlHandler
	sink     *readingSink

	shutdownMgr *shutdown.Manager
	healthErr   chan error
	wg          sync.WaitGroup
	logger      *slog.Logger
}

// New builds every component described by cfg. Nothing runs until Start.
// Components created before a failure are released before New returns.
func New(ctx context.Context, cfg *config.Config) (_ *Server, err error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := logger.SetDefault(cfg.Logger); err != nil {
		return nil, fmt.Errorf("failed to setup logger: %w", err)
	}

	s := &Server{
		config:      cfg,
		healthErr:   make(chan error, 1),
		logger:      logger.ComponentLogger("pulse.server"),
		shutdownMgr: shutdown.NewManager().WithTimeout(time.Duration(cfg.ShutdownTimeoutSec) * time.Second),
	}
	defer func() {
		if err != nil {
			s.release()
		}
	}()

	setupCtx, cancel := context.WithTimeout(ctx, setupTimeout)
	defer cancel()

	if s.device, err = device.Local(setupCtx, cfg.Observer.DeviceID); err != nil {
		return nil, fmt.Errorf("failed to resolve local device: %w", err)
	}
	obsCfg := cfg.Observer
	obsCfg.DeviceID = s.device.ID
	if obsCfg.DeviceName == "" {
		obsCfg.DeviceName = s.device.Name
	}

	var (
		obsMetrics  observer.Metrics
		connMetrics client.ConnectionMetrics
	)
	if cfg.Health.Enabled {
		if s.health, err = health.NewServer(cfg.Health); err != nil {
			return nil, fmt.Errorf("failed to create health server: %w", err)
		}
		om, err := metrics.NewObserver(s.health.Registry())
		if err != nil {
			return nil, fmt.Errorf("failed to register observer metrics: %w", err)
		}
		cm, err := metrics.NewConnection(s.health.Registry())
		if err != nil {
			return nil, fmt.Errorf("failed to register connection metrics: %w", err)
		}
		obsMetrics, connMetrics = om, cm
	}

	if cfg.EmbedNATS.Enabled {
		if s.embedded, err = embed.NewEmbeddedServer(cfg.EmbedNATS.Server); err != nil {
			return nil, fmt.Errorf("failed to create embedded NATS server: %w", err)
		}
		if err = s.embedded.Start(); err != nil {
			return nil, fmt.Errorf("failed to start embedded NATS server: %w", err)
		}
		s.logger.Info("embedded NATS server started", "url", s.embedded.ClientURL())
	}

	if cfg.NeedsNATS() {
		natsCfg := cfg.NATS
		if s.embedded != nil {
			natsCfg.URLs = []string{s.embedded.ClientURL()}
		}
		if s.nats, err = client.NewClient(&natsCfg, client.WithMetrics(connMetrics)); err != nil {
			return nil, fmt.Errorf("failed to create NATS client: %w", err)
		}
	}

	switch cfg.Sensor.Backend {
	case config.BackendNATS:
		if s.store, err = natsstore.New(setupCtx, s.nats, cfg.Sensor.NATS); err != nil {
			return nil, fmt.Errorf("failed to open sample store: %w", err)
		}
		s.backend = s.store
	default:
		s.backend = memory.New(memory.WithHistory(cfg.Sensor.History))
	}

	obsOpts := []observer.Option{
		observer.WithMetrics(obsMetrics),
		observer.WithLogger(s.logger),
	}
	if s.health != nil {
		obsOpts = append(obsOpts, observer.WithAvailabilityHook(s.health.SetReady))
	}
	if s.observer, err = observer.New(s.backend, obsCfg, obsOpts...); err != nil {
		return nil, fmt.Errorf("failed to create observer: %w", err)
	}

	s.sink = newReadingSink(s.observer.Subscribe(0), s.device, cfg.Observer.SampleType)

	if cfg.Simulator.Enabled {
		if s.sim, err = simulator.New(cfg.Simulator, s.device, s.backend); err != nil {
			return nil, fmt.Errorf("failed to create simulator: %w", err)
		}
	}

	if s.nats != nil {
		s.control = newControlHandler(s.observer, s.device, cfg.Control.ControlPrefix)
	}

	s.registerShutdownHandlers()
	return s, nil
}

// Start runs the health server, the reading sink, the simulator and the
// control subscription, then starts the observer. A sensor service that is
// unavailable at boot is logged and left to a later start command.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("starting pulsewatch",
		"device", s.device.ID,
		"backend", s.config.Sensor.Backend,
		"sample_type", s.config.Observer.SampleType,
		"simulator", s.sim != nil,
		"embedded_nats", s.embedded != nil)

	if s.health != nil {
		if err := s.registerHealthChecks(); err != nil {
			return err
		}
		s.wg.Go(func() {
			if err := s.health.ListenAndServe(); err != nil {
				s.logger.Error("health server stopped unexpectedly", "error", err)
				s.healthErr <- err
			}
		})
	}

	s.wg.Go(s.sink.run)

	if s.sim != nil {
		if err := s.sim.Start(); err != nil {
			return fmt.Errorf("failed to start simulator: %w", err)
		}
	}

	if s.control != nil {
		if err := s.control.subscribe(s.nats); err != nil {
			return fmt.Errorf("failed to subscribe to control subject: %w", err)
		}
	}

	switch err := s.observer.Start(ctx); {
	case err == nil:
	case errors.Is(err, observer.ErrSensorUnavailable):
		s.logger.Warn("sensor service unavailable at startup, waiting for a start command")
	default:
		return fmt.Errorf("failed to start observer: %w", err)
	}

	s.logger.Info("pulsewatch started",
		"health_addr", s.config.Health.Addr,
		"control_subject", s.controlSubject(),
		"observer_available", s.observer.IsAvailable())
	return nil
}

// Wait blocks until a shutdown signal, ctx cancellation or a health server
// failure, then shuts down.
func (s *Server) Wait(ctx context.Context) error {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	go func() {
		select {
		case err := <-s.healthErr:
			cancel(err)
		case <-ctx.Done():
		}
	}()
	return s.shutdownMgr.Wait(ctx)
}

// Stop shuts every component down in dependency order.
func (s *Server) Stop() error {
	return s.shutdownMgr.Shutdown()
}

// Observer returns the hosted observer.
func (s *Server) Observer() *observer.Observer {
	return s.observer
}

// Device returns the resolved local device.
func (s *Server) Device() observer.Device {
	return s.device
}

// Health returns the health server, or nil when disabled.
func (s *Server) Health() *health.Server {
	return s.health
}

// NATS returns the NATS client, or nil when no component needs one.
func (s *Server) NATS() *client.Client {
	return s.nats
}

// Backend returns the sensor service the observer reads from.
func (s *Server) Backend() Backend {
	return s.backend
}

func (s *Server) controlSubject() string {
	if s.control == nil {
		return ""
	}
	return s.control.subject
}

// registerShutdownHandlers orders shutdown from the edges inwards: stop
// advertising readiness, stop producing samples, stop observing, then tear
// down transport.
func (s *Server) registerShutdownHandlers() {
	if s.health != nil {
		s.shutdownMgr.RegisterFunc("readiness", func(context.Context) error {
			s.health.SetReady(false)
			return nil
		})
	}
	if s.sim != nil {
		s.shutdownMgr.RegisterFunc("simulator", func(context.Context) error {
			return s.sim.Stop()
		})
	}
	if s.control != nil {
		s.shutdownMgr.RegisterFunc("control", func(context.Context) error {
			return s.control.unsubscribe()
		})
	}
	s.shutdownMgr.RegisterFunc("observer", s.observer.Close)
	s.shutdownMgr.RegisterFunc("reading-sink", func(ctx context.Context) error {
		return s.sink.wait(ctx)
	})
	if s.health != nil {
		s.shutdownMgr.RegisterFunc("health", s.health.Shutdown)
	}
	if s.nats != nil {
		s.shutdownMgr.RegisterFunc("nats-client", func(context.Context) error {
			return s.nats.Close()
		})
	}
	if s.embedded != nil {
		s.shutdownMgr.RegisterFunc("embedded-nats", func(context.Context) error {
			return s.embedded.Stop()
		})
	}
	s.shutdownMgr.RegisterFunc("background", func(ctx context.Context) error {
		done := make(chan struct{})
		go func() {
			s.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
}

func (s *Server) registerHealthChecks() error {
	checks := map[string]health.CheckFunc{
		"sensor-service": func(ctx context.Context) error {
			if !s.backend.Available(ctx) {
				return observer.ErrSensorUnavailable
			}
			return nil
		},
		"observer": func(context.Context) error {
			if !s.observer.IsAvailable() {
				return errors.New("observer is not streaming")
			}
			return nil
		},
	}
	if s.nats != nil {
		checks["nats-connection"] = s.nats.HealthCheck
	}
	if s.embedded != nil {
		checks["embedded-nats"] = func(context.Context) error { return s.embedded.HealthCheck() }
	}
	if s.sim != nil {
		checks["simulator"] = func(context.Context) error { return s.sim.Health() }
	}
	for name, fn := range checks {
		if err := s.health.RegisterChecker(name, healthCheckInterval, fn); err != nil {
			return fmt.Errorf("failed to register %s health check: %w", name, err)
		}
	}
	return nil
}

// release frees what New managed to create before failing.
func (s *Server) release() {
	if s.observer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		_ = s.observer.Close(ctx)
		cancel()
	}
	if s.nats != nil {
		_ = s.nats.Close()
	}
	if s.embedded != nil {
		_ = s.embedded.Stop()
	}
}
