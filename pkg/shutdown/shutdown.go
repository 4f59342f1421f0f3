// Package shutdown runs ordered graceful shutdown on process signals.
package shutdown

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

const (
	// DefaultShutdownTimeout bounds the whole shutdown sequence.
	DefaultShutdownTimeout = 10 * time.Second
)

// Shutdowner represents any component that can be gracefully shutdown.
type Shutdowner interface {
	Shutdown(ctx context.Context) error
}

// Func is a function that performs shutdown operations.
type Func func(ctx context.Context) error

// Shutdown implements Shutdowner interface.
func (f Func) Shutdown(ctx context.Context) error {
	return f(ctx)
}

type step struct {
	name string
	s    Shutdowner
}

// Manager shuts registered components down one after another, in
// registration order, under a single deadline.
type Manager struct {
	mu      sync.Mutex
	steps   []step
	signals []os.Signal
	timeout time.Duration
	logger  *slog.Logger
	once    sync.Once
	err     error
}

// NewManager creates a new shutdown manager with default configuration.
func NewManager() *Manager {
	return &Manager{
		signals: []os.Signal{syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT},
		timeout: DefaultShutdownTimeout,
		logger:  slog.Default().With("component", "shutdown.manager"),
	}
}

// WithTimeout sets the shutdown timeout.
func (m *Manager) WithTimeout(timeout time.Duration) *Manager {
	if timeout > 0 {
		m.timeout = timeout
	}
	return m
}

// WithSignals sets the signals to listen for.
func (m *Manager) WithSignals(signals ...os.Signal) *Manager {
	if len(signals) > 0 {
		m.signals = signals
	}
	return m
}

// Register appends a named component to the shutdown sequence.
func (m *Manager) Register(name string, s Shutdowner) {
	if s == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps = append(m.steps, step{name: name, s: s})
}

// RegisterFunc appends a named shutdown function.
func (m *Manager) RegisterFunc(name string, fn func(ctx context.Context) error) {
	if fn != nil {
		m.Register(name, Func(fn))
	}
}

// Wait blocks until a signal arrives or ctx is cancelled, then shuts down.
func (m *Manager) Wait(ctx context.Context) error {
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, m.signals...)
	defer signal.Stop(signalCh)

	m.logger.Info("waiting for shutdown signal", "signals", m.signals, "timeout", m.timeout)

	select {
	case sig := <-signalCh:
		m.logger.Info("received shutdown signal", "signal", sig)
	case <-ctx.Done():
		m.logger.Info("context cancelled, initiating shutdown", "cause", context.Cause(ctx))
	}
	return m.Shutdown()
}

// Shutdown runs the sequence once. Later calls return the first result.
func (m *Manager) Shutdown() error {
	m.once.Do(func() {
		m.err = m.run()
	})
	return m.err
}

func (m *Manager) run() error {
	m.mu.Lock()
	steps := append([]step(nil), m.steps...)
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	m.logger.Info("initiating graceful shutdown", "components", len(steps))
	start := time.Now()

	var errs []error
	for _, st := range steps {
		if ctx.Err() != nil {
			m.logger.Error("shutdown timeout exceeded, skipping component", "name", st.name)
			errs = append(errs, fmt.Errorf("%s: %w", st.name, ctx.Err()))
			continue
		}
		stepStart := time.Now()
		if err := st.s.Shutdown(ctx); err != nil {
			m.logger.Error("component shutdown failed", "name", st.name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", st.name, err))
			continue
		}
		m.logger.Debug("component shutdown completed", "name", st.name, "duration", time.Since(stepStart))
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}
	m.logger.Info("shutdown completed", "duration", time.Since(start))
	return nil
}
