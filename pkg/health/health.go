package health

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

const (
	healthCheckMinInterval      = time.Second
	consecutiveFailureThreshold = 3

	healthStatusOK      = "ok"
	healthStatusFail    = "fail"
	healthStatusUnknown = "unknown"
)

// CheckFunc returns an error when the checked component is unhealthy.
type CheckFunc func(ctx context.Context) error

type registeredChecker struct {
	fn               CheckFunc
	interval         time.Duration
	state            string
	lastErr          string
	consecutiveFails int
}

// Manager runs named health checks periodically.
type Manager struct {
	checkers map[string]*registeredChecker
	mu       sync.RWMutex
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
	logger   *slog.Logger
}

// NewHealthManager creates a Manager.
func NewHealthManager() *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		checkers: make(map[string]*registeredChecker),
		ctx:      ctx,
		cancel:   cancel,
		logger:   slog.Default().With("component", "health.manager"),
	}
}

// RegisterChecker runs fn every interval, starting immediately. Intervals
// below one second are raised to one second.
func (h *Manager) RegisterChecker(name string, interval time.Duration, fn CheckFunc) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("checker name is required")
	}
	if fn == nil {
		return errors.New("checker func is required")
	}
	if interval <= 0 {
		return errors.New("checker interval must be greater than zero")
	}
	if interval < healthCheckMinInterval {
		h.logger.Warn("checker interval below minimum, using minimum",
			"name", name, "requested", interval, "minimum", healthCheckMinInterval)
		interval = healthCheckMinInterval
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ctx.Err() != nil {
		return errors.New("health manager stopped")
	}
	if _, exists := h.checkers[name]; exists {
		return fmt.Errorf("checker %q already exists", name)
	}
	rc := &registeredChecker{fn: fn, interval: interval, state: healthStatusUnknown}
	h.checkers[name] = rc
	h.wg.Go(func() { h.runChecker(name, rc) })

	h.logger.Info("registered health checker", "name", name, "interval", interval)
	return nil
}

// Status returns the last state of every checker and whether any failed.
func (h *Manager) Status() (map[string]string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	results := make(map[string]string, len(h.checkers))
	anyFail := false
	for name, c := range h.checkers {
		results[name] = c.state
		if c.state == healthStatusFail {
			anyFail = true
		}
	}
	return results, anyFail
}

// Errors returns the last error message of every failing checker.
func (h *Manager) Errors() map[string]string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[string]string)
	for name, c := range h.checkers {
		if c.state == healthStatusFail {
			out[name] = c.lastErr
		}
	}
	return out
}

// Stop stops all checkers and waits for them to exit.
func (h *Manager) Stop(ctx context.Context) error {
	h.mu.Lock()
	h.cancel()
	h.mu.Unlock()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("health manager shutdown timeout: %w", ctx.Err())
	}
}

func (h *Manager) runChecker(name string, c *registeredChecker) {
	h.execute(name, c)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-h.ctx.Done():
			return
		case <-ticker.C:
			h.execute(name, c)
		}
	}
}

func (h *Manager) execute(name string, c *registeredChecker) {
	ctx, cancel := context.WithTimeout(h.ctx, c.interval)
	defer cancel()
	err := c.fn(ctx)
	if h.ctx.Err() != nil {
		return
	}

	h.mu.Lock()
	prev := c.state
	if err != nil {
		c.state = healthStatusFail
		c.lastErr = err.Error()
		c.consecutiveFails++
	} else {
		c.state = healthStatusOK
		c.lastErr = ""
		c.consecutiveFails = 0
	}
	state, fails := c.state, c.consecutiveFails
	h.mu.Unlock()

	switch {
	case prev != state && state == healthStatusFail:
		h.logger.Warn("health check failing", "name", name, "from", prev, "error", err)
	case prev != state:
		h.logger.Info("health check passing", "name", name, "from", prev)
	case state == healthStatusFail && fails == consecutiveFailureThreshold:
		h.logger.Warn("health check persistently failing", "name", name, "consecutive_failures", fails, "error", err)
	}
}
