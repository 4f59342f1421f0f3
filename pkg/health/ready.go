package health

import (
	"log/slog"
	"sync/atomic"
	"time"
)

// ReadinessManager tracks whether the service accepts work.
type ReadinessManager struct {
	ready     atomic.Bool
	startTime time.Time
}

// NewReadinessManager creates a manager that starts not ready.
func NewReadinessManager() *ReadinessManager {
	return &ReadinessManager{startTime: time.Now()}
}

// SetReady sets the ready state.
func (r *ReadinessManager) SetReady(ready bool) {
	if old := r.ready.Swap(ready); old != ready {
		slog.Info("readiness state changed", "from", old, "to", ready)
	}
}

// IsReady returns the current ready state.
func (r *ReadinessManager) IsReady() bool {
	return r.ready.Load()
}

// Uptime returns the time since the manager was created.
func (r *ReadinessManager) Uptime() time.Duration {
	return time.Since(r.startTime)
}
