// Package metrics exports observer and NATS connection events to Prometheus.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/telepair/pulsewatch/internal/observer"
	"github.com/telepair/pulsewatch/pkg/health"
	"github.com/telepair/pulsewatch/pkg/natsx/client"
)

var (
	_ observer.Metrics         = (*Observer)(nil)
	_ client.ConnectionMetrics = (*Connection)(nil)
)

// Observer implements observer.Metrics.
type Observer struct {
	readings  prometheus.Counter
	dropped   *prometheus.CounterVec
	faults    *prometheus.CounterVec
	available prometheus.Gauge
	lastValue prometheus.Gauge
}

// NewObserver registers the observer metrics on reg.
func NewObserver(reg *health.PrometheusRegistry) (*Observer, error) {
	var (
		m   Observer
		err error
	)
	if m.readings, err = reg.NewCounter("observer_readings_total", "Readings published to subscribers."); err != nil {
		return nil, err
	}
	if m.dropped, err = reg.NewCounterVec("observer_samples_dropped_total", "Samples dropped before conversion.", "reason"); err != nil {
		return nil, err
	}
	if m.faults, err = reg.NewCounterVec("observer_faults_total", "Faults raised to subscribers.", "stage"); err != nil {
		return nil, err
	}
	if m.available, err = reg.NewGauge("observer_available", "1 while monitoring is authorized and running."); err != nil {
		return nil, err
	}
	if m.lastValue, err = reg.NewGauge("observer_last_value", "Value of the most recent reading in its canonical unit."); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Observer) ReadingPublished(r observer.Reading) {
	m.readings.Inc()
	m.lastValue.Set(float64(r.Int()))
}

func (m *Observer) SampleDropped(reason observer.DropReason) {
	m.dropped.WithLabelValues(string(reason)).Inc()
}

func (m *Observer) FaultRaised(stage observer.Stage) {
	m.faults.WithLabelValues(string(stage)).Inc()
}

func (m *Observer) AvailabilityChanged(available bool) {
	if available {
		m.available.Set(1)
		return
	}
	m.available.Set(0)
}

// Connection implements client.ConnectionMetrics.
type Connection struct {
	events *prometheus.CounterVec
	errors prometheus.Counter
	up     prometheus.Gauge
}

// NewConnection registers the NATS connection metrics on reg.
func NewConnection(reg *health.PrometheusRegistry) (*Connection, error) {
	events, err := reg.NewCounterVec("nats_connection_events_total", "NATS connection lifecycle events.", "event")
	if err != nil {
		return nil, fmt.Errorf("nats metrics: %w", err)
	}
	errs, err := reg.NewCounter("nats_errors_total", "Asynchronous NATS errors.")
	if err != nil {
		return nil, fmt.Errorf("nats metrics: %w", err)
	}
	up, err := reg.NewGauge("nats_connected", "1 while the NATS connection is up.")
	if err != nil {
		return nil, fmt.Errorf("nats metrics: %w", err)
	}
	return &Connection{events: events, errors: errs, up: up}, nil
}

func (c *Connection) RecordConnection() {
	c.events.WithLabelValues("connect").Inc()
	c.up.Set(1)
}

func (c *Connection) RecordDisconnection() {
	c.events.WithLabelValues("disconnect").Inc()
	c.up.Set(0)
}

func (c *Connection) RecordReconnection() {
	c.events.WithLabelValues("reconnect").Inc()
	c.up.Set(1)
}

func (c *Connection) RecordConnectionClosed() {
	c.events.WithLabelValues("closed").Inc()
	c.up.Set(0)
}

func (c *Connection) RecordError() {
	c.errors.Inc()
}
