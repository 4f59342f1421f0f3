package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/telepair/pulsewatch/internal/observer"
	"github.com/telepair/pulsewatch/pkg/health"
)

func TestObserverMetrics(t *testing.T) {
	reg := health.NewPrometheusRegistry("test")
	m, err := NewObserver(reg)
	if err != nil {
		t.Fatalf("NewObserver() error = %v", err)
	}

	m.AvailabilityChanged(true)
	m.ReadingPublished(observer.Reading{Value: 71.8, Timestamp: time.Now()})
	m.ReadingPublished(observer.Reading{Value: 64, Timestamp: time.Now()})
	m.SampleDropped(observer.DropUnit)
	m.SampleDropped(observer.DropUnit)
	m.FaultRaised(observer.StageAuthorization)

	checks := []struct {
		name string
		got  float64
		want float64
	}{
		{"readings", testutil.ToFloat64(m.readings), 2},
		{"last value", testutil.ToFloat64(m.lastValue), 64},
		{"available", testutil.ToFloat64(m.available), 1},
		{"dropped unit", testutil.ToFloat64(m.dropped.WithLabelValues("unit")), 2},
		{"fault authorization", testutil.ToFloat64(m.faults.WithLabelValues("authorization")), 1},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}

	m.AvailabilityChanged(false)
	if got := testutil.ToFloat64(m.available); got != 0 {
		t.Errorf("available after false = %v", got)
	}

	// Registering again reuses the same collectors.
	again, err := NewObserver(reg)
	if err != nil {
		t.Fatalf("second NewObserver() error = %v", err)
	}
	if again.readings != m.readings {
		t.Error("second NewObserver() created a new counter")
	}
}

func TestConnectionMetrics(t *testing.T) {
	m, err := NewConnection(health.NewPrometheusRegistry("test"))
	if err != nil {
		t.Fatalf("NewConnection() error = %v", err)
	}

	m.RecordConnection()
	if got := testutil.ToFloat64(m.up); got != 1 {
		t.Errorf("connected = %v after connect", got)
	}
	m.RecordDisconnection()
	m.RecordReconnection()
	m.RecordError()
	m.RecordConnectionClosed()

	if got := testutil.ToFloat64(m.up); got != 0 {
		t.Errorf("connected = %v after close", got)
	}
	for event, want := range map[string]float64{"connect": 1, "disconnect": 1, "reconnect": 1, "closed": 1} {
		if got := testutil.ToFloat64(m.events.WithLabelValues(event)); got != want {
			t.Errorf("events{%s} = %v, want %v", event, got, want)
		}
	}
	if got := testutil.ToFloat64(m.errors); got != 1 {
		t.Errorf("errors = %v", got)
	}
}
