package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := NewServer(Config{Addr: "127.0.0.1:0", MetricsNamespace: "test"})
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	})
	return s
}

func get(t *testing.T, s *Server, path string) (*httptest.ResponseRecorder, statusResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	var body statusResponse
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
	}
	return rec, body
}

func TestNewServerInvalidConfig(t *testing.T) {
	if _, err := NewServer(Config{Addr: "bad:addr:1"}); err == nil {
		t.Error("NewServer() expected error")
	}
}

func TestLivez(t *testing.T) {
	s := newTestServer(t)
	rec, body := get(t, s, DefaultLivezPath)
	if rec.Code != http.StatusOK {
		t.Fatalf("livez code = %d", rec.Code)
	}
	if body.Status != healthStatusOK {
		t.Errorf("livez status = %q", body.Status)
	}
}

func TestReadyz(t *testing.T) {
	s := newTestServer(t)

	rec, body := get(t, s, DefaultReadyzPath)
	if rec.Code != http.StatusServiceUnavailable || body.Status != "not ready" {
		t.Fatalf("readyz before ready = %d %q", rec.Code, body.Status)
	}

	s.SetReady(true)
	if rec, _ := get(t, s, DefaultReadyzPath); rec.Code != http.StatusOK {
		t.Fatalf("readyz after ready = %d", rec.Code)
	}

	if err := s.RegisterChecker("sensor", time.Second, func(context.Context) error {
		return errors.New("offline")
	}); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for {
		rec, body = get(t, s, DefaultReadyzPath)
		if rec.Code == http.StatusServiceUnavailable {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("readyz never reported failing checker")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if body.Checks["sensor"] != healthStatusFail || body.Errors["sensor"] != "offline" {
		t.Errorf("readyz body = %+v", body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	counter, err := s.Registry().NewCounterVec("events_total", "Events.", "kind")
	if err != nil {
		t.Fatalf("NewCounterVec() error = %v", err)
	}
	counter.WithLabelValues("reading").Add(3)

	get(t, s, DefaultLivezPath)
	rec, _ := get(t, s, DefaultMetricsPath)
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics code = %d", rec.Code)
	}
	out := rec.Body.String()
	for _, want := range []string{
		`test_events_total{kind="reading"} 3`,
		`test_http_requests_total{code="200",path="/livez"} 1`,
		"go_goroutines",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestRegistryDuplicates(t *testing.T) {
	r := NewPrometheusRegistry("dup")
	first, err := r.NewGauge("level", "Level.")
	if err != nil {
		t.Fatal(err)
	}
	second, err := r.NewGauge("level", "Level.")
	if err != nil {
		t.Fatalf("second NewGauge() error = %v", err)
	}
	if first != second {
		t.Error("NewGauge() should return the registered gauge")
	}
	if _, err := r.NewCounterVec("level", "Level.", "kind"); err == nil {
		t.Error("NewCounterVec() with a gauge name should fail")
	}
	if _, err := r.NewHistogram("latency", "Latency.", nil); err != nil {
		t.Errorf("NewHistogram() error = %v", err)
	}
}

func TestServeAndShutdown(t *testing.T) {
	s := newTestServer(t)
	errCh := make(chan error, 1)
	go func() { errCh <- s.ListenAndServe() }()
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("ListenAndServe() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("ListenAndServe() did not return")
	}
}
