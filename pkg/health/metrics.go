package health

import (
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusRegistry owns a registry and the collectors created through it.
type PrometheusRegistry struct {
	namespace string
	registry  *prometheus.Registry

	mu         sync.Mutex
	collectors map[string]prometheus.Collector
}

// NewPrometheusRegistry creates a registry with Go runtime and process
// collectors already registered.
func NewPrometheusRegistry(namespace string) *PrometheusRegistry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &PrometheusRegistry{
		namespace:  namespace,
		registry:   reg,
		collectors: make(map[string]prometheus.Collector),
	}
}

// Namespace returns the metric namespace.
func (p *PrometheusRegistry) Namespace() string {
	return p.namespace
}

// Registry returns the underlying registry.
func (p *PrometheusRegistry) Registry() *prometheus.Registry {
	return p.registry
}

// register adds c under name, returning the already registered collector
// when name is taken.
func register[T prometheus.Collector](p *PrometheusRegistry, name string, c T) (T, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if existing, ok := p.collectors[name]; ok {
		typed, ok := existing.(T)
		if !ok {
			var zero T
			return zero, fmt.Errorf("metric %q already registered with a different type", name)
		}
		return typed, nil
	}
	if err := p.registry.Register(c); err != nil {
		var zero T
		return zero, fmt.Errorf("register metric %q: %w", name, err)
	}
	p.collectors[name] = c
	return c, nil
}

// NewCounter creates and registers a counter.
func (p *PrometheusRegistry) NewCounter(name, help string) (prometheus.Counter, error) {
	return register(p, name, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: p.namespace, Name: name, Help: help,
	}))
}

// NewCounterVec creates and registers a labeled counter.
func (p *PrometheusRegistry) NewCounterVec(name, help string, labels ...string) (*prometheus.CounterVec, error) {
	return register(p, name, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: p.namespace, Name: name, Help: help,
	}, labels))
}

// NewGauge creates and registers a gauge.
func (p *PrometheusRegistry) NewGauge(name, help string) (prometheus.Gauge, error) {
	return register(p, name, prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: p.namespace, Name: name, Help: help,
	}))
}

// NewHistogram creates and registers a histogram. Nil buckets use the
// Prometheus defaults.
func (p *PrometheusRegistry) NewHistogram(name, help string, buckets []float64) (prometheus.Histogram, error) {
	if buckets == nil {
		buckets = prometheus.DefBuckets
	}
	return register(p, name, prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: p.namespace, Name: name, Help: help, Buckets: buckets,
	}))
}

// HTTPHandler serves the registry in the Prometheus exposition format.
func (p *PrometheusRegistry) HTTPHandler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	})
}

// HTTPMiddleware records request counts and latencies.
type HTTPMiddleware struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewHTTPMiddleware registers the HTTP request metrics.
func NewHTTPMiddleware(p *PrometheusRegistry) (*HTTPMiddleware, error) {
	requests, err := register(p, "http_requests_total", prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: p.namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"path", "code"}))
	if err != nil {
		return nil, err
	}
	duration, err := register(p, "http_request_duration_seconds", prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: p.namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"path"}))
	if err != nil {
		return nil, err
	}
	return &HTTPMiddleware{requests: requests, duration: duration}, nil
}

// Wrap instruments next.
func (m *HTTPMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		m.requests.WithLabelValues(r.URL.Path, strconv.Itoa(rec.status)).Inc()
		m.duration.WithLabelValues(r.URL.Path).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
