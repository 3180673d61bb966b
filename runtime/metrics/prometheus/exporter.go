package prometheus

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Paths served by Routes.
const (
	MetricsPath = "/metrics"
	HealthPath  = "/health"
)

const readHeaderTimeout = 10 * time.Second

// ErrExporterRunning is returned by ListenAndServe while a previous call is
// still serving.
var ErrExporterRunning = errors.New("metrics exporter already running")

// NewRegistry returns a registry holding every VoiceKit collector plus the
// Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(allMetrics...)
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Exporter exposes a registry over HTTP, either on its own listener or
// mounted into another server through Routes.
type Exporter struct {
	addr     string
	registry *prometheus.Registry

	mu     sync.Mutex
	server *http.Server
}

// ExporterOption configures an Exporter.
type ExporterOption func(*Exporter)

// WithRegistry serves reg instead of NewRegistry().
func WithRegistry(reg *prometheus.Registry) ExporterOption {
	return func(e *Exporter) { e.registry = reg }
}

// NewExporter creates an exporter for addr. addr is only used by
// ListenAndServe and may be empty when the exporter is mounted elsewhere.
func NewExporter(addr string, opts ...ExporterOption) *Exporter {
	e := &Exporter{addr: addr}
	for _, opt := range opts {
		opt(e)
	}
	if e.registry == nil {
		e.registry = NewRegistry()
	}
	return e
}

// Registry returns the served registry.
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

// Handler serves the registry in the Prometheus text or OpenMetrics format.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Routes serves Handler on MetricsPath and a liveness check on HealthPath.
func (e *Exporter) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle(MetricsPath, e.Handler())
	mux.HandleFunc(HealthPath, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// ListenAndServe serves Routes on the exporter address until Shutdown, when
// it returns http.ErrServerClosed.
func (e *Exporter) ListenAndServe() error {
	e.mu.Lock()
	if e.server != nil {
		e.mu.Unlock()
		return ErrExporterRunning
	}
	srv := &http.Server{
		Addr:              e.addr,
		Handler:           e.Routes(),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	e.server = srv
	e.mu.Unlock()

	return srv.ListenAndServe()
}

// Shutdown stops a running ListenAndServe. It is a no-op otherwise.
func (e *Exporter) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	srv := e.server
	e.server = nil
	e.mu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
