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

const readHeaderTimeout = 10 * time.Second

// Exporter serves the media runtime collectors, either on its own listener
// (Start) or mounted on another mux (Handler).
type Exporter struct {
	addr     string
	registry *prometheus.Registry

	mu     sync.Mutex
	server *http.Server
	closed bool
}

// NewExporter returns an exporter for addr with the runtime collectors and
// the Go and process collectors registered on a fresh registry.
func NewExporter(addr string) *Exporter {
	reg := prometheus.NewRegistry()
	reg.MustRegister(allMetrics...)
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewExporterWithRegistry(addr, reg)
}

// NewExporterWithRegistry returns an exporter over a caller-owned registry.
func NewExporterWithRegistry(addr string, registry *prometheus.Registry) *Exporter {
	return &Exporter{addr: addr, registry: registry}
}

// Registry returns the underlying registry.
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

// Register adds collectors to the registry, stopping at the first failure.
func (e *Exporter) Register(cs ...prometheus.Collector) error {
	for _, c := range cs {
		if err := e.registry.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Handler returns the scrape handler, for mounting on an existing server.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Start serves /metrics and /healthz on the exporter's address and blocks.
// It returns http.ErrServerClosed after Shutdown, including when Shutdown
// ran first.
func (e *Exporter) Start() error {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", e.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("OK"))
	})

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return http.ErrServerClosed
	}
	if e.server != nil {
		e.mu.Unlock()
		return errors.New("metrics exporter already started")
	}
	e.server = &http.Server{Addr: e.addr, Handler: mux, ReadHeaderTimeout: readHeaderTimeout}
	srv := e.server
	e.mu.Unlock()

	return srv.ListenAndServe()
}

// Shutdown stops the exporter. Later calls to Start return immediately.
func (e *Exporter) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	e.closed = true
	srv := e.server
	e.mu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
