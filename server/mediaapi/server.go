// Package mediaapi exposes the media runtime over HTTP: payload resolution,
// blob handle serving and revocation, voice I/O, metrics and the voice
// bridge socket.
package mediaapi

import (
	"context"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/Jari57/studio-agents-sub002/runtime/media"
	"github.com/Jari57/studio-agents-sub002/runtime/telemetry"
	"github.com/Jari57/studio-agents-sub002/runtime/voice"
)

const (
	// defaultReadHeaderTimeout prevents Slowloris attacks.
	defaultReadHeaderTimeout = 10 * time.Second

	// defaultReadTimeout is the maximum duration for reading the entire
	// request, including the body.
	defaultReadTimeout = 30 * time.Second

	// defaultWriteTimeout is the maximum duration before timing out
	// writes of the response.
	defaultWriteTimeout = 60 * time.Second

	// defaultIdleTimeout is the maximum amount of time to wait for the
	// next request when keep-alives are enabled.
	defaultIdleTimeout = 120 * time.Second

	// defaultMaxBodySize is the maximum allowed size of a payload (32 MB).
	defaultMaxBodySize int64 = 32 << 20
)

// Routes.
const (
	RouteResolve = "/v1/resolve/{kind}"
	RouteBlob    = "/v1/blobs/{id}"
	RoutePreview = "/v1/blobs/{id}/preview"
	RouteBridge  = "/v1/voice/bridge"
	RouteMetrics = "/metrics"
	RouteHealth  = "/healthz"
)

// Option configures a [Server].
type Option func(*Server)

// WithBridge mounts a voice bridge engine at RouteBridge.
func WithBridge(h http.Handler) Option {
	return func(s *Server) { s.bridge = h }
}

// WithMetricsHandler serves h at RouteMetrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithTracer sets the tracer for resolve spans. Default: the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(s *Server) { s.tracer = t }
}

// WithRateLimit throttles the resolve endpoint to rps requests per second
// with the given burst. Requests over the limit get 429.
func WithRateLimit(rps float64, burst int) Option {
	return func(s *Server) { s.limiter = rate.NewLimiter(rate.Limit(rps), burst) }
}

// WithMaxBodySize sets the maximum payload size in bytes. Default: 32 MB.
func WithMaxBodySize(n int64) Option {
	return func(s *Server) { s.maxBodySize = n }
}

// WithReadTimeout sets the maximum duration for reading the entire request.
// Default: 30s.
func WithReadTimeout(d time.Duration) Option {
	return func(s *Server) { s.readTimeout = d }
}

// WithWriteTimeout sets the maximum duration before timing out writes of
// the response. Default: 60s.
func WithWriteTimeout(d time.Duration) Option {
	return func(s *Server) { s.writeTimeout = d }
}

// Server serves the media API for one resolver and its blob registry.
type Server struct {
	resolver    *media.Resolver
	bridge      http.Handler
	metrics     http.Handler
	tracer      trace.Tracer
	limiter     *rate.Limiter
	maxBodySize int64

	voice       *voice.IO
	voiceEvents *VoiceEvents
	listenBusy  atomic.Bool

	readTimeout  time.Duration
	writeTimeout time.Duration

	httpSrv   *http.Server
	httpSrvMu sync.Mutex
}

// NewServer creates a Server. Handles it creates live in the resolver's registry.
func NewServer(resolver *media.Resolver, opts ...Option) *Server {
	s := &Server{
		resolver:     resolver,
		maxBodySize:  defaultMaxBodySize,
		readTimeout:  defaultReadTimeout,
		writeTimeout: defaultWriteTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tracer == nil {
		s.tracer = telemetry.Tracer(nil)
	}
	return s
}

// Handler returns the API handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.handle(mux, "POST "+RouteResolve, http.HandlerFunc(s.handleResolve))
	s.handle(mux, "GET "+RouteBlob, http.StripPrefix("/v1/blobs", s.resolver.Registry().Handler()))
	s.handle(mux, "DELETE "+RouteBlob, http.HandlerFunc(s.handleRevoke))
	s.handle(mux, "GET "+RoutePreview, http.HandlerFunc(s.handlePreview))
	s.handle(mux, "GET "+RouteHealth, http.HandlerFunc(handleHealth))
	if s.voice != nil {
		s.registerVoice(mux)
	}
	if s.metrics != nil {
		mux.Handle("GET "+RouteMetrics, s.metrics)
	}
	if s.bridge != nil {
		// The websocket outlives the request, so it is not instrumented.
		mux.Handle("GET "+RouteBridge, s.bridge)
	}
	return withRequestID(otelhttp.NewHandler(mux, "media-api",
		otelhttp.WithFilter(func(r *http.Request) bool { return r.URL.Path != RouteBridge }),
	))
}

func (s *Server) handle(mux *http.ServeMux, pattern string, h http.Handler) {
	mux.Handle(pattern, instrument(pattern, h))
}

func (s *Server) newHTTPServer(addr string) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: defaultReadHeaderTimeout,
		ReadTimeout:       s.readTimeout,
		WriteTimeout:      s.writeTimeout,
		IdleTimeout:       defaultIdleTimeout,
	}
	s.httpSrvMu.Lock()
	s.httpSrv = srv
	s.httpSrvMu.Unlock()
	return srv
}

// ListenAndServe starts the HTTP server on addr.
func (s *Server) ListenAndServe(addr string) error {
	return s.newHTTPServer(addr).ListenAndServe()
}

// Serve starts the HTTP server on the given listener.
func (s *Server) Serve(ln net.Listener) error {
	return s.newHTTPServer("").Serve(ln)
}

// Shutdown gracefully drains HTTP requests. Live blob handles are kept;
// their owners revoke them.
func (s *Server) Shutdown(ctx context.Context) error {
	s.httpSrvMu.Lock()
	srv := s.httpSrv
	s.httpSrvMu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
