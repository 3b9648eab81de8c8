// Package api exposes the tracker over HTTP.
package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/star/isstracker/internal/dataset"
	"github.com/star/isstracker/internal/health"
	"github.com/star/isstracker/internal/httputil"
	"github.com/star/isstracker/internal/metrics"
	"github.com/star/isstracker/internal/tracker"
)

// Config holds HTTP server configuration.
type Config struct {
	Addr       string
	TrustProxy bool   // honour X-Forwarded-For / X-Real-IP in request logs
	Help       []byte // body served at /help

	// TracerProvider starts the server spans. Nil means the global provider.
	TracerProvider trace.TracerProvider
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

const tracerName = "github.com/star/isstracker/internal/api"

// NewServer creates a configured HTTP server.
func NewServer(cfg Config, svc *tracker.Service, store *dataset.Store, logger *slog.Logger) *Server {
	mux := http.NewServeMux()
	h := &handlers{svc: svc, logger: logger, help: cfg.Help}

	// Register routes.
	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", health.Readyz(store))
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("GET /{$}", h.list)
	mux.HandleFunc("GET /epochs", h.epochs)
	mux.HandleFunc("GET /epochs/{epoch}", h.vectorAt)
	mux.HandleFunc("GET /epochs/{epoch}/speed", h.speedAt)
	mux.HandleFunc("GET /epochs/{epoch}/location", h.locationAt)
	mux.HandleFunc("GET /now", h.now)
	mux.HandleFunc("PUT /convert", h.convert)
	mux.HandleFunc("DELETE /delete-data", h.deleteData)
	mux.HandleFunc("POST /post-data", h.postData)
	mux.HandleFunc("GET /comment", h.comments)
	mux.HandleFunc("GET /header", h.header)
	mux.HandleFunc("GET /metadata", h.metadata)
	mux.HandleFunc("GET /help", h.helpText)

	// Build middleware chain: metrics -> logging -> tracing -> mux.
	var handler http.Handler = mux
	tp := cfg.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	handler = tracingMiddleware(tp.Tracer(tracerName))(handler)
	handler = loggingMiddleware(logger, cfg.TrustProxy)(handler)
	handler = metrics.Middleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           handler,
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			// Reload fetches a multi-MB feed with its own 30s budget.
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		logger: logger,
	}
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// Handler returns the root handler with all middleware applied.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// probePath returns true for health/readiness probe paths that should not log at INFO.
func probePath(path string) bool {
	return path == "/healthz" || path == "/readyz" || path == "/metrics"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(logger *slog.Logger, trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqID := httputil.RequestID(r)
			w.Header().Set(httputil.RequestIDHeader, reqID)
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(sr, r)

			level := slog.LevelInfo
			if probePath(r.URL.Path) {
				level = slog.LevelDebug
			}

			logger.Log(r.Context(), level, "request",
				"component", "api",
				"request_id", reqID,
				"method", r.Method,
				"path", r.URL.Path,
				"status", strconv.Itoa(sr.statusCode),
				"duration_ms", time.Since(start).Milliseconds(),
				"remote_ip", httputil.ClientIP(r, trustProxy),
			)
		})
	}
}

// tracingMiddleware starts a server span per request, continuing any trace
// propagated by the caller. Spans are named by the matched route pattern so
// epochs in the path do not end up in span names.
func tracingMiddleware(tracer trace.Tracer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			ctx, span := tracer.Start(ctx, r.Method, trace.WithSpanKind(trace.SpanKindServer))
			defer span.End()

			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			req := r.WithContext(ctx)
			next.ServeHTTP(sr, req)

			// The mux records the matched pattern on the request it was given.
			route := req.Pattern
			if route == "" {
				route = r.Method + " unmatched"
			}
			span.SetName(route)
			span.SetAttributes(
				attribute.String("http.request.method", r.Method),
				attribute.String("http.route", route),
				attribute.String("url.path", r.URL.Path),
				attribute.Int("http.response.status_code", sr.statusCode),
			)
		})
	}
}
