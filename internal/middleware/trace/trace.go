// Package trace logs and measures every HTTP request.
package trace

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"saldo/internal/log"
	"saldo/internal/metrics"
)

// Middleware handles request tracing and logging
type Middleware struct {
	logger    *log.StructuredLogger
	metrics   *metrics.Metrics
	extractIP func(*http.Request) string
}

// NewMiddleware creates a trace middleware. m may be nil.
func NewMiddleware(logger *log.Logger, m *metrics.Metrics, extractIP func(*http.Request) string) *Middleware {
	return &Middleware{
		logger:    log.NewStructuredLogger(logger),
		metrics:   m,
		extractIP: extractIP,
	}
}

// Middleware logs each completed request and records it under its route
// pattern, so path parameters do not explode metric cardinality.
func (m *Middleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := RoutePattern(r)
		elapsed := time.Since(start)

		clientIP := r.RemoteAddr
		if m.extractIP != nil {
			clientIP = m.extractIP(r)
		}
		m.metrics.ObserveHTTP(r.Method, route, status, elapsed)
		m.logger.LogHTTPEnd(r.Context(), r, route, status, elapsed, clientIP)
	})
}

// RoutePattern returns the matched chi pattern, or "unmatched".
func RoutePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

// GetRequestID extracts the request ID set by chi's RequestID middleware.
func GetRequestID(ctx context.Context) string {
	return middleware.GetReqID(ctx)
}
