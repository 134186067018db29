// Package http serves the finance queries and record writes as a JSON API.
package http

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"saldo/internal/log"
	"saldo/internal/metrics"
	"saldo/internal/middleware/ratelimit"
	"saldo/internal/middleware/security"
	"saldo/internal/middleware/trace"
	"saldo/internal/services"
)

// Options carry the optional collaborators of a Server.
type Options struct {
	Metrics *metrics.Metrics
	Logger  *log.Logger
	// Ready reports whether the record source can serve; nil means always.
	Ready func(ctx context.Context) error
	// WritesPerMinute limits POST, PUT and DELETE per client. Zero uses
	// the limiter default.
	WritesPerMinute int
	// Location renders record timestamps; defaults to time.Local.
	Location *time.Location
}

type Server struct {
	http.Server
	finance *services.FinanceService
	records *services.RecordService
	metrics *metrics.Metrics
	ready   func(ctx context.Context) error
	limiter *ratelimit.Limiter
	loc     *time.Location

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, finance *services.FinanceService, records *services.RecordService, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}

	s := &Server{
		finance: finance,
		records: records,
		metrics: opts.Metrics,
		ready:   opts.Ready,
		limiter: ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.WritesPerMinute}),
		loc:     loc,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(log.Middleware(logger.WithComponent(log.ComponentHTTP), func(r *http.Request) string {
		return middleware.GetReqID(r.Context())
	}))
	r.Use(trace.NewMiddleware(logger, opts.Metrics, clientIP).Middleware)
	r.Use(middleware.Recoverer)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Handle("/metrics", opts.Metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/periods/current", s.handleCurrentPeriod)
		r.Get("/periods/{period}/summary", s.handlePeriodSummary)
		r.Get("/periods/{period}/categories/{category}", s.handleCategoryDetail)
		r.Get("/periods/{period}/income", s.handleIncomeDetail)
		r.Get("/months", s.handleMonths)

		r.Group(func(r chi.Router) {
			r.Use(s.limiter.Middleware(clientIP, func(w http.ResponseWriter, r *http.Request) {
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			}))
			r.Post("/{kind}", s.handleCreateRecord)
			r.Put("/{kind}/{id}", s.handleEditRecord)
			r.Delete("/{kind}/{id}", s.handleDeleteRecord)
		})
	})

	s.Server = http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Shutdown stops the limiter and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// clientIP is the remote host without port. RealIP has already applied
// X-Forwarded-For and X-Real-IP.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
