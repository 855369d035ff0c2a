package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vwlab/vwharness/internal/config"
	"github.com/vwlab/vwharness/internal/metrics"
	"github.com/vwlab/vwharness/internal/middleware"
	"github.com/vwlab/vwharness/internal/validation"
)

// MaxMessageSize bounds POST /v1/messages. Calldata travels hex encoded, so the
// largest acceptable transaction needs twice MaxDataSize plus envelope headroom.
const MaxMessageSize = 2*validation.MaxDataSize + 64<<10

// Server represents the HTTP server
type Server struct {
	config      *config.Config
	harness     Harness
	logger      *slog.Logger
	metrics     *metrics.Metrics
	gatherer    prometheus.Gatherer
	auth        *middleware.TokenAuth
	rateLimiter *middleware.RateLimiter
	httpServer  *http.Server
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the server logger
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithMetrics counts requests and serves gatherer on /metrics
func WithMetrics(m *metrics.Metrics, gatherer prometheus.Gatherer) Option {
	return func(s *Server) {
		s.metrics = m
		s.gatherer = gatherer
	}
}

// NewServer creates a new API server
func NewServer(cfg *config.Config, h Harness, opts ...Option) *Server {
	s := &Server{
		config:  cfg,
		harness: h,
		logger:  slog.Default(),
		auth:    middleware.NewTokenAuth(cfg.APITokenHash),
	}
	for _, opt := range opts {
		opt(s)
	}
	trusted, err := cfg.TrustedProxyPrefixes()
	if err != nil {
		s.logger.Warn("ignoring trusted proxies", "error", err)
		trusted = nil
	}
	s.rateLimiter = middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, cfg.RateLimitEnabled, trusted...)
	return s
}

// Handler returns the routed handler with the full middleware chain
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Health check and metrics (no auth required)
	mux.HandleFunc("GET /health", s.handleHealth)
	if s.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	// API v1 routes
	mux.Handle("POST /v1/messages", s.auth.Authenticate(http.HandlerFunc(s.handleMessages)))
	mux.Handle("GET /v1/methods", s.auth.Authenticate(http.HandlerFunc(s.handleMethods)))
	mux.Handle("GET /v1/boundaries", s.auth.Authenticate(http.HandlerFunc(s.handleBoundaries)))
	mux.Handle("GET /v1/findings", s.auth.Authenticate(http.HandlerFunc(s.handleFindings)))
	mux.Handle("GET /v1/report", s.auth.Authenticate(http.HandlerFunc(s.handleReport)))
	mux.Handle("POST /v1/probes", s.auth.Authenticate(http.HandlerFunc(s.handleProbes)))
	mux.Handle("POST /v1/inspect", s.auth.Authenticate(http.HandlerFunc(s.handleInspect)))

	// Chain: RequestID -> Logging -> RateLimit -> Routes. Request bodies are
	// capped at MaxBodySize except /v1/messages.
	var h http.Handler = mux
	h = s.limitBody(h)
	h = s.rateLimiter.Limit(h)
	h = middleware.Logging(s.logger, s.metrics)(h)
	h = middleware.RequestID(h)
	return h
}

func (s *Server) limitBody(next http.Handler) http.Handler {
	small := middleware.LimitBody(middleware.MaxBodySize)(next)
	large := middleware.LimitBody(MaxMessageSize)(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/messages" {
			large.ServeHTTP(w, r)
			return
		}
		small.ServeHTTP(w, r)
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting server", "port", s.config.Port, "auth", s.auth.Enabled())
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.rateLimiter.Close()
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
