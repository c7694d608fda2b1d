// Package server exposes the SMS webhooks, health probes and metrics over HTTP.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vietddude/textchain/internal/health"
	"github.com/vietddude/textchain/internal/platform/ratelimiter"
)

// Responder turns one inbound message into its reply text.
type Responder interface {
	Process(ctx context.Context, from, body string) string
}

// Config holds HTTP server settings.
type Config struct {
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	RequestTimeout time.Duration
	TwilioPath     string
	JSONPath       string

	// Twilio request verification; disabled when AuthToken or WebhookURL is empty.
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioWebhookURL string
}

// Server serves the webhooks next to /health and /metrics.
type Server struct {
	cfg       Config
	responder Responder
	dedupe    Deduper
	limiter   *ratelimiter.MapLimiter
	monitor   *health.Monitor
	log       *slog.Logger
	now       func() time.Time
	server    *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithDeduper drops webhook retries that carry an already seen MessageSid.
func WithDeduper(d Deduper) Option {
	return func(s *Server) { s.dedupe = d }
}

// WithLimiter throttles senders. A nil limiter allows everything.
func WithLimiter(l *ratelimiter.MapLimiter) Option {
	return func(s *Server) { s.limiter = l }
}

func WithMonitor(m *health.Monitor) Option {
	return func(s *Server) { s.monitor = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.log = l }
}

// NewServer creates a new HTTP server.
func NewServer(cfg Config, responder Responder, opts ...Option) *Server {
	if cfg.TwilioPath == "" {
		cfg.TwilioPath = "/sms/twilio"
	}
	if cfg.JSONPath == "" {
		cfg.JSONPath = "/sms/json"
	}

	s := &Server{
		cfg:       cfg,
		responder: responder,
		log:       slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST "+cfg.TwilioPath, s.handleTwilio)
	mux.HandleFunc("POST "+cfg.JSONPath, s.handleJSON)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /health/detailed", s.handleDetailed)
	mux.Handle("GET /metrics", promhttp.Handler())

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server. It blocks until the server stops.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := health.StatusHealthy
	if s.monitor != nil {
		status = health.Overall(s.monitor.CheckHealth(r.Context()))
	}

	response := map[string]string{"status": string(status)}
	w.Header().Set("Content-Type", "application/json")

	if status == health.StatusCritical {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	json.NewEncoder(w).Encode(response)
}

func (s *Server) handleDetailed(w http.ResponseWriter, r *http.Request) {
	report := health.HealthReport{SystemStatus: health.StatusHealthy}
	if s.monitor != nil {
		report.Components = s.monitor.CheckHealth(r.Context())
		report.SystemStatus = health.Overall(report.Components)
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(report)
}
