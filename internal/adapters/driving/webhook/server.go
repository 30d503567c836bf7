// Package webhook serves the HTTP endpoint that receives Workspace push
// notifications and hands them to the webhook service.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/custodia-labs/gspace/internal/core/domain"
	"github.com/custodia-labs/gspace/internal/core/ports/driving"
	"github.com/custodia-labs/gspace/internal/logger"
)

// Defaults for Config fields left zero.
const (
	DefaultMaxBodyBytes    = 1 << 20
	DefaultShutdownTimeout = 5 * time.Second
)

var deliveriesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "gspace",
		Subsystem: "webhook",
		Name:      "deliveries_total",
		Help:      "Webhook deliveries by response status.",
	},
	[]string{"status"},
)

// Config configures the receiver.
type Config struct {
	// Addr is the listen address, e.g. 127.0.0.1:8090.
	Addr string
	// RequestsPerMinute is the per-IP budget. Zero disables limiting.
	RequestsPerMinute int
	MaxBodyBytes      int64
	ShutdownTimeout   time.Duration
}

// ConfigFromSettings maps persisted settings onto a Config.
func ConfigFromSettings(s domain.WebhookSettings) Config {
	return Config{Addr: s.Addr, RequestsPerMinute: s.RequestsPerMinute}
}

// Server is the webhook HTTP receiver.
type Server struct {
	cfg     Config
	service driving.WebhookService
	router  chi.Router
	log     zerolog.Logger
}

// NewServer builds the router. It does not listen until Run is called.
func NewServer(service driving.WebhookService, cfg Config) *Server {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	s := &Server{
		cfg:     cfg,
		service: service,
		log:     logger.WithComponent("gspace.webhook.server"),
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		if s.cfg.RequestsPerMinute > 0 {
			r.Use(rateLimit(s.cfg.RequestsPerMinute, time.Minute))
		}
		r.Post("/webhook", s.handleWebhook)
	})
	return r
}

// rateLimit limits requests per client IP and answers 429 with Retry-After.
func rateLimit(limit int, window time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(
		limit,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Retry-After", strconv.Itoa(int(window.Seconds())))
			deliveriesTotal.WithLabelValues(strconv.Itoa(http.StatusTooManyRequests)).Inc()
			writeJSON(w, http.StatusTooManyRequests, map[string]string{
				"error": "rate_limit_exceeded",
			})
		}),
	)
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		deliveriesTotal.WithLabelValues(strconv.Itoa(status)).Inc()
		writeJSON(w, status, domain.WebhookResult{Status: status, Error: "Failed to read body"})
		return
	}

	result := s.service.Handle(r.Context(), body, r.Header)
	if result.Status == 0 {
		result.Status = http.StatusOK
	}
	deliveriesTotal.WithLabelValues(strconv.Itoa(result.Status)).Inc()
	s.log.Debug().
		Int("status", result.Status).
		Bool("processed", result.Processed).
		Str("request_id", middleware.GetReqID(r.Context())).
		Msg("Webhook delivery handled")
	writeJSON(w, result.Status, result)
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run listens on cfg.Addr and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", ln.Addr().String()).Msg("Webhook server listening")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown webhook server: %w", err)
	}
	s.log.Info().Msg("Webhook server stopped")
	return <-errCh
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
