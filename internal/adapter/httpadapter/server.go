package httpadapter

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/couchcryptid/nsw-incident-feed/internal/host"
	"github.com/couchcryptid/nsw-incident-feed/internal/observability"
)

// EntityStore exposes the host's entity states.
type EntityStore interface {
	States(ctx context.Context) ([]host.State, error)
	State(ctx context.Context, id string) (host.State, bool, error)
}

// Refresher runs a feed update on demand.
type Refresher interface {
	Update(ctx context.Context) error
}

// Options configures the optional routes of a Server.
type Options struct {
	Entities  EntityStore
	Refresher Refresher
	// RefreshPerMinute bounds POST /refresh. Zero or less disables the limit.
	RefreshPerMinute int
}

// Server exposes health, readiness, metrics, and entity HTTP endpoints.
type Server struct {
	httpServer *http.Server
	opts       Options
	limiter    *rate.Limiter
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewServer creates an HTTP server with /healthz, /readyz, and /metrics
// routes, plus /entities and /refresh when the matching options are set.
func NewServer(addr string, ready sharedobs.ReadinessChecker, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Server {
	mux := http.NewServeMux()

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RefreshPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RefreshPerMinute)), opts.RefreshPerMinute)
	}

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		opts:    opts,
		limiter: limiter,
		logger:  logger,
		metrics: metrics,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	if opts.Entities != nil {
		mux.HandleFunc("GET /entities", s.listEntities)
		mux.HandleFunc("GET /entities/{id}", s.getEntity)
	}
	if opts.Refresher != nil {
		mux.HandleFunc("POST /refresh", s.refresh)
	}

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) listEntities(w http.ResponseWriter, r *http.Request) {
	states, err := s.opts.Entities.States(r.Context())
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(states), "entities": states})
}

func (s *Server) getEntity(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	state, ok, err := s.opts.Entities.State(r.Context(), id)
	switch {
	case err != nil:
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
	case !ok:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "entity not found", "id": id})
	default:
		writeJSON(w, http.StatusOK, state)
	}
}

func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.Allow() {
		s.metrics.ManualRefreshes.WithLabelValues("limited").Inc()
		w.Header().Set("Retry-After", "60")
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"status": "rate limited"})
		return
	}

	if err := s.opts.Refresher.Update(r.Context()); err != nil {
		s.metrics.ManualRefreshes.WithLabelValues("error").Inc()
		s.logger.Warn("manual refresh failed", "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"status": "error", "error": err.Error()})
		return
	}
	s.metrics.ManualRefreshes.WithLabelValues("success").Inc()
	writeJSON(w, http.StatusOK, map[string]string{"status": "refreshed"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
