package metric

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mac-/eidetic/errors"
	"github.com/mac-/eidetic/health"
)

// SnapshotFunc returns a JSON-serialisable view of one cache's statistics.
type SnapshotFunc func() any

// Server represents the observability HTTP server. It serves Prometheus
// metrics, aggregated health, and read-only statistics of attached caches.
type Server struct {
	port     int
	path     string
	registry *MetricsRegistry
	logger   *slog.Logger
	health   *health.Monitor

	mu     sync.Mutex // protects server and caches
	server *http.Server
	caches map[string]SnapshotFunc
}

// NewServer creates a new observability server with the provided registry
func NewServer(port int, path string, registry *MetricsRegistry, logger *slog.Logger) *Server {
	if path == "" {
		path = "/metrics"
	}
	if port == 0 {
		port = 9090
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		port:     port,
		path:     path,
		registry: registry,
		logger:   logger.With("component", "metrics-server"),
		health:   health.NewMonitor(),
		caches:   make(map[string]SnapshotFunc),
	}
}

// Health returns the monitor whose aggregate is served on /health
func (s *Server) Health() *health.Monitor {
	return s.health
}

// Attach exposes a cache's statistics under /debug/caches/{name}.
// Attaching the same name again replaces the previous snapshot source.
func (s *Server) Attach(name string, snapshot SnapshotFunc) {
	s.mu.Lock()
	s.caches[name] = snapshot
	count := len(s.caches)
	s.mu.Unlock()

	if s.registry != nil {
		s.registry.Metrics.CachesAttached.Set(float64(count))
	}
}

// Handler builds the router. It is exposed for tests and for embedding the
// endpoints into an existing server.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.countRequests)

	if s.registry != nil {
		r.Handle(s.path, promhttp.HandlerFor(
			s.registry.PrometheusRegistry(),
			promhttp.HandlerOpts{
				EnableOpenMetrics: true,
			},
		))
	}

	r.Get("/health", s.healthStatus)

	r.Get("/debug/caches", s.listCaches)
	r.Get("/debug/caches/{name}", s.cacheStats)

	return r
}

func (s *Server) listCaches(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	names := make([]string, 0, len(s.caches))
	for name := range s.caches {
		names = append(names, name)
	}
	s.mu.Unlock()

	sort.Strings(names)
	writeJSON(w, http.StatusOK, map[string]any{"caches": names})
}

func (s *Server) cacheStats(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	s.mu.Lock()
	snapshot, ok := s.caches[name]
	s.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": fmt.Sprintf("cache %q not attached", name)})
		return
	}
	writeJSON(w, http.StatusOK, snapshot())
}

// healthStatus answers 503 only when something is unhealthy; a degraded
// cache still serves reads.
func (s *Server) healthStatus(w http.ResponseWriter, _ *http.Request) {
	status := s.health.AggregateHealth("eidetic")
	code := http.StatusOK
	if status.IsUnhealthy() {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

func (s *Server) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		if s.registry == nil {
			return
		}
		// Unrouted paths share one label to keep the series count bounded.
		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.registry.Metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// Start serves until ctx is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.server != nil {
		s.mu.Unlock()
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Server", "Start",
			"cannot start server that is already running")
	}
	if s.registry == nil {
		s.mu.Unlock()
		return errors.WrapFatal(fmt.Errorf("nil registry"), "Server", "Start",
			"metrics registry not provided")
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.server = srv
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("observability server listening", "addr", srv.Addr, "metrics_path", s.path)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.reset()
		if err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			return errors.WrapTransient(err, "Server", "Start",
				fmt.Sprintf("serve on port %d", s.port))
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		s.reset()
		if err != nil {
			return errors.WrapTransient(err, "Server", "Start", "graceful shutdown")
		}
		return nil
	}
}

func (s *Server) reset() {
	s.mu.Lock()
	s.server = nil
	s.mu.Unlock()
}

// Stop closes the server immediately
func (s *Server) Stop() error {
	s.mu.Lock()
	srv := s.server
	s.server = nil
	s.mu.Unlock()

	if srv == nil {
		return errors.WrapInvalid(errors.ErrNotStarted, "Server", "Stop", "stop idle server")
	}
	if err := srv.Close(); err != nil {
		return errors.WrapTransient(err, "Server", "Stop", "close HTTP server")
	}
	return nil
}

// Address returns the metrics URL
func (s *Server) Address() string {
	return fmt.Sprintf("http://localhost:%d%s", s.port, s.path)
}
