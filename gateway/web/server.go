// Package web provides the HTTP surface of the snapshot viewer: image and
// gallery queries over the store, a status endpoint, and live-update streams
// (SSE and WebSocket) driven by the change notifier.
package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/luckyonesl/frigate-mqtt-pricure-viewer/config"
	pkgerrors "github.com/luckyonesl/frigate-mqtt-pricure-viewer/errors"
	"github.com/luckyonesl/frigate-mqtt-pricure-viewer/health"
	"github.com/luckyonesl/frigate-mqtt-pricure-viewer/imagestore"
	"github.com/luckyonesl/frigate-mqtt-pricure-viewer/metric"
	"github.com/luckyonesl/frigate-mqtt-pricure-viewer/notify"
)

// appName labels the aggregate health status.
const appName = "snapviewer"

// Deps holds runtime dependencies for the web server.
type Deps struct {
	Config   *config.Config
	Store    *imagestore.Store
	Notifier *notify.Notifier
	Metrics  *metric.Registry
	Health   *health.Monitor
	Logger   *slog.Logger
}

// Server serves the viewer HTTP surface.
type Server struct {
	cfg      *config.Config
	store    *imagestore.Store
	notifier *notify.Notifier
	metrics  *metric.Registry
	monitor  *health.Monitor
	logger   *slog.Logger

	gallery  bool
	upgrader websocket.Upgrader

	mu         sync.Mutex
	server     *http.Server
	startTime  time.Time
	startGauge prometheus.Gauge
}

// Gauge registered for the lifetime of the running server.
const startGaugeName = "start_time_seconds"

// NewServer creates the web server and wires its routes.
func NewServer(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "web")
	}

	s := &Server{
		cfg:      deps.Config,
		store:    deps.Store,
		notifier: deps.Notifier,
		metrics:  deps.Metrics,
		monitor:  deps.Health,
		logger:   logger,
		gallery:  deps.Config.GalleryMode(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The update stream carries no client-specific state
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}

	return s
}

// routes builds the request router.
func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/", s.counted("index", s.handleIndex)).Methods(http.MethodGet)
	r.HandleFunc("/image.jpg", s.counted("image", s.handleImage)).Methods(http.MethodGet)
	r.HandleFunc("/image/{camera}/{object}.jpg", s.counted("image_key", s.handleImageKey)).Methods(http.MethodGet)
	r.HandleFunc("/gallery", s.counted("gallery", s.handleGallery)).Methods(http.MethodGet)
	r.HandleFunc("/status", s.counted("status", s.handleStatus)).Methods(http.MethodGet)
	r.HandleFunc("/events", s.counted("events", s.handleEvents)).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.counted("ws", s.handleWebSocket)).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.counted("healthz", s.handleHealthz)).Methods(http.MethodGet)

	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}

	return r
}

// counted wraps a handler with the per-handler request counter.
func (s *Server) counted(name string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.metrics != nil {
			s.metrics.Core().HTTPRequests.WithLabelValues(name).Inc()
		}
		h(w, r)
	}
}

// Start begins serving in a background goroutine. Returns after the listener
// is set up; serve errors after startup are logged and reflected in health.
func (s *Server) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return pkgerrors.WrapInvalid(fmt.Errorf("server already running"),
			"web", "Start", "lifecycle check")
	}

	s.server = &http.Server{
		Addr:              s.cfg.HTTP.Addr(),
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.startTime = time.Now()

	if s.metrics != nil {
		s.startGauge = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metric.Namespace,
			Subsystem: "web",
			Name:      startGaugeName,
			Help:      "Unix time the HTTP server started serving",
		})
		if err := s.metrics.RegisterGauge(appName, startGaugeName, s.startGauge); err != nil {
			s.logger.Warn("start gauge registration failed", "error", err)
		} else {
			s.startGauge.Set(float64(s.startTime.Unix()))
		}
	}

	s.logger.Info("starting http server", "addr", s.cfg.HTTP.Addr(), "gallery_mode", s.gallery)
	if s.monitor != nil {
		s.monitor.UpdateHealthy("web", "serving")
	}

	srv := s.server
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server terminated", "error", err)
			if s.monitor != nil {
				s.monitor.UpdateUnhealthy("web", "server terminated unexpectedly")
			}
		}
	}()

	return nil
}

// Stop gracefully shuts the server down within timeout. In-flight streaming
// connections are closed by the shutdown.
func (s *Server) Stop(timeout time.Duration) error {
	s.mu.Lock()
	srv := s.server
	s.server = nil
	s.mu.Unlock()

	if srv == nil {
		return nil
	}

	if s.metrics != nil {
		s.metrics.Unregister(appName, startGaugeName)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return pkgerrors.WrapTransient(err, "web", "Stop", "graceful shutdown")
	}

	s.logger.Info("http server stopped")
	return nil
}

// Handler exposes the route tree for tests.
func (s *Server) Handler() http.Handler {
	return s.routes()
}
