package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/websocket"

	"github.com/DwijAcharyaPsspl/pdf-viewer-server/internal/config"
	"github.com/DwijAcharyaPsspl/pdf-viewer-server/pkg/document"
	"github.com/DwijAcharyaPsspl/pdf-viewer-server/pkg/render"
	"github.com/DwijAcharyaPsspl/pdf-viewer-server/pkg/store"
)

// shutdownTimeout bounds graceful shutdown of in-flight requests.
const shutdownTimeout = 10 * time.Second

// documentCache is the slice of document.Cache the server depends on.
type documentCache interface {
	Load(ctx context.Context, path string) (*document.Document, error)
	Count() int
}

// Server wires the document cache, render pipeline, page store, session
// table and the two client surfaces (WebSocket gateway, HTTP API)
// together.
type Server struct {
	config   *config.Config
	cache    documentCache
	store    store.Store
	disk     *store.DiskStore // nil when the S3 backend is active
	sessions *SessionManager
	metrics  *Metrics

	upgrader   websocket.Upgrader
	httpServer *http.Server
	startedAt  time.Time

	// renderPage is swapped in tests to avoid the CGo rasterizer.
	renderPage func(src render.PageImager, pageNum int, quality render.Quality) (*render.Page, error)

	logger *slog.Logger
}

// Option customizes a Server.
type Option func(*Server)

// WithStore overrides the page store backend. Used to plug in the S3
// backend (or a fake in tests); the default is a DiskStore rooted at the
// configured pages directory.
func WithStore(st store.Store) Option {
	return func(s *Server) {
		s.store = st
		s.disk, _ = st.(*store.DiskStore)
	}
}

// New creates a Server from configuration. It ensures the PDF and
// temporary-pages directories exist and starts the session sweep; the
// HTTP listener does not start until Start.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Server, error) {
	if cfg == nil {
		cfg = config.New()
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "server")

	for _, warning := range cfg.Warnings() {
		logger.Warn("config warning", "warning", warning)
	}

	if err := os.MkdirAll(cfg.PDFDir, 0o755); err != nil {
		return nil, fmt.Errorf("server: create pdf dir: %w", err)
	}

	s := &Server{
		config:   cfg,
		cache:    document.NewCache(logger),
		sessions: NewSessionManager(cfg.IdleTimeout.Std(), cfg.CleanupInterval.Std(), logger),
		metrics:  NewMetrics(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The thin display client connects from its own origin.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		renderPage: render.RenderPage,
		startedAt:  time.Now(),
		logger:     logger,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.store == nil {
		disk, err := store.NewDiskStore(cfg.PagesDir)
		if err != nil {
			return nil, err
		}
		s.store = disk
		s.disk = disk
	}

	// The sweep owns session deletion; removing the session's on-disk
	// artifacts rides along. A failed delete is logged and isolated to
	// that session.
	s.sessions.SetOnSessionRemoved(func(sessionID string) {
		s.metrics.sessionsSwept.Inc()
		s.metrics.activeSessions.Set(float64(s.sessions.Count()))
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := s.store.Remove(ctx, sessionID); err != nil {
			s.logger.Error("session artifact cleanup failed",
				"session_id", sessionID, "error", err)
		}
	})

	s.httpServer = &http.Server{
		Addr:              cfg.Address,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s, nil
}

// Handler returns the server's HTTP handler for mounting in external
// routers or httptest.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Sessions exposes the session table (health checks, tests).
func (s *Server) Sessions() *SessionManager {
	return s.sessions
}

// Start runs the HTTP listener until it fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("server listening",
		"address", s.config.Address,
		"pdf_dir", s.config.PDFDir,
		"store", s.config.Store.Backend)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown stops the sweep and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	s.sessions.Shutdown()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("shutdown error", "error", err)
		return err
	}

	s.logger.Info("server shutdown complete")
	return nil
}
