// Package ops exposes the operational HTTP surface: health, Prometheus
// metrics, and a context-preview endpoint for debugging. It is not the chat
// transport; the engine is consumed as a library.
package ops

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mbeaufort/mnemo/pkg/memory"
)

// Server timeouts.
const (
	readTimeout     = 10 * time.Second
	writeTimeout    = 30 * time.Second
	shutdownTimeout = 10 * time.Second
)

// ContextBuilder is the subset of the engine the ops server needs.
type ContextBuilder interface {
	BuildContextWithBudget(ctx context.Context, conversationID string, budget int) (memory.Context, error)
}

// Server is the operational HTTP server.
type Server struct {
	bind      string
	engine    ContextBuilder
	metrics   http.Handler
	logger    *slog.Logger
	server    *http.Server
	startedAt time.Time
}

// New creates a Server. The metrics handler may be nil, in which case
// /metrics responds 404.
func New(bind string, engine ContextBuilder, metricsHandler http.Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		bind:    bind,
		engine:  engine,
		metrics: metricsHandler,
		logger:  logger,
	}
}

// buildRouter constructs the chi mux with all routes wired.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", s.handleHealth())

	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}

	r.Get("/debug/context/{conversationID}", s.handleDebugContext())

	return r
}

// Start begins serving in the background. The returned error covers bind
// failures only; serve errors after a successful bind go to the logger.
func (s *Server) Start() error {
	s.startedAt = time.Now()

	s.server = &http.Server{
		Addr:         s.bind,
		Handler:      s.buildRouter(),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", s.bind)
	if err != nil {
		return errors.New("ops: listen failed: " + err.Error())
	}

	go func() {
		s.logger.Info("ops server listening", "addr", s.bind)
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("ops serve error", "error", err)
		}
	}()

	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	s.logger.Info("ops server shutting down")
	return s.server.Shutdown(shutdownCtx)
}
