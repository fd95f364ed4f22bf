// Package server runs the record store HTTP server and owns the shutdown
// sequence of the background components.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"recordstore/service/pkg/api"
	"recordstore/service/pkg/config"
	"recordstore/service/pkg/middleware"
	"recordstore/service/pkg/store"
	"recordstore/service/pkg/tasks"
	"recordstore/service/pkg/telemetry"
	"recordstore/service/pkg/telemetry/health"
	"recordstore/service/pkg/telemetry/logging"
)

// BuildInfo is reported by GET /version.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// Deps are the components the server routes to and shuts down.
type Deps struct {
	Store     store.Store
	Queue     *tasks.Queue
	Sweeper   *tasks.Sweeper
	Telemetry *telemetry.Telemetry
	Build     BuildInfo
}

// Server is the record store HTTP server.
type Server struct {
	config     *config.Config
	deps       Deps
	logger     *logging.Logger
	httpServer *http.Server
	handler    http.Handler

	shutdownOnce sync.Once
	shutdownErr  error
	mu           sync.RWMutex
	isRunning    bool
	addr         net.Addr
}

// New creates a server and builds its handler.
func New(cfg *config.Config, deps Deps) *Server {
	s := &Server{
		config: cfg,
		deps:   deps,
		logger: deps.Telemetry.Logger.With("component", "server"),
	}
	s.handler = s.setupRoutes()
	return s
}

// Handler returns the HTTP handler with the full middleware chain.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start listens on the configured address and serves until ctx is
// cancelled, then shuts down. It returns the first serve error or the
// shutdown error.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}

	ln, err := net.Listen("tcp", s.config.Server.ListenAddress)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to listen on %s: %w", s.config.Server.ListenAddress, err)
	}

	s.httpServer = &http.Server{
		Handler:        s.handler,
		ReadTimeout:    s.config.Server.ReadTimeout,
		WriteTimeout:   s.config.Server.WriteTimeout,
		IdleTimeout:    s.config.Server.IdleTimeout,
		MaxHeaderBytes: s.config.Server.MaxHeaderBytes,
	}
	s.addr = ln.Addr()
	s.isRunning = true
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting record store server", "address", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case err := <-errChan:
		_ = s.Shutdown(context.Background())
		return err
	}
}

// Addr returns the listening address once Start has bound it.
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Shutdown stops the server and the background components in order: the
// HTTP server, the sweeper, the task queue (draining buffered jobs), the
// tracer (flushing spans) and finally the store. Every step runs even if
// an earlier one failed; the errors are joined.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		timeout := s.config.Server.ShutdownTimeout
		s.logger.Info("initiating graceful shutdown", "timeout", timeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		var errs []error

		s.mu.RLock()
		httpServer := s.httpServer
		s.mu.RUnlock()
		if httpServer != nil {
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("http server: %w", err))
			}
		}

		if s.deps.Sweeper != nil {
			s.deps.Sweeper.Stop()
		}

		if s.deps.Queue != nil {
			if err := s.deps.Queue.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, err)
			}
		}

		if err := s.deps.Telemetry.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}

		if s.deps.Store != nil {
			if err := s.deps.Store.Close(); err != nil {
				errs = append(errs, fmt.Errorf("store: %w", err))
			}
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		s.shutdownErr = errors.Join(errs...)
		if s.shutdownErr != nil {
			s.logger.Error("shutdown completed with errors", "error", s.shutdownErr)
			return
		}
		s.logger.Info("record store server stopped")
	})

	return s.shutdownErr
}

// setupRoutes builds the mux and the middleware chain:
// Recovery -> RequestID -> Instrument -> Timeout -> mux.
func (s *Server) setupRoutes() http.Handler {
	tel := s.deps.Telemetry
	mux := http.NewServeMux()

	api.New(api.Config{
		Store:  s.deps.Store,
		Tasks:  s.deps.Queue,
		Tracer: tel.Tracer(),
		Logger: tel.Logger,
	}).Register(mux)

	s.registerChecks(tel.Health)

	hc := s.config.Telemetry.Health
	mux.Handle("GET "+hc.LivenessPath, tel.Health.LivenessHandler())
	mux.Handle("GET "+hc.ReadinessPath, tel.Health.ReadinessHandler())

	b := s.deps.Build
	mux.Handle("GET /version", health.VersionHandler(b.Version, b.Commit, b.BuildTime))

	if mc := s.config.Telemetry.Metrics; mc.Enabled {
		mux.Handle("GET "+mc.Path, tel.Metrics.Handler())
	}

	return middleware.Chain(mux,
		middleware.Recovery(tel.Logger),
		middleware.RequestID,
		middleware.Instrument(middleware.InstrumentConfig{
			Tracer:  tel.Tracer(),
			Metrics: tel.Metrics,
			Logger:  tel.Logger,
			Route:   middleware.MuxRoute(mux),
		}),
		middleware.Timeout(s.config.Server.RequestTimeout),
	)
}

func (s *Server) registerChecks(checker *health.Checker) {
	if s.deps.Store != nil {
		checker.RegisterCheck("database", s.deps.Store.Ping)
	}
	if s.deps.Queue != nil {
		checker.RegisterCheck("task_queue", s.deps.Queue.Healthy)
	}
}
