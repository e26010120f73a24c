package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/vibe-control/vcc/internal/auth"
)

// Server is the HTTP API server hosting both route families.
type Server struct {
	httpServer     *http.Server
	engine         EnginePort
	statusHub      StatusPort
	catalog        CatalogPort
	authMiddleware *auth.Middleware
	startTime      time.Time
	readTimeout    time.Duration
	writeTimeout   time.Duration
	idleTimeout    time.Duration
	busyRetry      time.Duration
}

// SetBusyRetryHint sets the backoff advertised to callers when the
// broadcast queue is full. Zero disables the hint.
func (s *Server) SetBusyRetryHint(d time.Duration) {
	s.busyRetry = d
}

// NewServer creates an API server without authentication.
func NewServer(engine EnginePort, statusHub StatusPort, catalog CatalogPort, readTimeout, writeTimeout, idleTimeout time.Duration) *Server {
	return &Server{
		engine:       engine,
		statusHub:    statusHub,
		catalog:      catalog,
		startTime:    time.Now(),
		readTimeout:  readTimeout,
		writeTimeout: writeTimeout,
		idleTimeout:  idleTimeout,
	}
}

// NewServerWithAuth creates an API server with bearer-token middleware.
func NewServerWithAuth(engine EnginePort, statusHub StatusPort, catalog CatalogPort, authMiddleware *auth.Middleware, readTimeout, writeTimeout, idleTimeout time.Duration) *Server {
	s := NewServer(engine, statusHub, catalog, readTimeout, writeTimeout, idleTimeout)
	s.authMiddleware = authMiddleware
	return s
}

// Start starts the HTTP server and blocks until it is shut down.
func (s *Server) Start(addr string) error {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  s.readTimeout,
		WriteTimeout: s.writeTimeout,
		IdleTimeout:  s.idleTimeout,
	}

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop gracefully stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}
	return nil
}
