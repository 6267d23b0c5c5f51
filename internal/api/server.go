package api

import (
	"context"
	"net/http"
	"time"
)

// Server represents the API server
type Server struct {
	handler http.Handler
	server  *http.Server
}

// NewServer wraps a routed handler, usually the result of SetupRoutes.
func NewServer(handler http.Handler) *Server {
	return &Server{handler: handler}
}

func (s *Server) httpServer(addr string) *http.Server {
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.handler,
		// Bodies are capped at a few KiB, so read timeouts can be tight.
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    64 << 10,
	}
	return s.server
}

// ListenAndServe starts the HTTP server
func (s *Server) ListenAndServe(addr string) error {
	return s.httpServer(addr).ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
