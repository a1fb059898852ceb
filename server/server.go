// Package server exposes citation resolution over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/brunobiangulo/lawqa/dataset"
	"github.com/brunobiangulo/lawqa/reference"
)

// Options configures the HTTP service.
type Options struct {
	// APIKey enables bearer authentication when set.
	APIKey string
	// CORSOrigins is a comma-separated list of allowed origins.
	CORSOrigins string
	// Context tunes POST /context.
	Context dataset.ContextOptions
	// Sections is the number of indexed section ids, reported by /health.
	Sections int
}

// maxPairs bounds a single POST /context request.
const maxPairs = 10000

// Server resolves citations against one set of law records.
type Server struct {
	resolver *reference.Resolver
	opts     Options
}

// New returns a server over resolver.
func New(resolver *reference.Resolver, opts Options) *Server {
	return &Server{resolver: resolver, opts: opts}
}

// Handler returns the routed handler wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /resolve", s.handleResolve)
	mux.HandleFunc("POST /context", s.handleContext)
	mux.HandleFunc("GET /health", s.handleHealth)

	// Middleware chain: recovery -> cors -> auth -> logging -> mux
	var handler http.Handler = mux
	handler = logMiddleware(handler)
	handler = authMiddleware(s.opts.APIKey, handler)
	handler = corsMiddleware(s.opts.CORSOrigins, handler)
	handler = recoveryMiddleware(handler)
	return handler
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", addr, "sections", s.opts.Sections)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	slog.Info("server stopped")
	return nil
}
