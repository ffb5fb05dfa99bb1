// Package api exposes the retrieval pipeline over HTTP.
//
// Endpoints:
//
//	GET  /health      liveness probe
//	GET  /ready       readiness probe (pings the database)
//	POST /api/search  similarity search over the knowledge base
//	POST /api/chat    knowledge-grounded question answering
//	POST /api/ingest  add a document to the knowledge base
//	GET  /api/report  markdown report of ingested documents
//
// File structure:
//   - server.go: HTTP server setup and lifecycle
//   - middleware.go: recovery, logging, rate limiting, security headers
//   - health.go: health check endpoints
//   - search.go, chat.go, ingest.go, report.go: pipeline endpoints
//   - response.go: JSON response helpers and error status mapping
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultAddr is the default listen address. Loopback only; the API
	// carries no authentication.
	DefaultAddr = "127.0.0.1:5009"

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout bounds request header reads (CWE-400).
	ReadHeaderTimeout = 10 * time.Second

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout = 30 * time.Second

	// WriteTimeout is the maximum duration for writing the response.
	// Completion calls with retries can take tens of seconds.
	WriteTimeout = 120 * time.Second

	// IdleTimeout is the keep-alive idle limit.
	IdleTimeout = 120 * time.Second
)

// Server is the HTTP server for the REST API.
type Server struct {
	mux     *http.ServeMux
	limiter *rate.Limiter

	health *HealthHandler
	search *SearchHandler
	chat   *ChatHandler
	ingest *IngestHandler
	report *ReportHandler
}

// NewServer creates a server with all routes registered. limiter throttles
// the /api/ endpoints; nil disables throttling.
func NewServer(health *HealthHandler, search *SearchHandler, chat *ChatHandler,
	ingest *IngestHandler, report *ReportHandler, limiter *rate.Limiter) *Server {

	mux := http.NewServeMux()
	s := &Server{
		mux:     mux,
		limiter: limiter,
		health:  health,
		search:  search,
		chat:    chat,
		ingest:  ingest,
		report:  report,
	}

	s.health.RegisterRoutes(mux)
	s.search.RegisterRoutes(mux)
	s.chat.RegisterRoutes(mux)
	s.ingest.RegisterRoutes(mux)
	s.report.RegisterRoutes(mux)

	return s
}

// Handler returns the HTTP handler with middleware applied.
// Middleware order: recovery -> logging -> security headers -> rate limit.
func (s *Server) Handler() http.Handler {
	return chain(s.mux,
		recoveryMiddleware,
		loggingMiddleware,
		securityHeadersMiddleware,
		rateLimitMiddleware(s.limiter),
	)
}

// Run starts the HTTP server and blocks until the context is cancelled,
// then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		WriteTimeout:      WriteTimeout,
		IdleTimeout:       IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting HTTP server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
