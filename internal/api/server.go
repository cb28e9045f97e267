// Package api exposes the tracker's live state and recorded match data
// over a local REST API. Overlay tooling and the trace analyzer both
// read from it.
package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/croverlay/croverlay/internal/metrics"
	"github.com/croverlay/croverlay/internal/storage"
	"github.com/croverlay/croverlay/internal/tracker"
)

// Server is the REST API server.
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	addr       string

	session *tracker.Session
	repo    *storage.MatchRepository
	metrics *metrics.Tracker
}

// Config holds configuration for the API server.
type Config struct {
	Addr string
}

// DefaultConfig returns the default API server configuration.
func DefaultConfig() *Config {
	return &Config{Addr: ":8766"}
}

// NewServer creates the API server. The repository and metrics may be
// nil; their routes respond 404 / zeros in that case.
func NewServer(cfg *Config, session *tracker.Session, repo *storage.MatchRepository, m *metrics.Tracker) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	s := &Server{
		router:  chi.NewRouter(),
		addr:    cfg.Addr,
		session: session,
		repo:    repo,
		metrics: m,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(30 * time.Second))

	// Local tooling only.
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.healthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Route("/session", func(r chi.Router) {
			r.Get("/", s.getSession)
			r.Get("/elixir", s.getElixir)
			r.Get("/cycle", s.getCycle)
			r.Post("/elixir/adjust", s.adjustElixir)
		})

		r.Route("/matches", func(r chi.Router) {
			r.Get("/", s.listMatches)
			r.Get("/{matchID}", s.getMatch)
			r.Get("/{matchID}/plays", s.getMatchPlays)
			r.Get("/{matchID}/counts", s.getMatchCounts)
		})

		r.Get("/metrics", s.getMetrics)
	})
}

// Start runs the HTTP server. Blocks until shutdown.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Printf("[API] REST server starting on %s", s.addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	log.Println("[API] Stopping REST server...")
	return s.httpServer.Shutdown(ctx)
}

// Router returns the underlying router, for tests.
func (s *Server) Router() http.Handler {
	return s.router
}
