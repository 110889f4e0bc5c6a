// Package server provides the HTTP API for Osusume.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hyperjump/osusume/internal/config"
	"github.com/hyperjump/osusume/internal/recommend"
)

// Server is the HTTP server for the Osusume API.
type Server struct {
	engine   *recommend.Engine
	config   *config.Config
	logger   *zap.Logger
	gatherer prometheus.Gatherer
	server   *http.Server
}

// NewServer creates a server with the given dependencies. gatherer may be nil,
// in which case /metrics is not mounted.
func NewServer(
	engine *recommend.Engine,
	cfg *config.Config,
	logger *zap.Logger,
	gatherer prometheus.Gatherer,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		engine:   engine,
		config:   cfg,
		logger:   logger,
		gatherer: gatherer,
	}
}

// Routes returns the API handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Get("/health", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/genres", s.handleGenres)
		r.Get("/movies", s.handleMovies)
		r.Get("/movies/search", s.handleSearchTitles)
		r.Get("/recommend/similar", s.handleSimilar)
		r.Post("/recommend/similar", s.handleSimilar)
		r.Get("/recommend/genre", s.handleGenre)
		r.Post("/recommend/genre", s.handleGenre)
		r.Post("/catalog/reload", s.handleReload)
	})
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
