package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"mediashare/internal/api"
	"mediashare/internal/config"
)

// Server is the admin HTTP server. It runs for the whole process lifetime,
// independent of the share listener.
type Server struct {
	cfg        config.ServerConfig
	logger     zerolog.Logger
	httpServer *http.Server
	router     *chi.Mux
	handler    *api.Handler
}

func New(cfg config.ServerConfig, handler *api.Handler, logger zerolog.Logger) *Server {
	s := &Server{
		cfg:     cfg,
		logger:  logger,
		handler: handler,
	}

	s.router = chi.NewRouter()
	s.setupMiddleware()
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(CORSMiddleware)
	s.router.Use(LoggingMiddleware(s.logger))
}

func (s *Server) setupRoutes() {
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handler.Health)

		r.Post("/library/scan", s.handler.ScanLibrary)

		r.Get("/items", s.handler.ListItems)
		r.Get("/items/{id}", s.handler.GetItem)
		r.Get("/items/{id}/stream", s.handler.StreamItem)
		r.Get("/items/{id}/artwork", s.handler.GetArtwork)

		r.Get("/playlists", s.handler.ListPlaylists)
		r.Post("/playlists", s.handler.CreatePlaylist)
		r.Get("/playlists/{id}", s.handler.GetPlaylist)
		r.Put("/playlists/{id}", s.handler.UpdatePlaylist)
		r.Delete("/playlists/{id}", s.handler.DeletePlaylist)

		r.Get("/share", s.handler.GetShare)
		r.Put("/share", s.handler.UpdateShare)
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) ListenAndServe() error {
	s.logger.Info().
		Str("addr", s.httpServer.Addr).
		Msg("starting admin server")

	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("shutting down admin server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	return s.httpServer.Shutdown(shutdownCtx)
}
